package selection

import (
	"fmt"
	"strings"
)

// Reference - полный URL, переход по которому заставляет портал отдать один PDF.
type Reference string

func (r Reference) String() string { return string(r) }

// DefaultInvisibleElements - элементы интерфейса, которые не должны попасть в PDF.
var DefaultInvisibleElements = []string{"childDividerContainer", "buttonbar"}

// Target - поля одной ссылки на документ.
type Target struct {
	PagePath    string // pages/VIEW/EEPayrollPayCheckDetail.aspx
	CompositeID string // coid=...&gennumber=...!pagererid=...
	Zoom        string
}

// ReferenceBuilder собирает ссылки на печать документа в PDF.
type ReferenceBuilder struct {
	BaseURL           string
	CustomerPath      string
	QueryParams       string
	InvisibleElements []string
}

// Build собирает ссылку вида
// base/Customs/GOOG/<page>?<query>!!<id>!printtopdf=inline!...!PdfZoomLevel=<zoom>!PdfInvisibleElements=a;b
// Каждое поле экранируется отдельно, разделители портала в идентификаторе сохраняются.
func (b ReferenceBuilder) Build(t Target) (Reference, error) {
	if b.BaseURL == "" {
		return "", fmt.Errorf("не задан базовый адрес портала")
	}
	if strings.TrimSpace(t.PagePath) == "" {
		return "", fmt.Errorf("пустой путь страницы документа")
	}
	if strings.TrimSpace(t.CompositeID) == "" {
		return "", fmt.Errorf("пустой идентификатор документа")
	}
	if strings.TrimSpace(t.Zoom) == "" {
		return "", fmt.Errorf("не задан масштаб")
	}

	invisible := b.InvisibleElements
	if invisible == nil {
		invisible = DefaultInvisibleElements
	}
	hidden := make([]string, 0, len(invisible))
	for _, el := range invisible {
		hidden = append(hidden, escape(el, ""))
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(b.BaseURL, "/"))
	sb.WriteString(normalizeCustomerPath(b.CustomerPath))
	sb.WriteString(escape(strings.TrimLeft(t.PagePath, "/"), "/"))
	sb.WriteByte('?')
	sb.WriteString(strings.TrimPrefix(b.QueryParams, "?"))
	sb.WriteString("!!")
	sb.WriteString(escape(t.CompositeID, "=&!;,:"))
	sb.WriteString("!printtopdf=inline")
	sb.WriteString("!PdfPageScaleToFitSinglePage=true")
	sb.WriteString("!PdfOutputAreaWidth=8")
	sb.WriteString("!PdfOutputAreaHeight=10.5")
	sb.WriteString("!PdfZoomLevel=")
	sb.WriteString(escape(strings.TrimSpace(t.Zoom), ""))
	sb.WriteString("!PdfInvisibleElements=")
	sb.WriteString(strings.Join(hidden, ";"))

	return Reference(sb.String()), nil
}

func normalizeCustomerPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

const upperhex = "0123456789ABCDEF"

// escape кодирует все байты, кроме незарезервированных (RFC 3986) и перечисленных в keep.
// Уже закодированные последовательности %XX не кодируются повторно.
func escape(s, keep string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			sb.WriteString(s[i : i+3])
			i += 2
			continue
		}
		if isUnreserved(c) || strings.IndexByte(keep, c) >= 0 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&15])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

package selection

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// DetailMarker - часть href, по которой узнаются ссылки на отдельные листки.
const DetailMarker = "EEPayrollPayCheckDetail.aspx"

// RowSelector находит те же ссылки внутри страницы.
const RowSelector = `table tr td a[href*="` + DetailMarker + `" i]`

// collectRowsScript выполняется в браузере и возвращает ссылки в порядке документа.
const collectRowsScript = `(selector) => Array.from(document.querySelectorAll(selector)).map(a => ({
	href: a.getAttribute('href') || '',
	text: (a.textContent || '').trim()
}))`

// Строка списка ссылается на документ через вызов вида
// OpenPage('pages/VIEW/EEPayrollPayCheckDetail.aspx', 'coid=...', true)
var rowPattern = regexp.MustCompile(`'(pages/[^']*)',\s*'(coid[^']*)',\s*true`)

// Row - одна ссылка из списка документов.
type Row struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Parse извлекает путь страницы и составной идентификатор документа.
func (r Row) Parse() (pagePath, compositeID string, ok bool) {
	m := rowPattern.FindStringSubmatch(r.Href)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Chronological переводит строки из порядка документа в хронологический.
// Портал выводит листки от новых к старым.
func Chronological(docOrder []Row) []Row {
	rows := slices.Clone(docOrder)
	slices.Reverse(rows)
	return rows
}

// ScanHTML находит строки списка в HTML-документе, в порядке документа.
func ScanHTML(r io.Reader) ([]Row, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора страницы: %w", err)
	}

	var rows []Row
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok && containsFold(href, DetailMarker) && insideTableCell(n) {
				rows = append(rows, Row{Href: href, Text: strings.TrimSpace(textContent(n))})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return rows, nil
}

// insideTableCell повторяет "table tr td a": у ссылки есть предок td,
// у него предок tr, у того - table.
func insideTableCell(n *html.Node) bool {
	want := []string{"td", "tr", "table"}
	for p := n.Parent; p != nil && len(want) > 0; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == want[0] {
			want = want[1:]
		}
	}
	return len(want) == 0
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// decodeRows переводит результат Evaluate ([]any из map[string]any) в строки.
func decodeRows(v any) ([]Row, error) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("неожиданный результат выполнения на странице: %T", v)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("строка %d: неожиданный тип %T", i, item)
		}
		href, _ := m["href"].(string)
		text, _ := m["text"].(string)
		rows = append(rows, Row{Href: href, Text: text})
	}
	return rows, nil
}

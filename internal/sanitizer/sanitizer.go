// Package sanitizer вырезает учетные данные и параметры сессии из строк перед записью в лог.
package sanitizer

import (
	"net/url"
	"strings"
	"sync"
)

type DataSanitizer struct {
	mu    sync.RWMutex
	rules []SanitizerRule
	known *SecretSanitizer
}

type SanitizerRule interface {
	Sanitize(text string) string
}

// New создает санитайзер. secrets - значения, которые нельзя выводить ни в каком виде
// (логин, пароль); их можно добавить позже через AddSecrets.
func New(secrets ...string) *DataSanitizer {
	known := &SecretSanitizer{}
	known.Add(secrets...)

	return &DataSanitizer{
		known: known,
		rules: []SanitizerRule{
			known,
			&PasswordSanitizer{},
			&TokenSanitizer{},
			&CookieSanitizer{},
			&APIKeySanitizer{},
			&EmailSanitizer{},
		},
	}
}

func (s *DataSanitizer) AddSecrets(values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known.Add(values...)
}

func (s *DataSanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := text
	for _, rule := range s.rules {
		result = rule.Sanitize(result)
	}

	return result
}

// SanitizeURL скрывает строку запроса портала. В ссылках на документы она идет
// между "?" и "!!", дальше следуют идентификатор документа и параметры печати.
func (s *DataSanitizer) SanitizeURL(raw string) string {
	if raw == "" {
		return raw
	}

	q := strings.IndexByte(raw, '?')
	if q < 0 {
		return s.Sanitize(raw)
	}

	rest := raw[q+1:]
	end := strings.Index(rest, "!!")
	if end < 0 {
		end = strings.IndexByte(rest, '#')
	}
	if end < 0 {
		end = len(rest)
	}

	masked := raw[:q+1] + "[FILTERED]" + rest[end:]
	return s.Sanitize(masked)
}

func (s *DataSanitizer) SanitizeSelector(selector string) string {
	if selector == "" {
		return selector
	}

	lower := strings.ToLower(selector)

	sensitiveKeywords := []string{
		"password", "passwd", "пароль", "token", "api-key", "api_key",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return "[FILTERED_SELECTOR]"
		}
	}

	return selector
}

// SecretSanitizer заменяет известные значения, в том числе в URL-кодированном виде.
type SecretSanitizer struct {
	values []string
}

func (s *SecretSanitizer) Add(values ...string) {
	for _, v := range values {
		// Короткие значения дают слишком много ложных замен.
		if len(v) < 3 {
			continue
		}
		s.values = append(s.values, v)
		if esc := url.QueryEscape(v); esc != v {
			s.values = append(s.values, esc)
		}
	}
}

func (s *SecretSanitizer) Sanitize(text string) string {
	for _, v := range s.values {
		text = strings.ReplaceAll(text, v, "[FILTERED]")
	}
	return text
}

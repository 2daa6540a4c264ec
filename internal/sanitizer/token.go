package sanitizer

import "regexp"

type TokenSanitizer struct{}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(token|токен)\s*[:=]\s*["']?([a-zA-Z0-9_-]{20,})["']?`),
	regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{20,})`),
	regexp.MustCompile(`(?i)(authorization\s*[:=]\s*["']?bearer\s+)([a-zA-Z0-9_.-]{20,})["']?`),
	regexp.MustCompile(`(?i)(__tenantid\s*=\s*)([^!&\s]+)`),
}

func (s *TokenSanitizer) Sanitize(text string) string {
	for _, pattern := range tokenPatterns {
		text = pattern.ReplaceAllString(text, `${1}[FILTERED]`)
	}

	return text
}

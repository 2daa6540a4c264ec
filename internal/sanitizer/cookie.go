package sanitizer

import "regexp"

type CookieSanitizer struct{}

var cookiePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(cookie\s*[:=]\s*["']?)([^"'\n]{10,})["']?`),
	regexp.MustCompile(`(?i)(session[_-]?id\s*[:=]\s*["']?|ASP\.NET_SessionId\s*=\s*)([a-zA-Z0-9_-]{10,})["']?`),
	regexp.MustCompile(`(?i)(set-cookie\s*[:=]\s*["']?)([^"'\n]{10,})["']?`),
}

func (s *CookieSanitizer) Sanitize(text string) string {
	for _, pattern := range cookiePatterns {
		text = pattern.ReplaceAllString(text, `${1}[FILTERED]`)
	}

	return text
}

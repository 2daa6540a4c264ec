package sanitizer

import "regexp"

type APIKeySanitizer struct{}

var apiKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret)\s*[:=]\s*["']?([a-zA-Z0-9_-]{20,})["']?`),
	regexp.MustCompile(`(?i)(client[_-]?secret|access[_-]?token)\s*[:=]\s*["']?([a-zA-Z0-9_-]{20,})["']?`),
}

func (s *APIKeySanitizer) Sanitize(text string) string {
	for _, pattern := range apiKeyPatterns {
		text = pattern.ReplaceAllString(text, `${1}: [FILTERED]`)
	}

	return text
}

package sanitizer

import "regexp"

type PasswordSanitizer struct{}

var passwordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|пароль)\s*[:=]\s*["']?([^"'\s&!]{3,})["']?`),
	regexp.MustCompile(`(?i)(pwd)\s*[:=]\s*["']?([^"'\s&!]{3,})["']?`),
}

func (s *PasswordSanitizer) Sanitize(text string) string {
	for _, pattern := range passwordPatterns {
		text = pattern.ReplaceAllString(text, `${1}: [FILTERED]`)
	}

	return text
}

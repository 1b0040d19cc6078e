// sensitive.go
package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs.
// Each pattern keeps its first capture group and replaces the rest of the match.
var sensitiveDataPatterns = []*regexp.Regexp{
	// Auth headers
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)(client-id\s+)([^;,\s"]+)`),

	// Credentials passed as query parameters
	regexp.MustCompile(`(?i)([?&](?:client_id|access_key|api_key|apikey|appid|token)=)([^&\s"]+)`),

	// API keys, tokens and secrets in key=value or key: value form
	regexp.MustCompile(`(?i)((?:api|access|auth|token|secret|passw(?:or)?d)[0-9a-z\-_.]*[\s:=]+)([^;,\s&"]{5,})`),
}

// sensitiveKeywords are keywords that indicate fields may contain sensitive data
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "auth", "api_key",
	"apikey", "access_key", "accesskey", "authorization", "dsn",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}

	return input
}

// RedactSensitiveFields checks if field keys indicate sensitive data and redacts the values
func RedactSensitiveFields(fields []Field) []Field {
	result := make([]Field, len(fields))
	copy(result, fields)

	for i := range result {
		keyLower := strings.ToLower(result[i].Key)
		for _, sensitiveKey := range sensitiveKeywords {
			if strings.Contains(keyLower, sensitiveKey) {
				if value, ok := result[i].Value.(string); ok && value != "" {
					result[i].Value = "[REDACTED]"
				}
				break
			}
		}
	}

	return result
}

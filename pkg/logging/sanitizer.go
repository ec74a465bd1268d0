// Package logging holds helpers that keep credentials out of log output.
package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxFieldLength bounds string values passed through SanitizeFields.
	MaxFieldLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URLs (Postgres and Redis DSNs)
	userInfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// Authorization headers echoed back in provider errors
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.~+/]+=*`)

	// OpenAI and Anthropic style secret keys
	providerKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`)

	// api_key=..., x-api-key: ...
	apiKeyPattern = regexp.MustCompile(`(?i)(x-api-key|api[_-]?key)(\s*[:=]\s*)[A-Za-z0-9\-_]{16,}`)

	sensitiveFieldKeywords = []string{"password", "secret", "token", "api_key", "apikey", "credential"}
)

// SanitizeConnectionString removes credentials from a DSN. Use this before
// logging any database or Redis address.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError returns err's message with credentials and provider keys removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString applies every redaction pattern to s.
func SanitizeString(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = userInfoPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}${2}"+RedactedText)
	return providerKeyPattern.ReplaceAllString(s, RedactedText)
}

// SanitizeFields redacts values whose key looks sensitive and truncates long
// strings. The input map is not modified.
func SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = RedactedText
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = TruncateString(SanitizeString(s), MaxFieldLength)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveFieldKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

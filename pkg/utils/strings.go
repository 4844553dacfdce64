package utils

// Truncate shortens s to max runes, appending an ellipsis when it cut
// anything. Used to keep provider error bodies out of log floods.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// MaskToken keeps the first 8 characters of a credential and hides the
// rest, so startup logs can show which token is loaded without leaking it.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "****"
}

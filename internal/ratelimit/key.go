package ratelimit

import "strings"

// KeyForToken builds a limiter key for an upstream auth token.
func KeyForToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return "t:" + token
}

package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var externalIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,128}$`)

// ValidateExternalID validates a provider user id
func ValidateExternalID(id string) bool {
	return externalIDRegex.MatchString(id)
}

// SanitizeDisplayName trims and collapses whitespace in a display name
func SanitizeDisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateAvatarURL accepts absolute http(s) URLs only
func ValidateAvatarURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

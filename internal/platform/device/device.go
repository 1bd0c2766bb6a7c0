// Package device turns raw User-Agent strings into short display names for
// history metadata enrichment.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent formats a User-Agent header as "Browser on Platform/OS".
// Unknown or empty strings degrade to readable fallbacks rather than
// leaking the raw header into stored metadata.
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	return strings.Join(strings.Fields(browser+" on "+platform), " ")
}

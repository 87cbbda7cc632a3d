// Package device summarizes User-Agent strings for audit events.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent renders a short human-readable device summary such as
// "Chrome 120 on Mac OS X 10.15.7". Raw User-Agent strings never land in the
// audit trail; only this summary does.
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)

	name, version := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	// Keep the major version only; minor bumps are noise in an audit line.
	if idx := strings.Index(version, "."); idx != -1 {
		version = version[:idx]
	}

	osInfo := ua.OSInfo()
	os := strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}

	// Fields+Join collapses the double space left by an empty version.
	return strings.Join(strings.Fields(name+" "+version+" on "+os), " ")
}

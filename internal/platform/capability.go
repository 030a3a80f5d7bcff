// Package platform classifies push capability from what a client reports
// about itself. Browsers only expose user agent strings and feature flags, so
// the server mirrors the same checks the frontend runs before subscribing and
// serves them to clients that want an authoritative answer.
package platform

import (
	"regexp"
	"strconv"
	"strings"
)

// iOS gained Web Push in 16.4, and only for installed home screen apps.
const minIOSVersion = 16.4

var iosVersionRe = regexp.MustCompile(`OS (\d+)[_.](\d+)`)

// ClientReport is the self-description a client submits for a capability check.
type ClientReport struct {
	UserAgent   string `json:"user_agent"`
	Standalone  bool   `json:"standalone"`   // running as installed PWA
	PushAPI     bool   `json:"push_api"`     // serviceWorker + PushManager + Notification present
	Permission  string `json:"permission"`   // default, granted or denied
	TouchPoints int    `json:"touch_points"` // navigator.maxTouchPoints
}

// SupportInfo is the verdict for one client.
type SupportInfo struct {
	Supported   bool   `json:"supported"`
	Reason      string `json:"reason,omitempty"`
	RequiresPWA bool   `json:"requires_pwa,omitempty"`
}

// IsIOS reports whether the client is an iOS device. iPadOS 13+ masquerades
// as Macintosh, so a Mac user agent with multitouch counts too.
func IsIOS(report ClientReport) bool {
	ua := report.UserAgent
	if strings.Contains(ua, "iPad") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPod") {
		return true
	}
	return strings.Contains(ua, "Macintosh") && report.TouchPoints > 1
}

// IOSVersion extracts the major.minor iOS version from the user agent.
// It returns 0 when no version is present.
func IOSVersion(userAgent string) float64 {
	m := iosVersionRe.FindStringSubmatch(userAgent)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
	if err != nil {
		return 0
	}
	return v
}

// Check decides whether the reporting client can receive push notifications
// and, when it cannot, what the user should be told.
func Check(report ClientReport) SupportInfo {
	if !report.PushAPI {
		return SupportInfo{Reason: "Browser does not support push notifications"}
	}
	if IsIOS(report) {
		if v := IOSVersion(report.UserAgent); v > 0 && v < minIOSVersion {
			return SupportInfo{Reason: "iOS 16.4 or later required for push notifications. Please update your iOS."}
		}
		if !report.Standalone {
			return SupportInfo{
				Reason:      "Install this app to your home screen first, then open it from there to enable notifications.",
				RequiresPWA: true,
			}
		}
	}
	return SupportInfo{Supported: true}
}

// Status maps a client report plus its server-side subscription state to the
// lifecycle states the frontend renders.
func Status(report ClientReport, subscribed bool) string {
	if IsIOS(report) && !report.Standalone {
		return "requires_pwa"
	}
	if !Check(report).Supported {
		return "unsupported"
	}
	if report.Permission == "denied" {
		return "denied"
	}
	if subscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

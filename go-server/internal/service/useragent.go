package service

import "strings"

// ClientInfo is what the click recorder derives from a User-Agent header.
type ClientInfo struct {
	Device  string
	Browser string
	OS      string
}

// ParseUserAgent classifies a User-Agent string with ordered substring
// checks. User agents advertise several engines at once, so check order
// decides the result.
func ParseUserAgent(ua string) ClientInfo {
	return ClientInfo{
		Device:  deviceClass(ua),
		Browser: browserFamily(ua),
		OS:      osFamily(ua),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func deviceClass(ua string) string {
	switch {
	case containsAny(ua, "iPad", "Tablet"):
		return "Tablet"
	case containsAny(ua, "Mobile", "Android", "iPhone"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

func browserFamily(ua string) string {
	isEdge := containsAny(ua, "Edge", "Edg/")
	isChrome := strings.Contains(ua, "Chrome")

	switch {
	case isChrome && !isEdge:
		return "Chrome"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Safari") && !isChrome:
		return "Safari"
	case isEdge:
		return "Edge"
	case containsAny(ua, "Opera", "OPR/"):
		return "Opera"
	default:
		return "Other"
	}
}

func osFamily(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case containsAny(ua, "iPhone", "iPad", "iOS"):
		return "iOS"
	case strings.Contains(ua, "Mac OS"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Other"
	}
}

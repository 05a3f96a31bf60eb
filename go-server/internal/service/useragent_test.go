package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	uaEdgeLegacy    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.102 Safari/537.36 Edge/18.19582"
	uaEdgeChromium  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
	uaSafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaChromeAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	uaOperaPresto   = "Opera/9.80 (Windows NT 6.1; WOW64) Presto/2.12.388 Version/12.18"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name     string
		ua       string
		expected ClientInfo
	}{
		{"chrome on windows", uaChromeWindows, ClientInfo{"Desktop", "Chrome", "Windows"}},
		{"legacy edge", uaEdgeLegacy, ClientInfo{"Desktop", "Edge", "Windows"}},
		{"chromium edge", uaEdgeChromium, ClientInfo{"Desktop", "Edge", "Windows"}},
		{"firefox on linux", uaFirefoxLinux, ClientInfo{"Desktop", "Firefox", "Linux"}},
		{"safari on mac", uaSafariMac, ClientInfo{"Desktop", "Safari", "macOS"}},
		{"safari on iphone", uaSafariIPhone, ClientInfo{"Mobile", "Safari", "iOS"}},
		{"safari on ipad", uaSafariIPad, ClientInfo{"Tablet", "Safari", "iOS"}},
		{"chrome on android", uaChromeAndroid, ClientInfo{"Mobile", "Chrome", "Android"}},
		{"opera presto", uaOperaPresto, ClientInfo{"Desktop", "Opera", "Windows"}},
		{"curl", "curl/8.5.0", ClientInfo{"Desktop", "Other", "Other"}},
		{"empty", "", ClientInfo{"Desktop", "Other", "Other"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseUserAgent(tc.ua))
		})
	}
}

func TestBrowserFamily_EdgeBeatsChrome(t *testing.T) {
	assert.Equal(t, "Edge", browserFamily("Chrome Edge"))
	assert.Equal(t, "Chrome", browserFamily("Chrome Safari"))
	assert.Equal(t, "Safari", browserFamily("Safari"))
}

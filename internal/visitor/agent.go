package visitor

import (
	"regexp"
	"strings"
)

// Version patterns, anchored right after each browser's marker token.
var (
	chromeVersion  = regexp.MustCompile(`Chrome/(\d+\.\d+\.\d+\.\d+)`)
	firefoxVersion = regexp.MustCompile(`Firefox/(\d+\.\d+)`)
	safariVersion  = regexp.MustCompile(`Version/(\d+\.\d+\.\d+)`)
	edgeVersion    = regexp.MustCompile(`Edg/(\d+\.\d+\.\d+\.\d+)`)
	ieVersion      = regexp.MustCompile(`MSIE (\d+\.\d+)`)
	operaVersion   = regexp.MustCompile(`OPR/(\d+\.\d+\.\d+)`)
)

// unknownDeviceType is the device type label when nothing more specific matched.
const unknownDeviceType = "Unknown"

// Classify turns a raw User-Agent string into AgentFacts.
//
// Detection is best-effort substring matching. An empty agent yields
// all-Unknown facts with RawAgent set to UnknownAgent.
func Classify(rawAgent string) AgentFacts {
	if rawAgent == "" {
		return AgentFacts{
			Browser:    BrowserUnknown,
			Device:     DeviceUnknown,
			DeviceType: unknownDeviceType,
			OS:         OSUnknown,
			RawAgent:   UnknownAgent,
		}
	}

	browser, version := detectBrowser(rawAgent)
	device, deviceType := detectDevice(rawAgent)

	return AgentFacts{
		Browser:        browser,
		BrowserVersion: version,
		Device:         device,
		DeviceType:     deviceType,
		OS:             detectOS(rawAgent),
		RawAgent:       rawAgent,
	}
}

// detectBrowser checks browser families in a fixed order; the first match wins.
// Chrome must be checked before Safari because Chrome agents carry a Safari token.
func detectBrowser(ua string) (Browser, string) {
	switch {
	case strings.Contains(ua, "Chrome") && !strings.Contains(ua, "Chromium") && !strings.Contains(ua, "Edg"):
		return BrowserChrome, matchVersion(chromeVersion, ua)
	case strings.Contains(ua, "Firefox"):
		return BrowserFirefox, matchVersion(firefoxVersion, ua)
	case strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome"):
		return BrowserSafari, matchVersion(safariVersion, ua)
	case strings.Contains(ua, "Edg"):
		return BrowserEdge, matchVersion(edgeVersion, ua)
	case strings.Contains(ua, "MSIE") || strings.Contains(ua, "Trident"):
		return BrowserInternetExplorer, matchVersion(ieVersion, ua)
	case strings.Contains(ua, "OPR"):
		return BrowserOpera, matchVersion(operaVersion, ua)
	default:
		return BrowserUnknown, ""
	}
}

func matchVersion(re *regexp.Regexp, ua string) string {
	if m := re.FindStringSubmatch(ua); len(m) == 2 {
		return m[1]
	}
	return ""
}

func detectDevice(ua string) (Device, string) {
	if strings.Contains(ua, "Mobile") {
		switch {
		case strings.Contains(ua, "iPhone"):
			return DeviceMobile, "iPhone"
		case strings.Contains(ua, "iPad"):
			return DeviceTablet, "iPad"
		case strings.Contains(ua, "Android"):
			if strings.Contains(ua, "Tablet") {
				return DeviceTablet, "Android"
			}
			return DeviceMobile, "Android"
		case strings.Contains(ua, "Windows Phone"):
			return DeviceMobile, "Windows Phone"
		}
		return DeviceMobile, unknownDeviceType
	}

	if strings.Contains(ua, "Tablet") {
		switch {
		case strings.Contains(ua, "iPad"):
			return DeviceTablet, "iPad"
		case strings.Contains(ua, "Android"):
			return DeviceTablet, "Android Tablet"
		}
		return DeviceTablet, unknownDeviceType
	}

	return DeviceDesktop, unknownDeviceType
}

// detectOS keeps the legacy order: an agent mentioning both Linux and Android
// is reported as Linux.
func detectOS(ua string) OS {
	switch {
	case strings.Contains(ua, "Windows"):
		return OSWindows
	case strings.Contains(ua, "Mac OS X"):
		return OSMacOS
	case strings.Contains(ua, "Linux"):
		return OSLinux
	case strings.Contains(ua, "Android"):
		return OSAndroid
	case strings.Contains(ua, "iOS"):
		return OSIOS
	default:
		return OSUnknown
	}
}

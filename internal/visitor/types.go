// Package visitor tracks who is looking at the dashboard.
//
// It derives the client address from proxy headers, classifies the User-Agent
// into browser/device/OS facts, keeps a bounded list of recent visitors keyed by
// (address, browser), and maintains a rolling 24-hour visit frequency per key.
package visitor

import "time"

// Browser is the detected browser family.
type Browser string

// Browser families, in detection order.
const (
	BrowserChrome           Browser = "Chrome"
	BrowserFirefox          Browser = "Firefox"
	BrowserSafari           Browser = "Safari"
	BrowserEdge             Browser = "Edge"
	BrowserInternetExplorer Browser = "Internet Explorer"
	BrowserOpera            Browser = "Opera"
	BrowserUnknown          Browser = "Unknown"
)

// Device is the coarse device category.
type Device string

// Device categories.
const (
	DeviceDesktop Device = "Desktop"
	DeviceMobile  Device = "Mobile"
	DeviceTablet  Device = "Tablet"
	DeviceUnknown Device = "Unknown"
)

// OS is the detected operating system family.
type OS string

// Operating system families, in detection order.
const (
	OSWindows OS = "Windows"
	OSMacOS   OS = "macOS"
	OSLinux   OS = "Linux"
	OSAndroid OS = "Android"
	OSIOS     OS = "iOS"
	OSUnknown OS = "Unknown"
)

// UnknownAgent is stored as RawAgent when the request carried no User-Agent.
const UnknownAgent = "Unknown"

// AgentFacts holds everything derived from a single User-Agent string.
type AgentFacts struct {
	Browser        Browser `json:"browser"`
	BrowserVersion string  `json:"browser_version"`
	Device         Device  `json:"device"`
	DeviceType     string  `json:"device_type"`
	OS             OS      `json:"os"`
	RawAgent       string  `json:"user_agent"`
}

// Key identifies a visitor. The same address seen with two browsers counts as
// two visitors.
type Key struct {
	Address string
	Browser Browser
}

// String renders the key the way it appears in logs.
func (k Key) String() string {
	return k.Address + "_" + string(k.Browser)
}

// Record is one entry of the recent-visitor list.
type Record struct {
	Key        Key
	Path       string
	LastSeenAt time.Time
	Facts      AgentFacts
}

// FrequencyStats holds the visit history of one key.
type FrequencyStats struct {
	Key          Key
	FirstVisitAt time.Time
	LastVisitAt  time.Time
	// VisitCount counts every touch over the process lifetime.
	VisitCount int
	// RecentTimestamps only holds touches from the trailing window.
	RecentTimestamps []time.Time
	// AverageInterval is nil until two timestamps remain in the window.
	AverageInterval *float64
}

// View is a record enriched with frequency data, ready for rendering.
type View struct {
	Address        string    `json:"ip"`
	Path           string    `json:"path"`
	LastSeenAt     time.Time `json:"time"`
	Browser        Browser   `json:"browser"`
	BrowserVersion string    `json:"browser_version"`
	Device         Device    `json:"device"`
	DeviceType     string    `json:"device_type"`
	OS             OS        `json:"os"`
	RawAgent       string    `json:"user_agent"`
	VisitCount     int       `json:"visit_count"`
	FirstVisitAt   time.Time `json:"first_visit"`
}

// VisitEvent is handed to a Sink after each recorded visit.
type VisitEvent struct {
	Address   string
	Path      string
	Facts     AgentFacts
	Timestamp time.Time
	RequestID string
}

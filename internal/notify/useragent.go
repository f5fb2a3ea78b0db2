package notify

import (
	"regexp"
	"strings"
)

// ClientInfo is what ParseUserAgent extracts from a browser user agent
type ClientInfo struct {
	DeviceType     string // "mobile" or "pc"
	OS             string
	OSVersion      string
	Device         string
	Browser        string
	BrowserVersion string
	AppVersion     string
	IsWebView      bool
}

var (
	reWebView   = regexp.MustCompile(`\bwv\b`)
	reMobile    = regexp.MustCompile(`Mobile|Android|iPhone|iPad|iPod`)
	reAndroid   = regexp.MustCompile(`Android\s+([\d.]+)`)
	reIOS       = regexp.MustCompile(`iPhone OS ([\d_]+)|iPad.*OS ([\d_]+)`)
	reWindows   = regexp.MustCompile(`Windows NT ([\d.]+)`)
	reMac       = regexp.MustCompile(`Mac OS X ([\d_]+)`)
	reAndroidHW = regexp.MustCompile(`Android[^;]*;\s*([^;)]+)`)
	reChrome    = regexp.MustCompile(`Chrome/([\d.]+)`)
	reSafari    = regexp.MustCompile(`Version/([\d.]+).*Safari`)
	reFirefox   = regexp.MustCompile(`Firefox/([\d.]+)`)
	reEdge      = regexp.MustCompile(`Edg/([\d.]+)`)
	reApp       = regexp.MustCompile(`ZigZag/([\d.]+)`)
)

// ParseUserAgent extracts platform and browser details for ticket text
func ParseUserAgent(ua string) ClientInfo {
	info := ClientInfo{
		DeviceType: "pc",
		OS:         "Unknown",
		Browser:    "Unknown",
		IsWebView:  reWebView.MatchString(ua),
	}
	if reMobile.MatchString(ua) {
		info.DeviceType = "mobile"
	}

	android := reAndroid.FindStringSubmatch(ua)
	ios := reIOS.FindStringSubmatch(ua)
	switch {
	case ios != nil:
		info.OS = "iOS"
		v := ios[1]
		if v == "" {
			v = ios[2]
		}
		info.OSVersion = strings.ReplaceAll(v, "_", ".")
	case android != nil:
		info.OS = "Android"
		info.OSVersion = android[1]
	default:
		if m := reWindows.FindStringSubmatch(ua); m != nil {
			info.OS = "Windows"
			info.OSVersion = m[1]
		} else if m := reMac.FindStringSubmatch(ua); m != nil {
			info.OS = "macOS"
			info.OSVersion = strings.ReplaceAll(m[1], "_", ".")
		} else if strings.Contains(ua, "Linux") {
			info.OS = "Linux"
		}
	}

	if m := reAndroidHW.FindStringSubmatch(ua); m != nil {
		// "SM-S906N Build/..." -> "SM-S906N"
		name, _, _ := strings.Cut(strings.TrimSpace(m[1]), " Build/")
		info.Device = strings.TrimSpace(name)
	}
	if strings.Contains(ua, "iPhone") {
		info.Device = "iPhone"
	} else if strings.Contains(ua, "iPad") {
		info.Device = "iPad"
	}

	// Edge and Chrome both carry a Chrome token
	if m := reEdge.FindStringSubmatch(ua); m != nil {
		info.Browser, info.BrowserVersion = "Edge", m[1]
	} else if m := reChrome.FindStringSubmatch(ua); m != nil {
		info.Browser, info.BrowserVersion = "Chrome", m[1]
	} else if m := reFirefox.FindStringSubmatch(ua); m != nil {
		info.Browser, info.BrowserVersion = "Firefox", m[1]
	} else if m := reSafari.FindStringSubmatch(ua); m != nil {
		info.Browser, info.BrowserVersion = "Safari", m[1]
	}

	if m := reApp.FindStringSubmatch(ua); m != nil {
		info.AppVersion = m[1]
	}
	return info
}

// String renders e.g. "mobile, Android 14 (SM-S906N), Chrome 120.0 webview"
func (c ClientInfo) String() string {
	var sb strings.Builder
	sb.WriteString(c.DeviceType)
	sb.WriteString(", ")
	sb.WriteString(c.OS)
	if c.OSVersion != "" {
		sb.WriteString(" " + c.OSVersion)
	}
	if c.Device != "" {
		sb.WriteString(" (" + c.Device + ")")
	}
	sb.WriteString(", " + c.Browser)
	if c.BrowserVersion != "" {
		sb.WriteString(" " + c.BrowserVersion)
	}
	if c.AppVersion != "" {
		sb.WriteString(", app " + c.AppVersion)
	}
	if c.IsWebView {
		sb.WriteString(" webview")
	}
	return sb.String()
}

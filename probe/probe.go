// Package probe derives device class, browser, OS, and external referrer from
// the hosting environment. Everything here is side-effect free.
package probe

import (
	"github.com/mileusna/useragent"

	"mabletask/tracker/models"
	"mabletask/tracker/utils"
)

const Unknown = "Unknown"

// Info is the parsed view of a user agent string.
type Info struct {
	Device  models.DeviceClass
	Browser string
	OS      string
}

// Parse inspects a user agent once and returns everything a record needs.
func Parse(userAgent string) Info {
	ua := useragent.Parse(userAgent)
	return Info{
		Device:  deviceClass(&ua),
		Browser: orUnknown(ua.Name),
		OS:      orUnknown(ua.OS),
	}
}

func DeviceClass(userAgent string) models.DeviceClass {
	ua := useragent.Parse(userAgent)
	return deviceClass(&ua)
}

func Browser(userAgent string) string {
	return orUnknown(useragent.Parse(userAgent).Name)
}

func OS(userAgent string) string {
	return orUnknown(useragent.Parse(userAgent).OS)
}

// tablet wins over mobile: several tablets also advertise a mobile token.
func deviceClass(ua *useragent.UserAgent) models.DeviceClass {
	switch {
	case ua.Tablet:
		return models.DeviceTablet
	case ua.Mobile:
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// ExternalReferrer returns previous only when it points at a different host
// than current. Same-host referrals are navigation noise, and any URL that
// fails to parse degrades to no referrer.
func ExternalReferrer(current, previous string) string {
	if previous == "" {
		return ""
	}
	prevHost, err := utils.HostOf(previous)
	if err != nil || prevHost == "" {
		return ""
	}
	curHost, err := utils.HostOf(current)
	if err != nil {
		return ""
	}
	if prevHost == curHost {
		return ""
	}
	return previous
}

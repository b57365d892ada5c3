package utils

import (
	"strings"
	"sync"
	"time"
)

var locationCache sync.Map

// ResolveLocation returns the first candidate that names a loadable IANA
// zone, or UTC.
func ResolveLocation(candidates ...string) *time.Location {
	for _, tz := range candidates {
		tz = strings.TrimSpace(tz)
		if tz == "" {
			continue
		}
		if cached, ok := locationCache.Load(tz); ok {
			return cached.(*time.Location)
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			continue
		}
		locationCache.Store(tz, loc)
		return loc
	}
	return time.UTC
}

func CurrentDateInTimezone(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("2006-01-02")
}

func CurrentTimeInTimezone(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("15:04")
}

package console

import (
	"fmt"
	"time"
)

const (
	// CardDescriptionLimit is the description length on admin cards.
	CardDescriptionLimit = 80
	// LookupDescriptionLimit is the description length on public lookup cards.
	LookupDescriptionLimit = 90

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// RetentionPresets are the quick-pick retention chips, in days.
var RetentionPresets = []int{7, 30, 60, 90}

// Remaining renders the time left until target: "{d}d {h}h left" with at
// least a day to go, "{h}h {m}m left" under a day, "Expired" once past.
func Remaining(target, now time.Time) string {
	if target.Before(now) {
		return "Expired"
	}
	diff := target.Sub(now)
	days := int(diff / (24 * time.Hour))
	hours := int(diff % (24 * time.Hour) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh left", days, hours)
	}
	minutes := int(diff % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %dm left", hours, minutes)
}

// Countdown is Remaining for an optional auto-delete time; nil yields "".
func Countdown(at *time.Time, now time.Time) string {
	if at == nil {
		return ""
	}
	return Remaining(*at, now)
}

// Truncate keeps the first n characters of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

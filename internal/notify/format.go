package notify

import (
	"fmt"
	"time"
)

// FormatRelative renders a feed timestamp the way the notification list shows
// it: relative within the last week, a date beyond that.
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Ahora mismo"
	case diff < time.Hour:
		return fmt.Sprintf("Hace %d min", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("Hace %d h", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("Hace %d d", int(diff.Hours()/24))
	default:
		return t.Format("2/1/2006")
	}
}

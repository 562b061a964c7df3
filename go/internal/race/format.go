package race

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// FormatTime renders a race duration as H:MM:SS.mmm, or M:SS.mmm under an hour.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := ms / int64(time.Minute/time.Millisecond) % 60
	seconds := ms / 1000 % 60
	millis := ms % 1000

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	}
	return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, millis)
}

// Ordinal returns the English ordinal suffix for n.
func Ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func newSeed() string {
	return fmt.Sprintf("%08d", rand.IntN(100_000_000))
}

// humanDuration renders whole-minute durations the way players read them.
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

func entries(n int) string {
	if n == 1 {
		return "is 1 entry"
	}
	return fmt.Sprintf("are %d entries", n)
}

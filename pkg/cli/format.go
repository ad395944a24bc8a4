package cli

import (
	"fmt"
	"time"
)

// FormatDuration renders d compactly: 850ms, 12.3s, 4m05.0s.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	secs := (d - time.Duration(mins)*time.Minute).Seconds()
	return fmt.Sprintf("%dm%04.1fs", mins, secs)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/KB)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatAudioLength renders a sample count at rate as a duration.
func FormatAudioLength(samples, rate int) string {
	if rate <= 0 {
		return "0ms"
	}
	return FormatDuration(time.Duration(float64(samples) / float64(rate) * float64(time.Second)))
}

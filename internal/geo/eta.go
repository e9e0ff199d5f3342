package geo

import (
	"fmt"
	"time"
)

// FormatETA renders a remaining duration the way the map overlay shows it:
// the two most significant units, or "Arriving..." once nothing is left.
func FormatETA(remaining time.Duration) string {
	if remaining <= 0 {
		return "Arriving..."
	}

	seconds := int64(remaining / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

package ride

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as kilometers with one decimal, e.g. "5.0 km".
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds as "N min" below an hour and "H h M min" above.
func FormatDuration(seconds float64) string {
	minutes := int(math.Round(seconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
}

package measure

import (
	"fmt"
	"math"
	"strings"
)

// FormatLength renders meters the way labels and reports show them:
// "42.5 м", "420 м", "4.20 км". With comma the decimal point becomes a comma.
func FormatLength(v float64, comma bool) string {
	var s string
	switch {
	case v < 100:
		s = fmt.Sprintf("%.1f м", v)
	case v < 1000:
		s = fmt.Sprintf("%.0f м", math.Round(v))
	default:
		s = fmt.Sprintf("%.2f км", v/1000)
	}
	if comma {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

// FormatArea renders square meters, switching to hectares from 1 ha.
func FormatArea(m2 float64, comma bool) string {
	if m2 >= 10000 {
		s := fmt.Sprintf("%.2f га", m2/10000)
		if comma {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	}
	return fmt.Sprintf("%.0f м²", math.Round(m2))
}

package weather

import (
	"fmt"
	"strings"
)

// highVariabilityStdDev is the spread (mm) above which estimators disagree enough to warn.
const highVariabilityStdDev = 3.0

// Summarize writes the human-readable outlook for a blended forecast.
func Summarize(probability float64, trend TrendLabel, stdDev float64, baseline BaselineReading) string {
	var b strings.Builder
	b.WriteString(outlook(probability))

	switch trend {
	case TrendIncreasing:
		b.WriteString(" Precipitation on this date has been trending up in recent years.")
	case TrendDecreasing:
		b.WriteString(" Precipitation on this date has been trending down in recent years.")
	}

	if stdDev > highVariabilityStdDev {
		b.WriteString(" The estimates disagree widely, so conditions may change quickly.")
	}

	if baseline.Provenance == ProvenanceProxiedPriorYear && !baseline.SourceDate.IsZero() {
		fmt.Fprintf(&b, " The date is in the future, so %d observations stand in for it.", baseline.SourceDate.Year())
	}

	b.WriteString(" (Blends satellite observations with learned-model and multi-year trend estimates.)")
	return b.String()
}

func outlook(probability float64) string {
	switch {
	case probability < 0.2:
		return "Skies look clear."
	case probability < 0.5:
		return "Low chance of rain; keep an eye on the sky."
	case probability < 0.75:
		return "Moderate rain risk. Have a backup plan ready."
	case probability < 0.9:
		return "High chance of showers. Bring rain gear and cover equipment."
	default:
		return "Heavy rain is likely. Consider rescheduling or moving indoors."
	}
}

package correlation

import (
	"fmt"
	"log/slog"
	"math"

	"stmtguard/internal/dedupe/models"
)

// BandTable classifies match percentages. Bands are ordered, contiguous and
// closed-open; severity never decreases from one band to the next.
type BandTable struct {
	bands []models.RiskBand
}

// NewBandTable validates bands and returns a table over a private copy.
func NewBandTable(bands []models.RiskBand) (*BandTable, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("band table requires at least one band")
	}
	for i, b := range bands {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || b.Min >= b.Max {
			return nil, fmt.Errorf("band %d (%s): min %v must be below max %v", i, b.Status, b.Min, b.Max)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if b.Min != prev.Max {
			return nil, fmt.Errorf("band %d (%s) starts at %v, previous ends at %v", i, b.Status, b.Min, prev.Max)
		}
		if b.Status.Severity() < prev.Status.Severity() {
			return nil, fmt.Errorf("band %d (%s) is less severe than band %d (%s)", i, b.Status, i-1, prev.Status)
		}
	}
	return &BandTable{bands: append([]models.RiskBand(nil), bands...)}, nil
}

// DefaultBandTable is the production classification: any overlap above a
// hundredth of a percent is a partial match, half or more is an exact
// duplicate.
func DefaultBandTable() *BandTable {
	t, err := NewBandTable([]models.RiskBand{
		{
			Status:            models.StatusGreen,
			MatchType:         "No Significant Match",
			RiskLevel:         "Low",
			ReasonForFlagging: "No significant match detected.",
			Recommendation:    "No Further Action Required",
			Min:               0,
			Max:               0.01,
		},
		{
			Status:            models.StatusAmber,
			MatchType:         "Partial Match",
			RiskLevel:         "Medium",
			ReasonForFlagging: "Partial match found with similar amount or date.",
			Recommendation:    "Review Suggested",
			Min:               0.01,
			Max:               50,
		},
		{
			Status:            models.StatusRed,
			MatchType:         "Exact Duplicate",
			RiskLevel:         "High",
			ReasonForFlagging: "Exact duplicate found with same amount, date & counterparty.",
			Recommendation:    "Further Investigation Required",
			Min:               50,
			Max:               models.Unbounded,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Bands returns a copy of the table.
func (t *BandTable) Bands() []models.RiskBand {
	return append([]models.RiskBand(nil), t.bands...)
}

// Lowest is the least severe band.
func (t *BandTable) Lowest() models.RiskBand {
	return t.bands[0]
}

// Highest is the most severe band.
func (t *BandTable) Highest() models.RiskBand {
	return t.bands[len(t.bands)-1]
}

// Classify returns the band containing pct. A percentage outside every band
// falls back to the lowest band and reports fallback=true.
func (t *BandTable) Classify(pct float64) (band models.RiskBand, fallback bool) {
	for _, b := range t.bands {
		if b.Contains(pct) {
			return b, false
		}
	}
	return t.bands[0], true
}

func (t *BandTable) classifyLogged(logger *slog.Logger, pct float64) models.RiskBand {
	band, fallback := t.Classify(pct)
	if fallback {
		logger.Warn("match percentage outside every risk band, using lowest band",
			"match_percentage", pct,
			"status", string(band.Status),
		)
	}
	return band
}

package impact

import "github.com/xaenox/emotrack/internal/models"

// StateMultipliers scale a message's impact per timescale.
type StateMultipliers map[models.Timescale]float64

// MultiplierTable maps an age category to its timescale multipliers.
type MultiplierTable map[models.AgeCategory]StateMultipliers

// DefaultMultiplierTable routes recent events to the short term and old ones to
// the long term. Future events never touch the long term.
func DefaultMultiplierTable() MultiplierTable {
	return MultiplierTable{
		models.AgeRecent:  {models.ShortTerm: 1.0, models.MidTerm: 0.6, models.LongTerm: 0.2},
		models.AgeMedium:  {models.ShortTerm: 0.3, models.MidTerm: 0.9, models.LongTerm: 0.5},
		models.AgeDistant: {models.ShortTerm: 0.05, models.MidTerm: 0.3, models.LongTerm: 0.8},
		models.AgeFuture:  {models.ShortTerm: 0.7, models.MidTerm: 0.4, models.LongTerm: 0.0},
		models.AgeUnknown: {models.ShortTerm: 0.5, models.MidTerm: 0.5, models.LongTerm: 0.3},
	}
}

// MultipliersFor looks the category up in overrides first, then in the
// defaults, then falls back to the unknown row. Missing timescales in an
// override row take the default value.
func MultipliersFor(age models.AgeCategory, overrides MultiplierTable) StateMultipliers {
	defaults := DefaultMultiplierTable()
	row, ok := defaults[age]
	if !ok {
		row = defaults[models.AgeUnknown]
	}

	out := make(StateMultipliers, len(models.Timescales))
	for _, t := range models.Timescales {
		out[t] = row[t]
	}
	if custom, ok := overrides[age]; ok {
		for _, t := range models.Timescales {
			if v, ok := custom[t]; ok {
				out[t] = clamp(v, 0, 1)
			}
		}
	}
	return out
}

func (m MultiplierTable) Clone() MultiplierTable {
	out := make(MultiplierTable, len(m))
	for age, row := range m {
		cp := make(StateMultipliers, len(row))
		for t, v := range row {
			cp[t] = v
		}
		out[age] = cp
	}
	return out
}

package storm

import "fmt"

// CovariateLookup maps a calendar year to an annual covariate value
// (e.g. a climate index). Implementations decide how years beyond the
// historical range are handled, which is a modelling choice for
// extrapolation rather than a property of the data.
type CovariateLookup interface {
	At(year int) float64
}

// CovariateTable holds one covariate value per consecutive calendar
// year starting at FirstYear.
type CovariateTable struct {
	FirstYear int
	Values    []float64
}

// LastYear returns the final year covered by the table.
func (t CovariateTable) LastYear() int { return t.FirstYear + len(t.Values) - 1 }

// Validate checks that the table is non-empty.
func (t CovariateTable) Validate() error {
	if len(t.Values) == 0 {
		return fmt.Errorf("covariate table is empty: %w", ErrMissingData)
	}
	return nil
}

// CyclicLookup repeats the historical covariate sequence cyclically:
// any year is mapped into the covered range by floor modulo, so the
// historical record becomes a repeating cycle for extrapolation.
type CyclicLookup struct {
	Table CovariateTable
}

// At returns the covariate value for year, wrapping years outside the
// table into the historical cycle.
func (c CyclicLookup) At(year int) float64 {
	n := len(c.Table.Values)
	i := (year - c.Table.FirstYear) % n
	if i < 0 {
		i += n
	}
	return c.Table.Values[i]
}

// HoldLastLookup clamps years outside the historical range to the
// nearest covered year: years before the table hold the first value,
// years after it hold the last.
type HoldLastLookup struct {
	Table CovariateTable
}

// At returns the covariate value for year, clamped to the table range.
func (h HoldLastLookup) At(year int) float64 {
	i := year - h.Table.FirstYear
	if i < 0 {
		i = 0
	}
	if i >= len(h.Table.Values) {
		i = len(h.Table.Values) - 1
	}
	return h.Table.Values[i]
}

package storm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetValidate(t *testing.T) {
	window := Window{Start: 0, End: 10}

	tests := []struct {
		name   string
		events []Event
		window Window
		ok     bool
	}{
		{
			name:   "sorted events",
			events: []Event{{Start: 1, Duration: 0.1}, {Start: 2, Duration: 0.2}},
			window: window,
			ok:     true,
		},
		{
			name:   "empty dataset",
			events: nil,
			window: window,
			ok:     false,
		},
		{
			name:   "coincident starts",
			events: []Event{{Start: 1}, {Start: 1}},
			window: window,
			ok:     false,
		},
		{
			name:   "decreasing starts",
			events: []Event{{Start: 2}, {Start: 1}},
			window: window,
			ok:     false,
		},
		{
			name:   "negative duration",
			events: []Event{{Start: 1, Duration: -0.5}},
			window: window,
			ok:     false,
		},
		{
			name:   "event outside window",
			events: []Event{{Start: 11}},
			window: window,
			ok:     false,
		},
		{
			name:   "empty window",
			events: []Event{{Start: 1}},
			window: Window{Start: 5, End: 5},
			ok:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &Dataset{Events: tc.events, Window: tc.window}
			err := d.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDeadTimeClipsToWindow(t *testing.T) {
	d := &Dataset{
		Events: []Event{
			{Start: 1, Duration: 0.5},
			{Start: 9.8, Duration: 0.5}, // runs past the window end
		},
		Window: Window{Start: 0, End: 10},
	}
	require.NoError(t, d.Validate())
	assert.InDelta(t, 0.5+0.2, d.DeadTime(), 1e-12)
}

func TestCyclicLookup(t *testing.T) {
	table := CovariateTable{FirstYear: 1990, Values: []float64{0.1, 0.2, 0.3}}
	c := CyclicLookup{Table: table}

	assert.Equal(t, 0.1, c.At(1990))
	assert.Equal(t, 0.3, c.At(1992))
	// Years beyond the record repeat the historical cycle.
	assert.Equal(t, 0.1, c.At(1993))
	assert.Equal(t, 0.2, c.At(1997))
	// Floor modulo: years before the record wrap backwards.
	assert.Equal(t, 0.3, c.At(1989))
}

func TestHoldLastLookup(t *testing.T) {
	table := CovariateTable{FirstYear: 1990, Values: []float64{0.1, 0.2, 0.3}}
	h := HoldLastLookup{Table: table}

	assert.Equal(t, 0.2, h.At(1991))
	assert.Equal(t, 0.3, h.At(2005))
	assert.Equal(t, 0.1, h.At(1980))
}

package search

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalrisk/stormfit/internal/nhpp"
	"github.com/coastalrisk/stormfit/internal/rate"
	"github.com/coastalrisk/stormfit/internal/storm"
)

func testDataset(n int, window storm.Window) *storm.Dataset {
	step := window.Length() / float64(n)
	events := make([]storm.Event, n)
	for i := 0; i < n; i++ {
		events[i] = storm.Event{Start: window.Start + (float64(i)+0.5)*step, Duration: 0.02}
	}
	return &storm.Dataset{Events: events, Window: window}
}

func TestGridCombinations(t *testing.T) {
	g := Grid{
		Annual:   []string{"constant", "linear"},
		Seasonal: []string{"none", "single_freq"},
		Cluster:  []string{"none"},
	}
	require.Equal(t, 4, g.Size())

	combos := g.Combinations()
	require.Len(t, combos, 4)
	for i, c := range combos {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, Combination{Index: 0, Annual: "constant", Seasonal: "none", Cluster: "none"}, combos[0])
	assert.Equal(t, Combination{Index: 3, Annual: "linear", Seasonal: "single_freq", Cluster: "none"}, combos[3])
}

func TestRunProducesOneResultPerCombination(t *testing.T) {
	reg := rate.NewRegistry()
	data := testDataset(40, storm.Window{Start: 0, End: 20})
	grid := Grid{
		Annual:   []string{"constant", "linear"},
		Seasonal: []string{"none", "single_freq"},
		Cluster:  []string{"none"},
	}

	results, err := Run(reg, data, grid, Options{})
	require.NoError(t, err)
	require.Len(t, results, grid.Size())

	for i, r := range results {
		assert.Equal(t, i, r.Index, "result slot mismatch")
		assert.NotEmpty(t, r.ModelID)
		if r.Err == "" {
			assert.Len(t, r.Theta, r.Npar, "model %s", r.ModelID)
			assert.NotNil(t, r.Rate, "model %s", r.ModelID)
		}
	}

	// The constant+none+none cell is a well-posed single-parameter fit
	// and must succeed with the event rate n/T.
	r0 := results[0]
	require.Empty(t, r0.Err)
	assert.True(t, r0.Converged)
	assert.InEpsilon(t, 2.0, r0.Theta[0], 0.05)
	assert.InEpsilon(t, 2.0, r0.Rate(3.3, 1.0), 0.05)
}

func TestRunRecordsFailureAndContinues(t *testing.T) {
	reg := rate.NewRegistry()
	reg.RegisterCluster(rate.Template{
		Name:  "broken",
		Npar:  1,
		Start: []float64{-1},
		Scale: []float64{1},
		Term:  func(_ []float64, _ int, _, _ float64) float64 { return 0 },
		CheckStart: func([]float64) error {
			return errors.New("start outside domain")
		},
	})

	data := testDataset(20, storm.Window{Start: 0, End: 10})
	grid := Grid{
		Annual:   []string{"constant"},
		Seasonal: []string{"none"},
		Cluster:  []string{"broken", "none"},
	}

	results, err := Run(reg, data, grid, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Err)
	assert.False(t, results[0].Converged)
	assert.Nil(t, results[0].StdErrs)

	assert.Empty(t, results[1].Err)
	assert.True(t, results[1].Converged)
}

func TestRunDegenerateMatchesDirectFit(t *testing.T) {
	// Fitting constant+none+none through the search loop must agree
	// bit-for-bit with a direct staged fit of the same composite.
	reg := rate.NewRegistry()
	data := testDataset(30, storm.Window{Start: 0, End: 15})

	results, err := Run(reg, data, Grid{
		Annual:   []string{"constant"},
		Seasonal: []string{"none"},
		Cluster:  []string{"none"},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Empty(t, results[0].Err)

	comp, err := reg.Compose("constant", "none", "none")
	require.NoError(t, err)
	ev, err := nhpp.NewEvaluator(comp.Eval, data, nhpp.Options{})
	require.NoError(t, err)
	direct, err := nhpp.Fit(ev.NegLogLik, comp.Start(), comp.Scale(), nhpp.FitOptions{})
	require.NoError(t, err)

	assert.Equal(t, direct.Theta, results[0].Theta)
	assert.Equal(t, direct.NLL, results[0].NLL)
}

func TestRunWarmStartCoversFullGrid(t *testing.T) {
	reg := rate.NewRegistry()
	data := testDataset(40, storm.Window{Start: 0, End: 20})
	grid := Grid{
		Annual:   []string{"constant"},
		Seasonal: []string{"none", "single_freq"},
		Cluster:  []string{"none", "exp_decay"},
	}

	warm, err := Run(reg, data, grid, Options{WarmStart: true})
	require.NoError(t, err)
	require.Len(t, warm, 4)

	cold, err := Run(reg, data, grid, Options{WarmStart: false})
	require.NoError(t, err)
	require.Len(t, cold, 4)

	for i := range warm {
		assert.Equal(t, cold[i].ModelID, warm[i].ModelID)
	}

	// The non-clustering cells do not depend on warm-start seeding and
	// must be identical across the two modes.
	assert.Equal(t, cold[0].Theta, warm[0].Theta)
	assert.Equal(t, cold[2].Theta, warm[2].Theta)
}

func TestRunRejectsMissingDataset(t *testing.T) {
	reg := rate.NewRegistry()
	_, err := Run(reg, nil, Grid{
		Annual:   []string{"constant"},
		Seasonal: []string{"none"},
		Cluster:  []string{"none"},
	}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, storm.ErrMissingData)
}

func TestSortByAIC(t *testing.T) {
	results := []FitResult{
		{ModelID: "worse", AIC: 120},
		{ModelID: "failed", Err: "boom", AIC: 0},
		{ModelID: "best", AIC: 100},
	}
	ranked := SortByAIC(results)
	assert.Equal(t, "best", ranked[0].ModelID)
	assert.Equal(t, "worse", ranked[1].ModelID)
	assert.Equal(t, "failed", ranked[2].ModelID)
}

func TestWriteCSV(t *testing.T) {
	reg := rate.NewRegistry()
	data := testDataset(20, storm.Window{Start: 0, End: 10})
	results, err := Run(reg, data, Grid{
		Annual:   []string{"constant"},
		Seasonal: []string{"none"},
		Cluster:  []string{"none"},
	}, Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, WriteCSV(path, results))
	assert.FileExists(t, path)
}

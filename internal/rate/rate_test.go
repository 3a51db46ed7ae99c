package rate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalrisk/stormfit/internal/storm"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.RegisterCovariateAnnual(storm.CyclicLookup{
		Table: storm.CovariateTable{FirstYear: 0, Values: []float64{1, 2, 3}},
	})
	return reg
}

func TestCompositeParameterCountInvariant(t *testing.T) {
	reg := testRegistry(t)

	annual := []string{"constant", "linear", "covariate"}
	seasonal := []string{"none", "single_freq", "double_freq"}
	cluster := []string{"none", "exp_decay"}

	for _, a := range annual {
		for _, s := range seasonal {
			for _, c := range cluster {
				comp, err := reg.Compose(a, s, c)
				require.NoError(t, err, "compose %s+%s+%s", a, s, c)

				na, ns, nc := comp.Npars()
				assert.Equal(t, na+ns+nc, comp.Npar(), "model %s", comp.Name())
				assert.Len(t, comp.Start(), comp.Npar(), "model %s", comp.Name())
				assert.Len(t, comp.Scale(), comp.Npar(), "model %s", comp.Name())
			}
		}
	}
}

func TestCompositeOffsets(t *testing.T) {
	reg := testRegistry(t)

	// linear(2) + single_freq(2) + exp_decay(2): each term must read its
	// own slice of theta at the resolved offset.
	comp, err := reg.Compose("linear", "single_freq", "exp_decay")
	require.NoError(t, err)
	require.Equal(t, 6, comp.Npar())

	theta := []float64{2, 0.5, 3, 0.25, 4, 10}
	tm := 1.5
	tlast := 1.0

	want := (2 + 0.5*tm) +
		3*math.Sin(2*math.Pi*tm+0.25) +
		4*math.Exp(-10*(tm-tlast))
	assert.InDelta(t, want, comp.Eval(theta, tm, tlast), 1e-12)
}

func TestZeroParameterTemplatesDegenerate(t *testing.T) {
	reg := testRegistry(t)

	full, err := reg.Compose("constant", "none", "none")
	require.NoError(t, err)

	// none+none must contribute nothing: the composite is exactly the
	// annual constant at every evaluation point.
	theta := []float64{7.5}
	for _, tm := range []float64{0, 0.3, 12.9} {
		assert.Equal(t, 7.5, full.Eval(theta, tm, math.Inf(-1)))
		assert.Equal(t, 7.5, full.Eval(theta, tm, tm-0.1))
	}
	assert.Equal(t, 1, full.Npar())
}

func TestExpDecayDomain(t *testing.T) {
	reg := testRegistry(t)
	comp, err := reg.Compose("constant", "none", "exp_decay")
	require.NoError(t, err)

	// Non-positive decay rate is outside the template's domain and must
	// surface as NaN for the evaluator to penalize.
	lam := comp.Eval([]float64{1, 1, -2}, 1.0, 0.5)
	assert.True(t, math.IsNaN(lam))

	// Before the first event the cluster term vanishes.
	lam = comp.Eval([]float64{1, 1, 2}, 1.0, math.Inf(-1))
	assert.Equal(t, 1.0, lam)
}

func TestCheckStart(t *testing.T) {
	reg := testRegistry(t)
	comp, err := reg.Compose("constant", "none", "exp_decay")
	require.NoError(t, err)

	require.NoError(t, comp.CheckStart([]float64{1, 1, 5}))

	err = comp.CheckStart([]float64{1, 1, -5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStart)

	err = comp.CheckStart([]float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStart)
}

func TestUnknownTemplate(t *testing.T) {
	reg := testRegistry(t)
	_, err := reg.Compose("constant", "quadratic_wave", "none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quadratic_wave")
}

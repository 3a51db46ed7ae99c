// Package rate builds parametrized conditional intensity functions for
// the storm arrival process. A composite rate model is the sum of one
// annual, one seasonal and one cluster sub-model; each sub-model is a
// registered template reading its own slice of a shared parameter
// vector at a fixed offset resolved at composition time.
package rate

import (
	"fmt"
	"math"

	"github.com/coastalrisk/stormfit/internal/storm"
)

// Term evaluates one additive intensity contribution at time t (decimal
// years). theta is the full composite parameter vector and off is the
// index of this template's first parameter. tlast is the start time of
// the most recent event strictly before t, or -Inf when no event has
// occurred yet. A Term may return NaN for parameter values outside its
// domain; the likelihood evaluator converts that into a penalty.
type Term func(theta []float64, off int, t, tlast float64) float64

// Template describes one registered sub-model: its additive term, the
// number of parameters it consumes, default start values and the
// parameter scales used to normalize optimizer steps. Templates are
// immutable once registered.
type Template struct {
	Name  string
	Npar  int
	Start []float64
	Scale []float64
	Term  Term

	// CheckStart validates a start slice of length Npar against the
	// template's domain constraints. Nil means unconstrained.
	CheckStart func(start []float64) error
}

// zeroTemplate is the 0-parameter "none" choice: no parameters, a
// constant zero contribution.
func zeroTemplate(name string) Template {
	return Template{
		Name: name,
		Term: func(_ []float64, _ int, _, _ float64) float64 { return 0 },
	}
}

// Registry holds the selectable sub-model templates, one namespace per
// component.
type Registry struct {
	annual   map[string]Template
	seasonal map[string]Template
	cluster  map[string]Template
}

// NewRegistry returns a registry populated with the built-in templates:
//
//	annual:   constant, linear
//	seasonal: none, single_freq, double_freq
//	cluster:  none, exp_decay
//
// The covariate annual template needs a lookup and is registered
// separately via RegisterCovariateAnnual.
func NewRegistry() *Registry {
	r := &Registry{
		annual:   map[string]Template{},
		seasonal: map[string]Template{},
		cluster:  map[string]Template{},
	}

	r.RegisterAnnual(Template{
		Name:  "constant",
		Npar:  1,
		Start: []float64{10},
		Scale: []float64{10},
		Term: func(theta []float64, off int, _, _ float64) float64 {
			return theta[off]
		},
	})

	r.RegisterAnnual(Template{
		Name:  "linear",
		Npar:  2,
		Start: []float64{10, 0},
		Scale: []float64{10, 1},
		Term: func(theta []float64, off int, t, _ float64) float64 {
			return theta[off] + theta[off+1]*t
		},
	})

	r.RegisterSeasonal(zeroTemplate("none"))

	r.RegisterSeasonal(Template{
		Name:  "single_freq",
		Npar:  2,
		Start: []float64{1, 0},
		Scale: []float64{1, 0.1},
		Term: func(theta []float64, off int, t, _ float64) float64 {
			return theta[off] * math.Sin(2*math.Pi*t+theta[off+1])
		},
	})

	r.RegisterSeasonal(Template{
		Name:  "double_freq",
		Npar:  4,
		Start: []float64{1, 0, 1, 0},
		Scale: []float64{1, 0.1, 1, 0.1},
		Term: func(theta []float64, off int, t, _ float64) float64 {
			return theta[off]*math.Sin(2*math.Pi*t+theta[off+1]) +
				theta[off+2]*math.Sin(4*math.Pi*t+theta[off+3])
		},
	})

	r.RegisterCluster(zeroTemplate("none"))

	r.RegisterCluster(Template{
		Name:  "exp_decay",
		Npar:  2,
		Start: []float64{1, 20},
		Scale: []float64{1, 10},
		Term: func(theta []float64, off int, t, tlast float64) float64 {
			omega := theta[off+1]
			if omega <= 0 {
				return math.NaN()
			}
			if math.IsInf(tlast, -1) {
				return 0
			}
			return theta[off] * math.Exp(-omega*(t-tlast))
		},
		CheckStart: func(start []float64) error {
			if start[1] <= 0 {
				return fmt.Errorf("%w: exp_decay decay rate must be positive, got %g", ErrBadStart, start[1])
			}
			return nil
		},
	})

	return r
}

// RegisterCovariateAnnual installs the "covariate" annual template,
// which links the annual rate to a climate index through the given
// lookup: theta0 + theta1 * X(year(t)).
func (r *Registry) RegisterCovariateAnnual(lookup storm.CovariateLookup) {
	r.RegisterAnnual(Template{
		Name:  "covariate",
		Npar:  2,
		Start: []float64{10, 0},
		Scale: []float64{10, 1},
		Term: func(theta []float64, off int, t, _ float64) float64 {
			return theta[off] + theta[off+1]*lookup.At(int(math.Floor(t)))
		},
	})
}

// RegisterAnnual adds or replaces an annual template.
func (r *Registry) RegisterAnnual(t Template) { r.annual[t.Name] = t }

// RegisterSeasonal adds or replaces a seasonal template.
func (r *Registry) RegisterSeasonal(t Template) { r.seasonal[t.Name] = t }

// RegisterCluster adds or replaces a cluster template.
func (r *Registry) RegisterCluster(t Template) { r.cluster[t.Name] = t }

func (r *Registry) lookup(kind string, m map[string]Template, name string) (Template, error) {
	t, ok := m[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown %s template %q", kind, name)
	}
	return t, nil
}

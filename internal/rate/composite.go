package rate

import (
	"fmt"
	"strings"
)

// Composite is the sum of one annual, one seasonal and one cluster
// template with disjoint parameter ranges. Offsets are fixed at
// construction in the order (annual, seasonal, cluster); evaluation
// never re-derives index arithmetic.
type Composite struct {
	annual   Template
	seasonal Template
	cluster  Template

	offSeasonal int
	offCluster  int
	npar        int

	name  string
	start []float64
	scale []float64
}

// Compose builds the composite rate model for the named templates.
func (r *Registry) Compose(annual, seasonal, cluster string) (*Composite, error) {
	a, err := r.lookup("annual", r.annual, annual)
	if err != nil {
		return nil, err
	}
	s, err := r.lookup("seasonal", r.seasonal, seasonal)
	if err != nil {
		return nil, err
	}
	c, err := r.lookup("cluster", r.cluster, cluster)
	if err != nil {
		return nil, err
	}

	comp := &Composite{
		annual:      a,
		seasonal:    s,
		cluster:     c,
		offSeasonal: a.Npar,
		offCluster:  a.Npar + s.Npar,
		npar:        a.Npar + s.Npar + c.Npar,
		name:        strings.Join([]string{annual, seasonal, cluster}, "+"),
	}

	comp.start = make([]float64, 0, comp.npar)
	comp.start = append(comp.start, a.Start...)
	comp.start = append(comp.start, s.Start...)
	comp.start = append(comp.start, c.Start...)

	comp.scale = make([]float64, 0, comp.npar)
	comp.scale = append(comp.scale, a.Scale...)
	comp.scale = append(comp.scale, s.Scale...)
	comp.scale = append(comp.scale, c.Scale...)

	return comp, nil
}

// Eval returns the intensity lambda(theta, t, tlast) as the sum of the
// three template terms.
func (c *Composite) Eval(theta []float64, t, tlast float64) float64 {
	return c.annual.Term(theta, 0, t, tlast) +
		c.seasonal.Term(theta, c.offSeasonal, t, tlast) +
		c.cluster.Term(theta, c.offCluster, t, tlast)
}

// Name returns the composite identifier, e.g. "constant+single_freq+none".
func (c *Composite) Name() string { return c.name }

// Npar returns the total parameter count.
func (c *Composite) Npar() int { return c.npar }

// Npars returns the per-component parameter counts in composition
// order (annual, seasonal, cluster).
func (c *Composite) Npars() (annual, seasonal, cluster int) {
	return c.annual.Npar, c.seasonal.Npar, c.cluster.Npar
}

// Start returns a copy of the flattened default start vector.
func (c *Composite) Start() []float64 {
	out := make([]float64, c.npar)
	copy(out, c.start)
	return out
}

// Scale returns a copy of the flattened parameter scale vector.
func (c *Composite) Scale() []float64 {
	out := make([]float64, c.npar)
	copy(out, c.scale)
	return out
}

// CheckStart validates a full start vector against each template's
// domain constraints, failing fast before any optimizer call.
func (c *Composite) CheckStart(start []float64) error {
	if len(start) != c.npar {
		return fmt.Errorf("%w: model %s expects %d parameters, got %d", ErrBadStart, c.name, c.npar, len(start))
	}
	parts := []struct {
		tpl Template
		off int
	}{
		{c.annual, 0},
		{c.seasonal, c.offSeasonal},
		{c.cluster, c.offCluster},
	}
	for _, p := range parts {
		if p.tpl.CheckStart == nil {
			continue
		}
		if err := p.tpl.CheckStart(start[p.off : p.off+p.tpl.Npar]); err != nil {
			return fmt.Errorf("model %s, %s term: %w", c.name, p.tpl.Name, err)
		}
	}
	return nil
}

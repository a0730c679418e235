// Package layout computes the position of the checkout summary card that
// sticks to the viewport while its column scrolls.
package layout

import "sync"

type Mode string

const (
	// ModeRelative: the card sits in normal flow above the sticky window.
	ModeRelative Mode = "relative"
	// ModeFixed: the card is pinned Options.Top below the viewport top.
	ModeFixed Mode = "fixed"
	// ModeAbsolute: the card rests at the bottom of its container.
	ModeAbsolute Mode = "absolute"
)

// Geometry is one set of live measurements, in CSS pixels. ContainerTop is
// the container's document offset.
type Geometry struct {
	ViewportWidth   float64 `json:"viewportWidth"`
	ScrollY         float64 `json:"scrollY"`
	ContainerTop    float64 `json:"containerTop"`
	ContainerHeight float64 `json:"containerHeight"`
	CardHeight      float64 `json:"cardHeight"`
}

type Options struct {
	Top        float64 `json:"top"`
	Bottom     float64 `json:"bottom"`
	Breakpoint float64 `json:"breakpoint"`
}

// Style positions the card. In ModeFixed Top is relative to the viewport,
// in ModeAbsolute to the container.
type Style struct {
	Position Mode    `json:"position"`
	Top      float64 `json:"top"`
}

// Compute returns nil when the viewport is narrower than the breakpoint,
// leaving the card static.
func Compute(g Geometry, o Options) *Style {
	if g.ViewportWidth < o.Breakpoint {
		return nil
	}

	start := g.ContainerTop - o.Top
	rest := g.ContainerHeight - g.CardHeight - o.Bottom
	end := start + rest

	switch {
	case rest <= 0, g.ScrollY < start:
		return &Style{Position: ModeRelative}
	case g.ScrollY <= end:
		return &Style{Position: ModeFixed, Top: o.Top}
	default:
		return &Style{Position: ModeAbsolute, Top: rest}
	}
}

// Affix keeps the latest measurements and recomputes the style on every
// event. Its style is nil until the first Measure.
type Affix struct {
	mu       sync.Mutex
	opts     Options
	geo      Geometry
	measured bool
	style    *Style
}

func NewAffix(o Options, viewportWidth float64) *Affix {
	return &Affix{opts: o, geo: Geometry{ViewportWidth: viewportWidth}}
}

// Measure records container and card sizes, as done after first paint.
func (a *Affix) Measure(containerTop, containerHeight, cardHeight float64) *Style {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.geo.ContainerTop = containerTop
	a.geo.ContainerHeight = containerHeight
	a.geo.CardHeight = cardHeight
	a.measured = true
	return a.recomputeLocked()
}

func (a *Affix) Scroll(y float64) *Style {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.geo.ScrollY = y
	return a.recomputeLocked()
}

func (a *Affix) Resize(viewportWidth float64) *Style {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.geo.ViewportWidth = viewportWidth
	return a.recomputeLocked()
}

func (a *Affix) Style() *Style {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.style
}

func (a *Affix) recomputeLocked() *Style {
	if !a.measured {
		return nil
	}
	a.style = Compute(a.geo, a.opts)
	return a.style
}

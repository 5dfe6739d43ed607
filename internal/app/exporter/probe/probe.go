// Package probe defines the single integration point between the refresh loop
// and whatever actually measures the monitored targets.
package probe

import (
	"context"
	"errors"
)

var (
	// ErrTimeout is returned when a probe does not finish within its deadline.
	ErrTimeout = errors.New("probe timeout")
	// ErrTransport covers network failures and failures to run the status tool.
	ErrTransport = errors.New("probe transport error")
	// ErrDecode is returned when the probed source answers with an unexpected shape.
	ErrDecode = errors.New("probe decode error")
)

// Reading is the raw output of one probe call. It must not be modified after
// it has been returned from Fetch.
type Reading struct {
	// Metrics holds flat aggregate gauges.
	Metrics map[string]float64
	// Statuses maps a target to its up/down state. Nil means the probe
	// does not report targets at all.
	Statuses map[string]bool
	// Attributes holds one numeric value per target (uptime in seconds).
	Attributes map[string]float64
}

// GaugeDesc documents an aggregate gauge and the value it takes before any
// successful probe.
type GaugeDesc struct {
	Name    string
	Help    string
	Default float64
}

// Probe obtains one Reading. Implementations must honour ctx cancellation.
type Probe interface {
	Name() string
	Fetch(ctx context.Context) (Reading, error)
}

// Describer is implemented by probes that know their gauge set up front.
type Describer interface {
	Describe() []GaugeDesc
}

// Describe returns the gauges p declares, or nil.
func Describe(p Probe) []GaugeDesc {
	if d, ok := p.(Describer); ok {
		return d.Describe()
	}
	return nil
}

// Func adapts a plain function to the Probe interface. Handy for tests.
type Func func(ctx context.Context) (Reading, error)

func (f Func) Name() string { return "func" }

func (f Func) Fetch(ctx context.Context) (Reading, error) {
	return f(ctx)
}

// Closer is implemented by probes holding resources (connection pools).
type Closer interface {
	Close()
}

// Close releases p's resources if it holds any.
func Close(p Probe) {
	if c, ok := p.(Closer); ok {
		c.Close()
	}
}

// timeoutOr maps an expired context to ErrTimeout and everything else to kind.
func timeoutOr(ctx context.Context, kind error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return kind
}

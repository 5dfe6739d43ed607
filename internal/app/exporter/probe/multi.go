package probe

import (
	"context"
	"fmt"
	"strings"
)

// Multi fetches several probes in order and merges their readings. If any
// probe fails the whole fetch fails, so a partial reading never reaches the
// store. A target reported by two probes keeps the later probe's values.
type Multi []Probe

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, p := range m {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

func (m Multi) Describe() []GaugeDesc {
	var out []GaugeDesc
	for _, p := range m {
		out = append(out, Describe(p)...)
	}
	return out
}

func (m Multi) Fetch(ctx context.Context) (Reading, error) {
	var merged Reading
	for _, p := range m {
		r, err := p.Fetch(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("%s: %w", p.Name(), err)
		}
		if r.Metrics != nil {
			if merged.Metrics == nil {
				merged.Metrics = make(map[string]float64, len(r.Metrics))
			}
			for k, v := range r.Metrics {
				merged.Metrics[k] = v
			}
		}
		if r.Statuses != nil {
			if merged.Statuses == nil {
				merged.Statuses = make(map[string]bool, len(r.Statuses))
				merged.Attributes = make(map[string]float64, len(r.Statuses))
			}
			for k, up := range r.Statuses {
				merged.Statuses[k] = up
				merged.Attributes[k] = r.Attributes[k]
			}
		}
	}
	return merged, nil
}

func (m Multi) Close() {
	for _, p := range m {
		Close(p)
	}
}

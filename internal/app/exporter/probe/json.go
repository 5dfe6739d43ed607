package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/Hobrus/svcexporter.git/internal/pkg/retry"
)

// JSONField maps one numeric key of a section of the probed document to a gauge.
type JSONField struct {
	Section string
	Key     string
	Gauge   GaugeDesc
}

// AchievementFields is the field map of the metrics-json endpoint.
var AchievementFields = []JSONField{
	{"energy", "reduction_percent", GaugeDesc{"achievement_energy_reduction_percent", "Energy reduction %", 0}},
	{"energy", "baseline_kwh", GaugeDesc{"achievement_energy_baseline_kwh", "Baseline kWh", 0}},
	{"energy", "current_kwh", GaugeDesc{"achievement_energy_current_kwh", "Current kWh", 0}},
	{"energy", "target_reduction_percent", GaugeDesc{"achievement_energy_target_percent", "Target reduction %", 0}},

	{"cost_savings", "monthly_savings", GaugeDesc{"achievement_cost_savings_azn", "Monthly savings AZN", 0}},
	{"cost_savings", "min_savings", GaugeDesc{"achievement_cost_min_azn", "Min savings AZN", 0}},
	{"cost_savings", "max_savings", GaugeDesc{"achievement_cost_max_azn", "Max savings AZN", 0}},

	{"co2_reduction", "monthly_reduction_kg", GaugeDesc{"achievement_co2_reduction_kg", "CO2 reduction kg", 0}},
	{"co2_reduction", "trees_equivalent", GaugeDesc{"achievement_co2_trees_equivalent", "Trees equivalent", 0}},

	{"security", "threats_detected", GaugeDesc{"achievement_security_threats_detected", "Threats detected", 0}},
	{"security", "threats_blocked", GaugeDesc{"achievement_security_threats_blocked", "Threats blocked", 0}},
	{"security", "requests_scanned", GaugeDesc{"achievement_security_requests_scanned", "Requests scanned", 0}},
	{"security", "accuracy_percent", GaugeDesc{"achievement_security_accuracy_percent", "Accuracy %", 0}},

	{"servers", "total_monitored", GaugeDesc{"achievement_servers_total", "Total servers", 0}},
	{"servers", "online", GaugeDesc{"achievement_servers_online", "Servers online", 0}},
	{"servers", "in_sleep_mode", GaugeDesc{"achievement_servers_sleep_mode", "Servers sleep", 0}},
	{"servers", "avg_cpu_percent", GaugeDesc{"achievement_avg_cpu_percent", "Avg CPU %", 0}},
	{"servers", "avg_memory_percent", GaugeDesc{"achievement_avg_memory_percent", "Avg memory %", 0}},
	{"servers", "avg_temperature_celsius", GaugeDesc{"achievement_avg_temperature_celsius", "Avg temp °C", 0}},

	{"thresholds", "cpu_warning", GaugeDesc{"threshold_cpu_warning_percent", "CPU warn %", 80}},
	{"thresholds", "cpu_critical", GaugeDesc{"threshold_cpu_critical_percent", "CPU critical %", 95}},
	{"thresholds", "memory_warning", GaugeDesc{"threshold_memory_warning_percent", "Memory warn %", 85}},
	{"thresholds", "temperature_warning", GaugeDesc{"threshold_temperature_warning_celsius", "Temp warn °C", 70}},
}

// JSONProbe fetches a JSON document over HTTP and turns it into aggregate gauges.
type JSONProbe struct {
	URL    string
	Fields []JSONField
	Client *fasthttp.Client
}

func NewJSONProbe(url string) *JSONProbe {
	return &JSONProbe{
		URL:    url,
		Fields: AchievementFields,
		Client: &fasthttp.Client{
			Name:                "svcexporter",
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (p *JSONProbe) Name() string { return "json:" + p.URL }

func (p *JSONProbe) Describe() []GaugeDesc {
	out := make([]GaugeDesc, 0, len(p.Fields))
	for _, f := range p.Fields {
		out = append(out, f.Gauge)
	}
	return out
}

func (p *JSONProbe) Fetch(ctx context.Context) (Reading, error) {
	var body []byte
	err := retry.DoWithRetry(ctx, func() error {
		b, err := p.get(ctx)
		body = b
		return err
	})
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, ErrTimeout) {
			return Reading{}, fmt.Errorf("%w: GET %s: %v", ErrTimeout, p.URL, err)
		}
		if errors.Is(err, ErrDecode) || errors.Is(err, ErrTransport) {
			return Reading{}, err
		}
		return Reading{}, fmt.Errorf("%w: GET %s: %v", timeoutOr(ctx, ErrTransport), p.URL, err)
	}
	return p.decode(body)
}

func (p *JSONProbe) get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", timeoutOr(ctx, ErrTransport), err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = p.Client.DoDeadline(req, resp, deadline)
	} else {
		err = p.Client.Do(req, resp)
	}
	if err != nil {
		return nil, err
	}

	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d", ErrTransport, p.URL, code)
	}
	// resp.Body() is only valid until the response is released.
	return append([]byte(nil), resp.Body()...), nil
}

func (p *JSONProbe) decode(body []byte) (Reading, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc == nil {
		return Reading{}, fmt.Errorf("%w: document is not an object", ErrDecode)
	}

	sections := make(map[string]map[string]any)
	metrics := make(map[string]float64, len(p.Fields))
	for _, f := range p.Fields {
		sec, ok := sections[f.Section]
		if !ok {
			raw, present := doc[f.Section]
			if present && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				if err := json.Unmarshal(raw, &sec); err != nil {
					return Reading{}, fmt.Errorf("%w: section %q: %v", ErrDecode, f.Section, err)
				}
			}
			sections[f.Section] = sec
		}

		v, ok := sec[f.Key]
		if !ok || v == nil {
			metrics[f.Gauge.Name] = f.Gauge.Default
			continue
		}
		num, ok := v.(float64)
		if !ok {
			return Reading{}, fmt.Errorf("%w: %s.%s is %T, want number", ErrDecode, f.Section, f.Key, v)
		}
		metrics[f.Gauge.Name] = num
	}

	return Reading{Metrics: metrics}, nil
}

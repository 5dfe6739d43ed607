// Package encoder renders a snapshot in the Prometheus text exposition format.
package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/probe"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/snapshot"
	"github.com/Hobrus/svcexporter.git/internal/pkg/buildinfo"
)

// ErrEncoding signals a snapshot that cannot be rendered, e.g. an invalid
// metric name coming from a probe.
var ErrEncoding = errors.New("exposition encoding error")

// ContentType of the rendered document.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

const (
	TargetLabel = "service"

	BuildInfoMetric   = "exporter_build_info"
	StatusMetric      = "service_status"
	UptimeMetric      = "service_uptime_seconds"
	TotalMetric       = "services_total"
	RunningMetric     = "services_running"
	DurationMetric    = "service_check_duration_seconds"
	TimestampMetric   = "service_check_timestamp_seconds"
	LastSuccessMetric = "exporter_last_check_success"
	ReloadsMetric     = "metrics_exporter_reloads_total"
	defaultHelp       = "Gauge reported by the probe"
	typeGauge         = "gauge"
	typeCounter       = "counter"
	durationPrecision = 4
)

var metricNameRe = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// reserved names are rendered by Encode itself; probe values under these
// names are dropped so a family never appears twice.
var reserved = map[string]bool{
	BuildInfoMetric:   true,
	StatusMetric:      true,
	UptimeMetric:      true,
	TotalMetric:       true,
	RunningMetric:     true,
	DurationMetric:    true,
	TimestampMetric:   true,
	LastSuccessMetric: true,
	ReloadsMetric:     true,
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

type Encoder struct {
	descs []probe.GaugeDesc
	info  buildinfo.Info
}

func New(descs []probe.GaugeDesc, info buildinfo.Info) *Encoder {
	return &Encoder{descs: descs, info: info}
}

// Encode renders s. Equal snapshots produce identical output.
func (e *Encoder) Encode(s *snapshot.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, BuildInfoMetric, "Information about this exporter", typeGauge)
	fmt.Fprintf(&buf, "%s{commit=\"%s\",date=\"%s\",version=\"%s\"} 1\n\n", BuildInfoMetric,
		labelEscaper.Replace(e.info.Commit), labelEscaper.Replace(e.info.Date), labelEscaper.Replace(e.info.Version))

	described := make(map[string]struct{}, len(e.descs))
	for _, d := range e.descs {
		if _, dup := described[d.Name]; dup || reserved[d.Name] {
			continue
		}
		described[d.Name] = struct{}{}
		v, ok := s.Metrics[d.Name]
		if !ok {
			v = d.Default
		}
		if err := writeScalar(&buf, d.Name, d.Help, typeGauge, formatFloat(v)); err != nil {
			return nil, err
		}
	}

	extra := make([]string, 0)
	for name := range s.Metrics {
		if _, ok := described[name]; !ok && !reserved[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		if err := writeScalar(&buf, name, defaultHelp, typeGauge, formatFloat(s.Metrics[name])); err != nil {
			return nil, err
		}
	}

	targets := s.Targets()

	writeHeader(&buf, StatusMetric, "Service status (1=running, 0=stopped)", typeGauge)
	for _, name := range targets {
		v := "0"
		if s.Statuses[name] {
			v = "1"
		}
		writeTargetSample(&buf, StatusMetric, name, v)
	}
	buf.WriteByte('\n')

	writeHeader(&buf, UptimeMetric, "Service uptime in seconds", typeGauge)
	for _, name := range targets {
		writeTargetSample(&buf, UptimeMetric, name, formatFloat(s.Attributes[name]))
	}
	buf.WriteByte('\n')

	// The remaining names are constants and always valid.
	_ = writeScalar(&buf, TotalMetric, "Total number of monitored services", typeGauge, strconv.Itoa(len(targets)))
	_ = writeScalar(&buf, RunningMetric, "Number of running services", typeGauge, strconv.Itoa(s.Running()))
	_ = writeScalar(&buf, DurationMetric, "Duration of last check", typeGauge,
		strconv.FormatFloat(s.LastCheckDuration.Seconds(), 'f', durationPrecision, 64))
	_ = writeScalar(&buf, TimestampMetric, "Timestamp of last successful check", typeGauge, formatTimestamp(s))

	success := "0"
	if s.LastError == "" && s.SuccessCount > 0 {
		success = "1"
	}
	_ = writeScalar(&buf, LastSuccessMetric, "Whether the last check succeeded", typeGauge, success)
	_ = writeScalar(&buf, ReloadsMetric, "Reload count", typeCounter, strconv.FormatUint(s.SuccessCount, 10))

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, help, typ string) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, escapeHelp(help))
	fmt.Fprintf(buf, "# TYPE %s %s\n", name, typ)
}

func writeScalar(buf *bytes.Buffer, name, help, typ, value string) error {
	if !metricNameRe.MatchString(name) {
		return fmt.Errorf("%w: invalid metric name %q", ErrEncoding, name)
	}
	writeHeader(buf, name, help, typ)
	fmt.Fprintf(buf, "%s %s\n\n", name, value)
	return nil
}

func writeTargetSample(buf *bytes.Buffer, metric, target, value string) {
	fmt.Fprintf(buf, "%s{%s=\"%s\"} %s\n", metric, TargetLabel, labelEscaper.Replace(target), value)
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTimestamp(s *snapshot.Snapshot) string {
	if s.LastSuccess.IsZero() {
		return "0"
	}
	return strconv.FormatFloat(float64(s.LastSuccess.UnixMilli())/1000, 'f', -1, 64)
}

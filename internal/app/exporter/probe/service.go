package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ServiceProbe reports the state of systemd units.
//
// A unit is up when its ActiveState is "active". Uptime is derived from the
// unit's ActiveEnterTimestamp as reported by systemd, so it reflects the real
// activation time rather than the polling cadence.
type ServiceProbe struct {
	Units []string
	Run   Runner
	Now   func() time.Time
}

func NewServiceProbe(units []string) *ServiceProbe {
	return &ServiceProbe{Units: units, Run: ExecRunner, Now: time.Now}
}

func (p *ServiceProbe) Name() string { return "systemd" }

func (p *ServiceProbe) Fetch(ctx context.Context) (Reading, error) {
	statuses := make(map[string]bool, len(p.Units))
	uptimes := make(map[string]float64, len(p.Units))

	for _, unit := range p.Units {
		up, uptime, err := p.check(ctx, unit)
		if err != nil {
			return Reading{}, err
		}
		statuses[unit] = up
		uptimes[unit] = uptime
	}

	return Reading{Statuses: statuses, Attributes: uptimes}, nil
}

func (p *ServiceProbe) check(ctx context.Context, unit string) (bool, float64, error) {
	out, err := p.Run(ctx, "systemctl", "show", unit,
		"--property=ActiveState,ActiveEnterTimestamp", "--timestamp=unix")
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, fmt.Errorf("%w: systemctl show %s: %v", timeoutOr(ctx, ErrTransport), unit, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// systemctl answered but refused the unit: report it as down.
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("%w: systemctl show %s: %v", ErrTransport, unit, err)
	}

	props, err := parseProperties(out)
	if err != nil {
		return false, 0, fmt.Errorf("%w: systemctl show %s: %v", ErrDecode, unit, err)
	}
	state, ok := props["ActiveState"]
	if !ok {
		return false, 0, fmt.Errorf("%w: systemctl show %s: no ActiveState", ErrDecode, unit)
	}
	if state != "active" {
		return false, 0, nil
	}

	started, ok := parseUnixTimestamp(props["ActiveEnterTimestamp"])
	if !ok {
		return true, 0, nil
	}
	uptime := p.Now().Sub(started).Seconds()
	if uptime < 0 {
		uptime = 0
	}
	return true, uptime, nil
}

func parseProperties(out []byte) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		props[k] = v
	}
	return props, sc.Err()
}

// parseUnixTimestamp parses "@1700000000" as printed with --timestamp=unix.
func parseUnixTimestamp(v string) (time.Time, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "@")
	if v == "" || v == "n/a" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

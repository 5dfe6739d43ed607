package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hobrus/svcexporter.git/internal/pkg/retry"
)

const postmasterUptimeQuery = `SELECT EXTRACT(EPOCH FROM now() - pg_postmaster_start_time())::float8`

const (
	// defaultTargetTimeout bounds a target check when the caller sets no deadline.
	defaultTargetTimeout = 5 * time.Second
	// connectTimeout bounds pool connects that outlive the check that started them.
	connectTimeout = 5 * time.Second
)

type pgTarget struct {
	name string
	pool *pgxpool.Pool
}

// PostgresProbe reports reachability of named PostgreSQL servers. The uptime
// attribute comes from pg_postmaster_start_time on the server itself.
type PostgresProbe struct {
	targets []pgTarget
}

// NewPostgresProbe builds one lazily connecting pool per target. It fails only
// on malformed DSNs; unreachable servers are reported as down at fetch time.
func NewPostgresProbe(ctx context.Context, dsns map[string]string) (*PostgresProbe, error) {
	names := make([]string, 0, len(dsns))
	for name := range dsns {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &PostgresProbe{}
	for _, name := range names {
		cfg, err := pgxpool.ParseConfig(dsns[name])
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to parse DSN for %q: %w", name, err)
		}
		cfg.MaxConns = 2
		cfg.MinConns = 0
		cfg.HealthCheckPeriod = 30 * time.Second
		cfg.ConnConfig.RuntimeParams["application_name"] = "svcexporter"
		if cfg.ConnConfig.ConnectTimeout == 0 {
			cfg.ConnConfig.ConnectTimeout = connectTimeout
		}

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create pgx pool for %q: %w", name, err)
		}
		p.targets = append(p.targets, pgTarget{name: name, pool: pool})
	}
	return p, nil
}

func (p *PostgresProbe) Name() string { return "postgres" }

// Fetch checks all targets concurrently. Each check gets its own deadline
// inside ctx's, so an unreachable or hung server is reported as down instead
// of consuming the whole budget. Only an expired ctx fails the fetch.
func (p *PostgresProbe) Fetch(ctx context.Context) (Reading, error) {
	budget := targetBudget(ctx)

	type result struct {
		up     bool
		uptime float64
	}
	results := make([]result, len(p.targets))

	var wg sync.WaitGroup
	for i, t := range p.targets {
		wg.Add(1)
		go func(i int, t pgTarget) {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()

			var secs float64
			err := retry.DoWithRetry(tctx, func() error {
				return t.pool.QueryRow(tctx, postmasterUptimeQuery).Scan(&secs)
			})
			if err == nil {
				results[i] = result{up: true, uptime: secs}
			}
		}(i, t)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Reading{}, fmt.Errorf("%w: postgres: %v", timeoutOr(ctx, ErrTransport), err)
	}

	statuses := make(map[string]bool, len(p.targets))
	uptimes := make(map[string]float64, len(p.targets))
	for i, t := range p.targets {
		statuses[t.name] = results[i].up
		uptimes[t.name] = results[i].uptime
	}
	return Reading{Statuses: statuses, Attributes: uptimes}, nil
}

// targetBudget leaves a quarter of ctx's remaining time for the rest of the
// cycle.
func targetBudget(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultTargetTimeout
	}
	return time.Until(deadline) * 3 / 4
}

func (p *PostgresProbe) Close() {
	for _, t := range p.targets {
		t.pool.Close()
	}
}

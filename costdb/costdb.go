// Package costdb persists measured system costs in PostgreSQL, so a fresh
// process can plan with realistic worker hints from its first tick.
package costdb

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/oriumgames/ecsched"
)

// Store wraps a pgx connection pool.
//
// Stored sample counts accumulate across saves, so the store remembers per
// profile how many samples it has already loaded or written and only adds
// the difference.
type Store struct {
	Pool *pgxpool.Pool
	log  *zap.Logger

	mu       sync.Mutex
	baseline map[string]map[ecsched.SystemID]uint64
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Store{Pool: pool, log: log, baseline: make(map[string]map[ecsched.SystemID]uint64)}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// Row is one persisted cost.
type Row struct {
	System  ecsched.SystemID
	CostMS  float64
	Samples uint64
}

// Load returns every stored cost of a profile.
func (s *Store) Load(ctx context.Context, profile string) (map[ecsched.SystemID]float64, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT system_id, cost_ms FROM system_costs WHERE profile = $1 ORDER BY system_id`, profile,
	)
	if err != nil {
		return nil, fmt.Errorf("load costs: %w", err)
	}
	defer rows.Close()

	out := make(map[ecsched.SystemID]float64)
	for rows.Next() {
		var id string
		var cost float64
		if err := rows.Scan(&id, &cost); err != nil {
			return nil, fmt.Errorf("scan cost: %w", err)
		}
		out[ecsched.SystemID(id)] = cost
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load costs: %w", err)
	}
	return out, nil
}

// Seed loads a profile into the model. It returns the number of seeded systems.
func (s *Store) Seed(ctx context.Context, profile string, m *ecsched.CostModel) (int, error) {
	costs, err := s.Load(ctx, profile)
	if err != nil {
		return 0, err
	}
	m.Seed(costs)

	seen := make(map[ecsched.SystemID]uint64, len(costs))
	for id := range costs {
		seen[id] = m.Samples(id)
	}
	s.mu.Lock()
	s.baseline[profile] = seen
	s.mu.Unlock()

	s.log.Info("cost profile loaded", zap.String("profile", profile), zap.Int("systems", len(costs)))
	return len(costs), nil
}

// Save upserts the model's averages under profile in one transaction.
func (s *Store) Save(ctx context.Context, profile string, m *ecsched.CostModel) error {
	// One save per profile at a time, so the baseline matches what committed.
	s.mu.Lock()
	defer s.mu.Unlock()

	current := Rows(m)
	if len(current) == 0 {
		return nil
	}
	rows := pending(current, s.baseline[profile])

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO system_costs (profile, system_id, cost_ms, samples, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (profile, system_id) DO UPDATE
			 SET cost_ms = EXCLUDED.cost_ms,
			     samples = system_costs.samples + EXCLUDED.samples,
			     updated_at = EXCLUDED.updated_at`,
			profile, string(r.System), r.CostMS, int64(r.Samples),
		); err != nil {
			return fmt.Errorf("save cost %s: %w", r.System, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	saved := make(map[ecsched.SystemID]uint64, len(current))
	for _, r := range current {
		saved[r.System] = r.Samples
	}
	s.baseline[profile] = saved
	s.log.Info("cost profile saved", zap.String("profile", profile), zap.Int("systems", len(rows)))
	return nil
}

// Delete removes a profile.
func (s *Store) Delete(ctx context.Context, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.Pool.Exec(ctx, `DELETE FROM system_costs WHERE profile = $1`, profile); err != nil {
		return err
	}
	delete(s.baseline, profile)
	return nil
}

// Rows returns the model's averages sorted by system id, skipping values
// the schema would reject.
func Rows(m *ecsched.CostModel) []Row {
	costs := m.Snapshot()
	out := make([]Row, 0, len(costs))
	for id, c := range costs {
		if !(c > 0) || math.IsInf(c, 0) {
			continue
		}
		out = append(out, Row{System: id, CostMS: c, Samples: m.Samples(id)})
	}
	slices.SortFunc(out, func(a, b Row) int {
		switch {
		case a.System < b.System:
			return -1
		case a.System > b.System:
			return 1
		}
		return 0
	})
	return out
}

// pending returns rows with their sample counts reduced to what the store
// has not yet recorded.
func pending(rows []Row, baseline map[ecsched.SystemID]uint64) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		if seen := baseline[r.System]; seen >= r.Samples {
			r.Samples = 0
		} else {
			r.Samples -= seen
		}
		out[i] = r
	}
	return out
}

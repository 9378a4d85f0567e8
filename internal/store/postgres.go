package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"truckplan/internal/model"
)

// Postgres backs the store with PostgreSQL through the pgx stdlib
// driver. Sources and assignment rows live as jsonb next to the run.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(raw)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreatePlanRun(ctx context.Context, run model.PlanRun) (model.PlanRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return model.PlanRun{}, err
	}
	assignments, err := json.Marshal(run.Assignments)
	if err != nil {
		return model.PlanRun{}, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO plan_runs
		  (id, tenant_id, created_at, status, reason, sources, destination,
		   solver, time_limit_sec, pool_size, objective, variables, constraints,
		   build_ms, solve_ms, assignments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		run.ID, run.TenantID, run.CreatedAt, string(run.Status), run.Reason,
		sources, run.Destination, run.Solver, run.TimeLimitSec, run.PoolSize,
		run.Objective, run.Variables, run.Constraints, run.BuildMs, run.SolveMs,
		assignments)
	if err != nil {
		return model.PlanRun{}, err
	}
	return run, nil
}

func scanRun(row interface {
	Scan(dest ...any) error
}, withAssignments bool) (model.PlanRun, error) {
	var run model.PlanRun
	var status string
	var sources, assignments []byte
	err := row.Scan(&run.ID, &run.TenantID, &run.CreatedAt, &status, &run.Reason,
		&sources, &run.Destination, &run.Solver, &run.TimeLimitSec, &run.PoolSize,
		&run.Objective, &run.Variables, &run.Constraints, &run.BuildMs, &run.SolveMs,
		&assignments)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	run.Status = model.RunStatus(status)
	if err := json.Unmarshal(sources, &run.Sources); err != nil {
		return run, err
	}
	if withAssignments {
		if err := json.Unmarshal(assignments, &run.Assignments); err != nil {
			return run, err
		}
	}
	return run, nil
}

const runColumns = `id::text, tenant_id, created_at, status, reason, sources,
	destination, solver, time_limit_sec, pool_size, objective, variables,
	constraints, build_ms, solve_ms, assignments`

func (p *Postgres) GetPlanRun(ctx context.Context, tenantID, id string) (model.PlanRun, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM plan_runs WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	return scanRun(row, true)
}

func (p *Postgres) ListPlanRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.PlanRun, string, error) {
	if limit <= 0 {
		limit = 50
	}
	off := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			off = n
		}
	}
	q := `SELECT ` + runColumns + ` FROM plan_runs WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit+1, off)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []model.PlanRun{}
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, "", err
		}
		out = append(out, run)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = strconv.Itoa(off + limit)
	}
	return out, next, rows.Err()
}

func (p *Postgres) ListAssignments(ctx context.Context, tenantID, planID string) ([]model.AssignmentRecord, error) {
	run, err := p.GetPlanRun(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	return run.Assignments, nil
}

func (p *Postgres) GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT config FROM planner_config WHERE tenant_id=$1`, tenantID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := map[string]any{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO planner_config (tenant_id, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`,
		tenantID, raw)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	events, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, tenant_id, url, events, secret)
		VALUES ($1,$2,$3,$4,$5)`,
		id, req.TenantID, req.URL, events, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, tenant_id, url, events, secret FROM subscriptions
		WHERE tenant_id=$1 AND (events @> to_jsonb(ARRAY[$2::text]) OR events @> '["*"]'::jsonb)`,
		tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var sub model.Subscription
		var events []byte
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.URL, &events, &sub.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &sub.Events); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 {
		limit = 50
	}
	off := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			off = n
		}
	}
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id::text, tenant_id, url, events, secret FROM subscriptions
		WHERE tenant_id=$1 ORDER BY id LIMIT %d OFFSET %d`, limit+1, off), tenantID)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(subs) > limit {
		subs = subs[:limit]
		next = strconv.Itoa(off + limit)
	}
	return subs, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries
		  (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
		id, tenantID, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id::text, tenant_id, subscription_id::text, event_type, url, secret, payload, status, attempts
		FROM webhook_deliveries
		WHERE status='pending' AND next_attempt_at <= now()
		ORDER BY next_attempt_at LIMIT %d`, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType,
			&d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `
			UPDATE webhook_deliveries
			SET status='delivered', attempts=attempts+1, last_error=$2,
			    response_code=$3, latency_ms=$4, delivered_at=now()
			WHERE id::text=$1`, id, lastError, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4,
		    next_attempt_at=COALESCE($5, next_attempt_at)
		WHERE id::text=$1`, id, lastError, responseCode, latencyMs, nextAttemptAt)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status='failed', attempts=attempts+1, last_error=$2,
		    response_code=$3, latency_ms=$4
		WHERE id::text=$1`, id, lastError, responseCode, latencyMs)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// profileColumns is the column list used for SELECT statements on the profiles table.
const profileColumns = `id, name, timezone, is_active, created_at, updated_at`

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, title, description, profile_ids, timezone,
	start_at, end_at, created_by, status, created_at, updated_at, update_logs`

// eventOrder is the ordering every event listing uses.
const eventOrder = ` ORDER BY start_at ASC, created_at ASC, id ASC`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every statement against a pool or a transaction. Both store
// types embed it and differ only in locking and transaction handling.
type conn struct {
	db executor
}

func (c conn) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return c.getEvent(ctx, id, false)
}

// notFound translates sql.ErrNoRows into model.ErrNotFound.
func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
	}
	return err
}

// requireRow reports model.ErrNotFound when an UPDATE matched nothing.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(kind, id, sql.ErrNoRows)
	}
	return nil
}

func (c conn) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, timezone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Timezone, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (c conn) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound("profile", id, err)
	}
	return p, nil
}

// GetProfiles returns the profiles among ids that exist, in the order
// the ids were given.
func (c conn) GetProfiles(ctx context.Context, ids []string) ([]*model.Profile, error) {
	ids = model.DedupeProfiles(ids)
	if len(ids) == 0 {
		return []*model.Profile{}, nil
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	found, err := scanAll(rows, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	byID := make(map[string]*model.Profile, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*model.Profile, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c conn) ListProfiles(ctx context.Context, filter model.ProfileFilter) ([]*model.Profile, error) {
	var (
		whereClauses []string
		args         []any
	)
	if !filter.IncludeInactive {
		whereClauses = append(whereClauses, "is_active")
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		whereClauses = append(whereClauses, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	q := `SELECT ` + profileColumns + ` FROM profiles`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += " ORDER BY name ASC, id ASC"

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	profiles, err := scanAll(rows, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	return profiles, nil
}

func (c conn) UpdateProfile(ctx context.Context, p *model.Profile) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE profiles SET
			name = $2,
			timezone = $3,
			is_active = $4,
			updated_at = $5
		WHERE id = $1`,
		p.ID, p.Name, p.Timezone, p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "profile", p.ID)
}

func (c conn) CreateEvent(ctx context.Context, e *model.Event) error {
	logs, err := marshalLogs(e.UpdateLogs)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO events (
			id, title, description, profile_ids, timezone,
			start_at, end_at, created_by, status, created_at, updated_at, update_logs
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12
		)`,
		e.ID,
		e.Title,
		e.Description,
		pq.Array(e.Profiles),
		e.Timezone,
		e.Start,
		e.End,
		e.CreatedBy,
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
		logs,
	)
	return err
}

// getEvent reads one event. With forUpdate the row stays locked until
// the enclosing transaction ends.
func (c conn) getEvent(ctx context.Context, id string, forUpdate bool) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	e, err := scanEvent(c.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound("event", id, err)
	}
	return e, nil
}

func (c conn) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProfileID != "" {
		whereClauses = append(whereClauses, nextArg()+" = ANY(profile_ids)")
		args = append(args, filter.ProfileID)
	}
	if filter.From != nil {
		whereClauses = append(whereClauses, "end_at > "+nextArg())
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		whereClauses = append(whereClauses, "start_at < "+nextArg())
		args = append(args, *filter.To)
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += eventOrder

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	events, err := scanAll(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

// UpdateEvent writes the snapshot fields of e. The ledger column is
// only ever extended by AppendUpdateLog.
func (c conn) UpdateEvent(ctx context.Context, e *model.Event) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE events SET
			title = $2,
			description = $3,
			profile_ids = $4,
			timezone = $5,
			start_at = $6,
			end_at = $7,
			status = $8,
			updated_at = $9
		WHERE id = $1`,
		e.ID,
		e.Title,
		e.Description,
		pq.Array(e.Profiles),
		e.Timezone,
		e.Start,
		e.End,
		string(e.Status),
		e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "event", e.ID)
}

func (c conn) AppendUpdateLog(ctx context.Context, eventID string, entry model.UpdateLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal update log: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE events
		SET update_logs = update_logs || jsonb_build_array($2::jsonb)
		WHERE id = $1`,
		eventID, data,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "event", eventID)
}

func (c conn) ListUpdateLogs(ctx context.Context, eventID string) ([]model.UpdateLogEntry, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT update_logs FROM events WHERE id = $1`, eventID).Scan(&raw)
	if err != nil {
		return nil, notFound("event", eventID, err)
	}
	return unmarshalLogs(raw)
}

func (c conn) RecordActivity(ctx context.Context, a *model.Activity) error {
	return c.db.QueryRowContext(ctx, `
		INSERT INTO activity (topic, subject_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.Topic, a.SubjectID, nullString(a.Actor), jsonbBytes(a.Payload),
	).Scan(&a.ID, &a.CreatedAt)
}

func (c conn) ListActivity(ctx context.Context, subjectID string) ([]*model.Activity, error) {
	q := `SELECT id, topic, subject_id, actor, payload, created_at FROM activity`
	var args []any
	if subjectID != "" {
		q += ` WHERE subject_id = $1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY id ASC`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanActivity)
}

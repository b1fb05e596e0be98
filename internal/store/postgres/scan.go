package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// scannable is satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAll drains rows through scan. The result is never nil.
func scanAll[T any](rows *sql.Rows, scan func(scannable) (T, error)) ([]T, error) {
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// utc normalizes driver times, which come back in the session zone.
func utc(ts ...*time.Time) {
	for _, t := range ts {
		*t = t.UTC()
	}
}

// scanProfile reads the columns named by profileColumns.
func scanProfile(row scannable) (*model.Profile, error) {
	p := &model.Profile{}
	if err := row.Scan(&p.ID, &p.Name, &p.Timezone, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	utc(&p.CreatedAt, &p.UpdatedAt)
	return p, nil
}

// scanEvent reads the columns named by eventColumns, ledger included.
func scanEvent(row scannable) (*model.Event, error) {
	e := &model.Event{}
	var (
		participants pq.StringArray
		ledger       []byte
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &participants, &e.Timezone,
		&e.Start, &e.End, &e.CreatedBy, &e.Status, &e.CreatedAt, &e.UpdatedAt, &ledger); err != nil {
		return nil, err
	}
	utc(&e.Start, &e.End, &e.CreatedAt, &e.UpdatedAt)
	e.Profiles = participants

	var err error
	if e.UpdateLogs, err = unmarshalLogs(ledger); err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	return e, nil
}

func scanActivity(row scannable) (*model.Activity, error) {
	a := &model.Activity{}
	var (
		actor   sql.NullString
		payload []byte
	)
	if err := row.Scan(&a.ID, &a.Topic, &a.SubjectID, &actor, &payload, &a.CreatedAt); err != nil {
		return nil, err
	}
	utc(&a.CreatedAt)
	a.Actor = actor.String
	if len(payload) > 0 {
		a.Payload = json.RawMessage(payload)
	}
	return a, nil
}

// marshalLogs encodes a ledger for the update_logs column; nil becomes [].
func marshalLogs(logs []model.UpdateLogEntry) ([]byte, error) {
	if logs == nil {
		logs = []model.UpdateLogEntry{}
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return nil, fmt.Errorf("encode update logs: %w", err)
	}
	return data, nil
}

// unmarshalLogs decodes the update_logs column. The result is never nil.
func unmarshalLogs(data []byte) ([]model.UpdateLogEntry, error) {
	logs := []model.UpdateLogEntry{}
	if len(data) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("decode update logs: %w", err)
	}
	return logs, nil
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonbBytes maps an empty payload to NULL.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return m
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"botadmin/internal/store"
)

var ErrNotFound = errors.New("not found")

// SaveSnapshot rewrites the single persisted state row wholesale. The blob
// carries no schema version; the whole row is replaced on every mutation.
func (s *Store) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	q := s.sql.Insert("snapshots").
		Columns("id", "state", "updated_at").
		Values(1, string(payload), nowExpr(s.driver)).
		Suffix("ON CONFLICT(id) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the persisted state, ErrNotFound on first boot.
func (s *Store) LoadSnapshot(ctx context.Context) (store.Snapshot, error) {
	q := s.sql.Select("state").From("snapshots").Where(sq.Eq{"id": 1})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("build snapshot query: %w", err)
	}

	var raw string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Snapshot{}, ErrNotFound
		}
		return store.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

type AuditEntry struct {
	ActorID   string
	Action    string
	MetaJSON  string
	CreatedAt time.Time
}

func (s *Store) LogAction(ctx context.Context, e AuditEntry) error {
	if e.MetaJSON == "" || !json.Valid([]byte(e.MetaJSON)) {
		e.MetaJSON = "{}"
	}

	q := s.sql.Insert("audit_log").
		Columns("actor_id", "action", "meta_json").
		Values(e.ActorID, e.Action, e.MetaJSON)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentActions returns the newest audit entries, most recent first.
func (s *Store) RecentActions(ctx context.Context, limit uint64) ([]AuditEntry, error) {
	if limit == 0 {
		limit = 50
	}
	q := s.sql.Select("actor_id", "action", "meta_json", "created_at").
		From("audit_log").
		OrderBy("created_at DESC").
		Limit(limit)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]AuditEntry, 0)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ActorID, &e.Action, &e.MetaJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}

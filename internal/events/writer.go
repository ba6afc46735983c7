package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit records inside the caller's transaction. Every
// state-changing operation records who did what to which entity, with
// before/after snapshots for the dispatcher log.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Details map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, action, entityKind, entityID, actorID string, before, after any, details Details) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	beforeJSON, err := snapshot(before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	afterJSON, err := snapshot(after)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}
	if details == nil {
		details = Details{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_events(ts,actor_id,action,entity_kind,entity_id,before_json,after_json,details_json) VALUES (?,?,?,?,?,?,?,?)`,
		ts, actorID, action, entityKind, nullable(entityID), beforeJSON, afterJSON, string(detailsJSON))
	return err
}

func snapshot(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

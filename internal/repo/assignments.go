package repo

import (
	"context"
	"database/sql"

	"washline/internal/domain"
)

// ReplaceBatch stores one optimizer output batch, replacing any prior
// rows under the same batch id.
func (r Repo) ReplaceBatch(ctx context.Context, tx *sql.Tx, batchID string, assignments []domain.Assignment) error {
	if _, err := exec(ctx, r.DB, tx, `DELETE FROM assignments WHERE batch_id=?`, batchID); err != nil {
		return err
	}
	for _, a := range assignments {
		if _, err := exec(ctx, r.DB, tx, `INSERT INTO assignments(task_id,crew_id,travel_time_minutes,batch_id) VALUES (?,?,?,?)`,
			a.TaskID, a.CrewID, a.TravelTimeMinutes, batchID); err != nil {
			return err
		}
	}
	return nil
}

// LatestBatchID returns the most recently written batch id, or
// ErrNotFound when no optimizer output has been imported.
func (r Repo) LatestBatchID(ctx context.Context) (string, error) {
	var batchID string
	err := r.DB.QueryRowContext(ctx, `SELECT batch_id FROM assignments ORDER BY rowid DESC LIMIT 1`).Scan(&batchID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return batchID, err
}

func (r Repo) ListBatch(ctx context.Context, batchID string) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT task_id,crew_id,travel_time_minutes,batch_id FROM assignments WHERE batch_id=? ORDER BY rowid ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.TaskID, &a.CrewID, &a.TravelTimeMinutes, &a.BatchID); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	"bdsgp/internal/history"
)

// SaveSamples upserts samples for a server. A later write for the same
// timestamp replaces the stored value.
func (d *DB) SaveSamples(ctx context.Context, serverUUID string, samples []history.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (server_uuid, query_time, player_count) VALUES (?, ?, ?)
		 ON CONFLICT(server_uuid, query_time) DO UPDATE SET player_count = excluded.player_count`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, serverUUID, s.Timestamp.UnixMilli(), s.Value); err != nil {
			return fmt.Errorf("save sample for %s: %w", serverUUID, err)
		}
	}
	return tx.Commit()
}

// LoadSamples returns a server's samples at or after since, oldest first.
// A zero since returns everything.
func (d *DB) LoadSamples(ctx context.Context, serverUUID string, since time.Time) ([]history.Sample, error) {
	var sinceMS int64
	if !since.IsZero() {
		sinceMS = since.UnixMilli()
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT query_time, player_count FROM samples
		 WHERE server_uuid = ? AND query_time >= ?
		 ORDER BY query_time ASC`, serverUUID, sinceMS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []history.Sample{}
	for rows.Next() {
		var ms int64
		var value float64
		if err := rows.Scan(&ms, &value); err != nil {
			return nil, err
		}
		out = append(out, history.Sample{Timestamp: time.UnixMilli(ms).UTC(), Value: value})
	}
	return out, rows.Err()
}

// Prune deletes samples older than before and reports how many were removed.
func (d *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM samples WHERE query_time < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSamples reports how many samples are stored for a server.
func (d *DB) CountSamples(ctx context.Context, serverUUID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE server_uuid = ?`, serverUUID).Scan(&n)
	return n, err
}

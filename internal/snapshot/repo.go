// Package snapshot stores fetched collections in sqlite so the dashboard can
// start from the last good copy.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carddash/pkg/models"
)

// ErrNoSnapshot is returned by Latest when nothing has been stored yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Save writes snap and its cards in one transaction. Saving an existing id
// replaces it.
func (r *Repo) Save(ctx context.Context, snap models.Snapshot) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, source, fetched_at, card_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  source = excluded.source,
		  fetched_at = excluded.fetched_at,
		  card_count = excluded.card_count
	`, snap.ID, snap.Source, snap.FetchedAt.UTC(), len(snap.Cards)); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_cards WHERE snapshot_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("clear cards for %s: %w", snap.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_cards (snapshot_id, position, payload)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, c := range snap.Cards {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal card %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.ID, i, string(payload)); err != nil {
			return fmt.Errorf("insert card %d of %s: %w", i, snap.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Latest loads the most recently fetched snapshot with its cards.
func (r *Repo) Latest(ctx context.Context) (models.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, source, fetched_at, card_count
		FROM snapshots
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT 1
	`)

	info, err := scanInfo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Snapshot{}, ErrNoSnapshot
		}
		return models.Snapshot{}, fmt.Errorf("scan latest: %w", err)
	}

	cards, err := r.cards(ctx, info.ID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{ID: info.ID, Source: info.Source, FetchedAt: info.FetchedAt, Cards: cards}, nil
}

// Get returns the snapshot with id, or (nil, nil) when there is none.
func (r *Repo) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, source, fetched_at, card_count
		FROM snapshots
		WHERE id = ?
	`, id)

	info, err := scanInfo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan get: %w", err)
	}

	cards, err := r.cards(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{ID: info.ID, Source: info.Source, FetchedAt: info.FetchedAt, Cards: cards}, nil
}

// List returns stored snapshots, newest first, without their cards.
func (r *Repo) List(ctx context.Context, limit int) ([]models.SnapshotInfo, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, source, fetched_at, card_count
		FROM snapshots
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query list: %w", err)
	}
	defer rows.Close()

	var out []models.SnapshotInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Prune deletes all but the keep newest snapshots and reports how many were
// removed. keep <= 0 keeps everything.
func (r *Repo) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const stale = `
		SELECT id FROM snapshots
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT -1 OFFSET ?`

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_cards WHERE snapshot_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune cards: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return int(n), nil
}

func (r *Repo) cards(ctx context.Context, id string) ([]models.Card, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT payload FROM snapshot_cards
		WHERE snapshot_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	out := []models.Card{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		var c models.Card
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(s scanner) (models.SnapshotInfo, error) {
	var (
		info      models.SnapshotInfo
		fetchedAt time.Time
	)
	if err := s.Scan(&info.ID, &info.Source, &fetchedAt, &info.CardCount); err != nil {
		return models.SnapshotInfo{}, err
	}
	info.FetchedAt = fetchedAt.UTC()
	return info, nil
}

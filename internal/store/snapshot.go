package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/dukerupert/laskutin/internal/model"
)

const snapshotCols = `id, filename, s3_key, size_bytes, status, error_message, started_at, completed_at, created_at`

func scanSnapshot(s scanner) (*model.Snapshot, error) {
	var sn model.Snapshot
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := s.Scan(&sn.ID, &sn.Filename, &sn.S3Key, &sn.SizeBytes, &sn.Status, &errMsg, &startedAt, &completedAt, &sn.CreatedAt)
	if err != nil {
		return nil, err
	}
	sn.ErrorMessage = errMsg.String
	if startedAt.Valid {
		sn.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		sn.CompletedAt = &completedAt.Time
	}
	return &sn, nil
}

type SnapshotStore struct {
	ledger *Ledger
}

func NewSnapshotStore(ledger *Ledger) *SnapshotStore {
	return &SnapshotStore{ledger: ledger}
}

func (s *SnapshotStore) Create(ctx context.Context, filename, s3Key string) (*model.Snapshot, error) {
	now := time.Now().UTC()
	var id int64
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (filename, s3_key, status, started_at, created_at) VALUES (?, ?, ?, ?, ?)`,
			filename, s3Key, model.SnapshotStatusPending, now, now)
		if err != nil {
			return storageErr("create snapshot", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return storageErr("last insert id", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{
		ID:        id,
		Filename:  filename,
		S3Key:     s3Key,
		Status:    model.SnapshotStatusPending,
		StartedAt: &now,
		CreatedAt: now,
	}, nil
}

func (s *SnapshotStore) GetByID(ctx context.Context, id int64) (*model.Snapshot, error) {
	var sn *model.Snapshot
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		var err error
		sn, err = scanSnapshot(tx.QueryRowContext(ctx, `SELECT `+snapshotCols+` FROM snapshots WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			sn = nil
			return nil
		}
		if err != nil {
			return storageErr("get snapshot", err)
		}
		return nil
	})
	return sn, err
}

func (s *SnapshotStore) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	var snapshots []model.Snapshot
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+snapshotCols+` FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
		if err != nil {
			return storageErr("list snapshots", err)
		}
		defer rows.Close()

		for rows.Next() {
			sn, err := scanSnapshot(rows)
			if err != nil {
				return storageErr("scan snapshot", err)
			}
			snapshots = append(snapshots, *sn)
		}
		if err := rows.Err(); err != nil {
			return storageErr("iterate snapshots", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *SnapshotStore) UpdateStatus(ctx context.Context, id int64, status model.SnapshotStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	return s.ledger.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE snapshots SET status = ?, error_message = ? WHERE id = ?`, status, errPtr, id)
		if err != nil {
			return storageErr("update snapshot status", err)
		}
		return nil
	})
}

func (s *SnapshotStore) UpdateCompleted(ctx context.Context, id, sizeBytes int64) error {
	now := time.Now().UTC()
	return s.ledger.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE snapshots SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
			model.SnapshotStatusCompleted, sizeBytes, now, id)
		if err != nil {
			return storageErr("update snapshot completed", err)
		}
		return nil
	})
}

// DeleteOlderThan deletes snapshot records created before the given time
// and returns their object keys.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	var keys []string
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT s3_key FROM snapshots WHERE created_at < ?`, before)
		if err != nil {
			return storageErr("select old snapshots", err)
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return storageErr("scan s3 key", err)
			}
			keys = append(keys, key)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storageErr("iterate old snapshots", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, before); err != nil {
			return storageErr("delete old snapshots", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, object_key, size_bytes, state, error, started_at, finished_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var finishedAt sql.NullTime

	err := scanner.Scan(&b.ID, &b.ObjectKey, &b.SizeBytes, &b.State, &b.Error, &b.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		b.FinishedAt = &t
	}
	return &b, nil
}

func (s *BackupStore) Begin(objectKey string, startedAt time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (object_key, state, started_at) VALUES (?, 'running', ?)`,
		objectKey, startedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *BackupStore) MarkCompleted(id, sizeBytes int64, finishedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE backups SET state = 'completed', size_bytes = ?, finished_at = ? WHERE id = ?`,
		sizeBytes, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(id int64, errMsg string, finishedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE backups SET state = 'failed', error = ?, finished_at = ? WHERE id = ?`,
		errMsg, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup failed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes backup rows started before the cutoff and
// returns their object keys so the caller can delete the stored objects.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT object_key FROM backups WHERE started_at < ?`, before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM backups WHERE started_at < ?`, before.UTC()); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT `+backupCols+` FROM backups ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) LastCompleted() (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT ` + backupCols + ` FROM backups WHERE state = 'completed' ORDER BY finished_at DESC LIMIT 1`)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed backup: %w", err)
	}
	return b, nil
}

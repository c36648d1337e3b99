package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smpawlowski/covid19/internal/domain"
)

// RunLogStore keeps run history in SQLite so it survives restarts.
type RunLogStore struct {
	db *DB
}

// NewRunLogStore creates a new RunLogStore.
func NewRunLogStore(db *DB) *RunLogStore {
	return &RunLogStore{db: db}
}

var _ domain.RunLogStore = (*RunLogStore)(nil)

// ── Run Logs ───────────────────────────────────────────────

func (s *RunLogStore) CreateRunLog(log *domain.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO run_logs (id, dataset, run_trigger, started_at, finished_at, status, rows_read, rows_published, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Dataset, log.Trigger, log.StartedAt, nullTime(log.FinishedAt), log.Status,
		log.RowsRead, log.RowsPublished, log.Error,
	)
	return err
}

func (s *RunLogStore) UpdateRunLog(log *domain.RunLog) error {
	res, err := s.db.conn.Exec(
		`UPDATE run_logs SET finished_at = ?, status = ?, rows_read = ?, rows_published = ?, error = ?
		 WHERE id = ?`,
		nullTime(log.FinishedAt), log.Status, log.RowsRead, log.RowsPublished, log.Error, log.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run log %s not found", log.ID)
	}
	return nil
}

// ListRunLogs returns the runs of a dataset, newest first. limit <= 0
// returns all of them.
func (s *RunLogStore) ListRunLogs(dataset string, limit int) ([]domain.RunLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.conn.Query(
		`SELECT id, dataset, run_trigger, started_at, finished_at, status, rows_read, rows_published, error
		 FROM run_logs WHERE dataset = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		dataset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.RunLog
	for rows.Next() {
		l, err := scanRunLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *RunLogStore) LastRun(dataset string) (*domain.RunLog, bool) {
	logs, err := s.ListRunLogs(dataset, 1)
	if err != nil || len(logs) == 0 {
		return nil, false
	}
	return &logs[0], true
}

func scanRunLog(rows *sql.Rows) (domain.RunLog, error) {
	var (
		l        domain.RunLog
		finished sql.NullTime
	)
	if err := rows.Scan(&l.ID, &l.Dataset, &l.Trigger, &l.StartedAt, &finished, &l.Status,
		&l.RowsRead, &l.RowsPublished, &l.Error); err != nil {
		return domain.RunLog{}, err
	}
	if finished.Valid {
		l.FinishedAt = finished.Time
	}
	return l, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

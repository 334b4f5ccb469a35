package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pulsewatch/pulsewatch/internal/errors"
	"github.com/pulsewatch/pulsewatch/internal/health"
)

// SQLiteStore implements ReportStore using SQLite
type SQLiteStore struct {
	db        *sql.DB
	retention int
}

// NewSQLiteStore opens or creates the archive database.
// _journal_mode=WAL allows concurrent readers with a single writer;
// _busy_timeout keeps archive writes from failing under moderate contention.
func NewSQLiteStore(dbPath string, retention int) (*SQLiteStore, error) {
	if retention <= 0 {
		retention = 1000
	}

	connStr := dbPath + "?_foreign_keys=1&mode=rwc&_journal_mode=WAL&_busy_timeout=3000"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, retention: retention}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS health_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL,
		critical_failures INTEGER NOT NULL,
		total_checks INTEGER NOT NULL,
		healthy_checks INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS check_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		critical BOOLEAN NOT NULL,
		error_message TEXT,
		details_json TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (report_id) REFERENCES health_reports(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_health_reports_created ON health_reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_check_results_report ON check_results(report_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport persists the report and its results in one transaction, then
// prunes rows beyond the retention cap
func (s *SQLiteStore) SaveReport(ctx context.Context, report *health.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransientf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO health_reports (status, critical_failures, total_checks, healthy_checks, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(report.Status), report.CriticalFailures, report.TotalChecks,
		report.HealthyChecks, report.Timestamp.Unix())
	if err != nil {
		return errors.NewTransientf("failed to insert report: %w", err)
	}

	reportID, err := res.LastInsertId()
	if err != nil {
		return errors.NewTransientf("failed to get report id: %w", err)
	}

	for _, result := range report.Results {
		var detailsJSON []byte
		if result.Details != nil {
			detailsJSON, _ = json.Marshal(result.Details)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_results (report_id, name, status, duration_ms, critical, error_message, details_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			reportID, result.Name, string(result.Status), result.DurationMS,
			result.Critical, result.Error, string(detailsJSON), result.Timestamp.Unix())
		if err != nil {
			return errors.NewTransientf("failed to insert check result: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM health_reports WHERE id NOT IN
		 (SELECT id FROM health_reports ORDER BY id DESC LIMIT ?)`,
		s.retention)
	if err != nil {
		return errors.NewTransientf("failed to prune reports: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransientf("failed to commit report: %w", err)
	}
	return nil
}

// ListReports returns archived reports newest first, with their check
// results in original execution order
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*health.Report, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, critical_failures, total_checks, healthy_checks, created_at
		 FROM health_reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewTransientf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*health.Report
	var ids []int64
	for rows.Next() {
		var id, createdAt int64
		var status string
		report := &health.Report{}
		if err := rows.Scan(&id, &status, &report.CriticalFailures,
			&report.TotalChecks, &report.HealthyChecks, &createdAt); err != nil {
			return nil, errors.NewTransientf("failed to scan report: %w", err)
		}
		report.Status = health.Status(status)
		report.Timestamp = time.Unix(createdAt, 0).UTC()
		report.Results = []health.CheckResult{}
		reports = append(reports, report)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("failed to iterate reports: %w", err)
	}

	for i, id := range ids {
		results, err := s.listResults(ctx, id)
		if err != nil {
			return nil, err
		}
		reports[i].Results = results
	}

	return reports, nil
}

func (s *SQLiteStore) listResults(ctx context.Context, reportID int64) ([]health.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, duration_ms, critical, error_message, details_json, created_at
		 FROM check_results WHERE report_id = ? ORDER BY id ASC`, reportID)
	if err != nil {
		return nil, errors.NewTransientf("failed to query check results: %w", err)
	}
	defer rows.Close()

	results := []health.CheckResult{}
	for rows.Next() {
		var status, detailsJSON string
		var createdAt int64
		result := health.CheckResult{}
		if err := rows.Scan(&result.Name, &status, &result.DurationMS,
			&result.Critical, &result.Error, &detailsJSON, &createdAt); err != nil {
			return nil, errors.NewTransientf("failed to scan check result: %w", err)
		}
		result.Status = health.Status(status)
		result.Timestamp = time.Unix(createdAt, 0).UTC()
		if detailsJSON != "" {
			var details any
			if err := json.Unmarshal([]byte(detailsJSON), &details); err == nil {
				result.Details = details
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Ping probes the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

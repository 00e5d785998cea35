/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package archive stores repro-run reports in Postgres so oracle outcomes can
// be compared across engine versions.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/repro"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("repro report not found")

// Entry is one archived report row.
type Entry struct {
	RunID           string
	CaseID          string
	CaseTitle       string
	StopReason      repro.StopReason
	StopMessage     string
	ExecutedSteps   int
	SignatureMatch  bool
	OracleTriggered bool
	CreatedAt       time.Time
}

// Archive is a Postgres-backed report store.
type Archive struct {
	db *sql.DB
}

// Open connects to dsn, checks the connection and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("archive dsn is required (VNE_ARCHIVE_DSN)")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() error { return a.db.Close() }

// Store inserts r. Storing the same run id twice replaces the earlier row.
func (a *Archive) Store(ctx context.Context, r *repro.Report, caseTitle string) error {
	if r == nil || r.RunID == "" {
		return errors.New("report without run id")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// dialect=PostgreSQL
	_, err = a.db.ExecContext(ctx, `INSERT INTO repro_reports
		(run_id, case_id, case_title, stop_reason, stop_message, executed_steps, signature_match, oracle_triggered, report)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			case_id = excluded.case_id,
			case_title = excluded.case_title,
			stop_reason = excluded.stop_reason,
			stop_message = excluded.stop_message,
			executed_steps = excluded.executed_steps,
			signature_match = excluded.signature_match,
			oracle_triggered = excluded.oracle_triggered,
			report = excluded.report`,
		r.RunID, r.CaseID, caseTitle, string(r.StopReason), r.StopMessage, r.ExecutedSteps,
		r.SignatureMatch, r.OracleTriggered, body)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.RunID, err)
	}
	applog.WithComponent("archive").Debug("report archived",
		slog.String("run_id", r.RunID), slog.String("stop_reason", string(r.StopReason)))
	return nil
}

// Get returns the full report stored under runID.
func (a *Archive) Get(ctx context.Context, runID string) (*repro.Report, error) {
	var body []byte
	err := a.db.QueryRowContext(ctx, `SELECT report FROM repro_reports WHERE run_id = $1`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report %s: %w", runID, err)
	}
	var r repro.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &r, nil
}

// Recent lists up to limit rows, newest first. An empty caseID lists all
// cases.
func (a *Archive) Recent(ctx context.Context, caseID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	// dialect=PostgreSQL
	rows, err := a.db.QueryContext(ctx, `SELECT run_id::text, COALESCE(case_id, ''), case_title, stop_reason,
		stop_message, executed_steps, signature_match, oracle_triggered, created_at
		FROM repro_reports
		WHERE ($1 = '' OR case_id = $1)
		ORDER BY created_at DESC, run_id
		LIMIT $2`, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var e Entry
		var reason string
		if err := rows.Scan(&e.RunID, &e.CaseID, &e.CaseTitle, &reason, &e.StopMessage,
			&e.ExecutedSteps, &e.SignatureMatch, &e.OracleTriggered, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		e.StopReason = repro.StopReason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("archive"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, fname := range files {
		v, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, v, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// parseVersion reads the numeric prefix of "NNN_name.sql".
func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"

	// schemaVersion is the newest entry in migrations.
	schemaVersion = 2
)

// migrations[i] brings the index from schema i to schema i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS slots (
			slot            INTEGER NOT NULL,
			quick           INTEGER NOT NULL,
			updated_unix_ms INTEGER NOT NULL,
			script_id_hex   TEXT NOT NULL,
			position        INTEGER NOT NULL,
			flag_words      INTEGER NOT NULL,
			var_count       INTEGER NOT NULL,
			chapter         TEXT,
			summary         TEXT,
			PRIMARY KEY (slot, quick)
		);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_slots_updated ON slots(updated_unix_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_slots_script ON slots(script_id_hex);`,
	},
}

// openIndex opens <root>/index.sqlite in WAL mode and migrates it to
// schemaVersion.
func openIndex(ctx context.Context, root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("root", root))

	path := filepath.Join(root, IndexFileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		l.Error("index migration failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS version (
		id         INTEGER PRIMARY KEY CHECK(id=1),
		schema     INTEGER NOT NULL,
		app        TEXT,
		updated_at TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, updated_at) VALUES (1, 0, ?, ?)`, version.String(), now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	}
	// Newer schemas written by a later build are left alone.
	for ; cur < schemaVersion; cur++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", cur+1, err)
		}
		for _, q := range migrations[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", cur+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, app=?, updated_at=? WHERE id=1`, cur+1, version.String(), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", cur+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", cur+1, err)
		}
	}
	return nil
}

// language=SQL
// dialect=SQLite
const upsertSlotSQL = `INSERT INTO slots (slot, quick, updated_unix_ms, script_id_hex, position, flag_words, var_count, chapter, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slot, quick) DO UPDATE SET
	updated_unix_ms = excluded.updated_unix_ms,
	script_id_hex   = excluded.script_id_hex,
	position        = excluded.position,
	flag_words      = excluded.flag_words,
	var_count       = excluded.var_count,
	chapter         = excluded.chapter,
	summary         = excluded.summary`

// language=SQL
// dialect=SQLite
const listSlotsSQL = `SELECT slot, quick, updated_unix_ms, script_id_hex, position, flag_words, var_count, chapter, summary
FROM slots ORDER BY updated_unix_ms DESC, quick ASC, slot ASC`

// language=SQL
// dialect=SQLite
const deleteSlotSQL = `DELETE FROM slots WHERE slot = ? AND quick = ?`

func upsertSlot(ctx context.Context, db *sql.DB, m SlotInfo) error {
	_, err := db.ExecContext(ctx, upsertSlotSQL,
		m.Slot, m.Quick, m.UpdatedUnixMs, m.ScriptIDHex, m.Position, m.FlagWords, m.VarCount,
		nullable(m.Chapter), nullable(m.Summary))
	if err != nil {
		return fmt.Errorf("upsert slot %d: %w", m.Slot, err)
	}
	return nil
}

func listSlots(ctx context.Context, db *sql.DB) ([]SlotInfo, error) {
	rows, err := db.QueryContext(ctx, listSlotsSQL)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []SlotInfo{}
	for rows.Next() {
		var m SlotInfo
		var chapter, summary sql.NullString
		if err := rows.Scan(&m.Slot, &m.Quick, &m.UpdatedUnixMs, &m.ScriptIDHex, &m.Position,
			&m.FlagWords, &m.VarCount, &chapter, &summary); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		m.Chapter, m.Summary = chapter.String, summary.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

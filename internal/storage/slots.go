/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage keeps numbered save slots and a quick save on disk, with
// atomic writes, single-backup recovery and a SQLite metadata index
// (<root>/index.sqlite) that can be rebuilt from the slot files at any time.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/save"
)

const (
	SlotsDirName  = "slots"
	QuickSaveName = "quicksave.vnsav"
	MaxSlot       = 999
)

var slotFile = regexp.MustCompile(`^slot_(\d{3})\.vnsav$`)

// SlotInfo is the index row of one slot.
type SlotInfo struct {
	Slot          int    `json:"slot_id"`
	Quick         bool   `json:"quick"`
	UpdatedUnixMs int64  `json:"updated_unix_ms"`
	ScriptIDHex   string `json:"script_id_hex"`
	Position      uint32 `json:"position"`
	FlagWords     int    `json:"flags_words"`
	VarCount      int    `json:"vars_count"`
	Chapter       string `json:"chapter_label,omitempty"`
	Summary       string `json:"summary_line,omitempty"`
}

// RecoveryError reports that neither a slot file nor its backup decoded.
// Backup is nil when no backup exists.
type RecoveryError struct {
	Primary error
	Backup  error
}

func (e *RecoveryError) Error() string {
	if e.Backup == nil {
		return fmt.Sprintf("save store recovery failed (primary: %v, backup missing)", e.Primary)
	}
	return fmt.Sprintf("save store recovery failed (primary: %v, backup: %v)", e.Primary, e.Backup)
}

func (e *RecoveryError) Unwrap() []error {
	if e.Backup == nil {
		return []error{e.Primary}
	}
	return []error{e.Primary, e.Backup}
}

// SlotStore is a save directory. It is not safe for concurrent use by
// several processes.
type SlotStore struct {
	root string
	key  []byte
	db   *sql.DB
	now  func() time.Time
}

// Option configures a SlotStore.
type Option func(*SlotStore)

// WithAuthKey makes the store write authenticated saves with key. Loading
// accepts both plain and authenticated files.
func WithAuthKey(key []byte) Option {
	return func(s *SlotStore) { s.key = bytes.Clone(key) }
}

// Open prepares the layout under root and opens the index.
func Open(ctx context.Context, root string, opts ...Option) (*SlotStore, error) {
	if root == "" {
		return nil, errors.New("save root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, SlotsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create save layout: %w", err)
	}
	db, err := openIndex(ctx, root)
	if err != nil {
		return nil, err
	}
	s := &SlotStore{root: root, db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the index.
func (s *SlotStore) Close() error { return s.db.Close() }

// Root is the directory the store was opened on.
func (s *SlotStore) Root() string { return s.root }

// SlotPath returns the file path of a numbered slot.
func (s *SlotStore) SlotPath(slot int) string {
	return filepath.Join(s.root, SlotsDirName, fmt.Sprintf("slot_%03d.vnsav", slot))
}

// QuickSavePath returns the quick save file path.
func (s *SlotStore) QuickSavePath() string {
	return filepath.Join(s.root, SlotsDirName, QuickSaveName)
}

func (s *SlotStore) path(slot int, quick bool) string {
	if quick {
		return s.QuickSavePath()
	}
	return s.SlotPath(slot)
}

func checkSlot(slot int) error {
	if slot < 0 || slot > MaxSlot {
		return fmt.Errorf("slot %d out of range 0..%d", slot, MaxSlot)
	}
	return nil
}

// Save writes d to a numbered slot and records its metadata.
func (s *SlotStore) Save(ctx context.Context, slot int, d *save.Data) (SlotInfo, error) {
	if err := checkSlot(slot); err != nil {
		return SlotInfo{}, err
	}
	return s.write(ctx, slot, false, d)
}

// QuickSave writes d to the quick save file.
func (s *SlotStore) QuickSave(ctx context.Context, d *save.Data) (SlotInfo, error) {
	return s.write(ctx, 0, true, d)
}

func (s *SlotStore) write(ctx context.Context, slot int, quick bool, d *save.Data) (SlotInfo, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "slot_save").With(
		slog.Int("slot", slot), slog.Bool("quick", quick))
	b, err := s.encode(d)
	if err != nil {
		return SlotInfo{}, err
	}
	path := s.path(slot, quick)
	if err := writeAtomic(path, b); err != nil {
		l.Error("write slot failed", slog.Any("err", err))
		return SlotInfo{}, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	info := Describe(d)
	info.Slot, info.Quick = slot, quick
	info.UpdatedUnixMs = s.now().UnixMilli()
	if err := upsertSlot(ctx, s.db, info); err != nil {
		l.Error("index update failed", slog.Any("err", err))
		return SlotInfo{}, err
	}
	l.Debug("slot saved", slog.Int("bytes", len(b)))
	return info, nil
}

func (s *SlotStore) encode(d *save.Data) ([]byte, error) {
	if s.key != nil {
		return save.EncodeAuthenticated(d, s.key)
	}
	return d.MarshalBinary()
}

func (s *SlotStore) decode(b []byte) (*save.Data, error) {
	if bytes.HasPrefix(b, save.AuthMagic[:]) {
		return save.DecodeAuthenticated(b, s.key)
	}
	return save.Decode(b)
}

// Load reads a numbered slot, falling back to its backup when the primary
// file does not decode.
func (s *SlotStore) Load(slot int) (*save.Data, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	return s.loadWithRecovery(s.SlotPath(slot))
}

// QuickLoad reads the quick save.
func (s *SlotStore) QuickLoad() (*save.Data, error) {
	return s.loadWithRecovery(s.QuickSavePath())
}

func (s *SlotStore) loadWithRecovery(path string) (*save.Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	d, primaryErr := s.decode(b)
	if primaryErr == nil {
		return d, nil
	}
	bak, err := os.ReadFile(backupPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &RecoveryError{Primary: primaryErr}
	}
	if err != nil {
		return nil, fmt.Errorf("read backup of %s: %w", filepath.Base(path), err)
	}
	d, backupErr := s.decode(bak)
	if backupErr != nil {
		return nil, &RecoveryError{Primary: primaryErr, Backup: backupErr}
	}
	applog.WithComponent("storage").Warn("slot recovered from backup",
		slog.String("file", filepath.Base(path)), slog.Any("err", primaryErr))
	return d, nil
}

// List returns the index rows of existing slot files, newest first.
func (s *SlotStore) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := listSlots(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if _, err := os.Stat(s.path(r.Slot, r.Quick)); err == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes a numbered slot, its backup and its index row.
func (s *SlotStore) Delete(ctx context.Context, slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return s.remove(ctx, slot, false)
}

// DeleteQuickSave removes the quick save.
func (s *SlotStore) DeleteQuickSave(ctx context.Context) error {
	return s.remove(ctx, 0, true)
}

func (s *SlotStore) remove(ctx context.Context, slot int, quick bool) error {
	path := s.path(slot, quick)
	for _, p := range []string{path, backupPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	if _, err := s.db.ExecContext(ctx, deleteSlotSQL, slot, quick); err != nil {
		return fmt.Errorf("delete slot row: %w", err)
	}
	return nil
}

// Rebuild discards the index and rescans the slot files. Files that cannot
// be read even from backup are skipped and reported in the returned error
// list. It returns the number of indexed slots.
func (s *SlotStore) Rebuild(ctx context.Context) (int, []error, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots`); err != nil {
		return 0, nil, fmt.Errorf("clear index: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, SlotsDirName))
	if err != nil {
		return 0, nil, fmt.Errorf("read slots dir: %w", err)
	}
	var skipped []error
	n := 0
	for _, e := range entries {
		slot, quick, ok := parseSlotName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		path := s.path(slot, quick)
		d, err := s.loadWithRecovery(path)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		info := Describe(d)
		info.Slot, info.Quick = slot, quick
		if fi, err := e.Info(); err == nil {
			info.UpdatedUnixMs = fi.ModTime().UnixMilli()
		}
		if err := upsertSlot(ctx, s.db, info); err != nil {
			return n, skipped, err
		}
		n++
	}
	l.Info("index rebuilt", slog.Int("slots", n), slog.Int("skipped", len(skipped)))
	return n, skipped, nil
}

func parseSlotName(name string) (slot int, quick, ok bool) {
	if name == QuickSaveName {
		return 0, true, true
	}
	m := slotFile.FindStringSubmatch(name)
	if m == nil {
		return 0, false, false
	}
	n, err := strconv.Atoi(m[1])
	return n, false, err == nil
}

// Describe derives the index metadata of d; slot and timestamp are left
// for the caller.
func Describe(d *save.Data) SlotInfo {
	return SlotInfo{
		ScriptIDHex: hex.EncodeToString(d.ScriptID[:]),
		Position:    d.State.Position,
		FlagWords:   len(d.State.Flags),
		VarCount:    len(d.State.Vars),
		Chapter:     ChapterLabel(d.State.Visual.Background),
		Summary:     SummaryLine(d.State.History),
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/save"
)

func sample(position uint32) *save.Data {
	var id compiled.ID
	for i := range id {
		id[i] = 0xab
	}
	return &save.Data{
		ScriptID: id,
		State: engine.State{
			Position: position,
			Flags:    []uint64{4},
			Vars:     []int32{0, 42},
			Visual:   engine.VisualState{Background: event.Str("bg/old_town-night.png")},
			History:  []engine.HistoryEntry{{Speaker: "Ava", Text: "Hello there"}},
		},
	}
}

func openStore(t *testing.T, opts ...Option) *SlotStore {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadAndMetadata(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	info, err := s.Save(ctx, 1, sample(7))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Chapter != "Old Town Night" || info.Summary != "Ava: Hello there" {
		t.Fatalf("metadata = %+v", info)
	}
	if info.ScriptIDHex != strings.Repeat("ab", 32) || info.FlagWords != 1 || info.VarCount != 2 {
		t.Fatalf("metadata = %+v", info)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "slots", "slot_001.vnsav")); err != nil {
		t.Fatalf("slot file missing: %v", err)
	}

	got, err := s.Load(1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State.Position != 7 || got.State.Vars[1] != 42 || got.ScriptID != sample(0).ScriptID {
		t.Fatalf("loaded %+v", got)
	}
	if _, err := s.Load(2); err == nil {
		t.Fatalf("loading an empty slot should fail")
	}
	if _, err := s.Save(ctx, 1000, sample(0)); err == nil {
		t.Fatalf("slot 1000 accepted")
	}
}

func TestOverwriteKeepsBackupAndRecovers(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if _, err := s.Save(ctx, 2, sample(1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(ctx, 2, sample(2)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := s.SlotPath(2)
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := s.Load(2)
	if err != nil {
		t.Fatalf("Load with backup: %v", err)
	}
	if got.State.Position != 1 {
		t.Fatalf("recovered position = %d, want the previous save", got.State.Position)
	}

	if err := os.WriteFile(path+".bak", []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt backup: %v", err)
	}
	_, err = s.Load(2)
	var rec *RecoveryError
	if !errors.As(err, &rec) || rec.Backup == nil {
		t.Fatalf("expected RecoveryError with backup cause, got %v", err)
	}
	if save.KindOf(rec.Primary) != save.TooSmall {
		t.Fatalf("primary cause = %v", rec.Primary)
	}
}

func TestCorruptWithoutBackup(t *testing.T) {
	s := openStore(t)
	if _, err := s.QuickSave(context.Background(), sample(3)); err != nil {
		t.Fatalf("QuickSave: %v", err)
	}
	if err := os.WriteFile(s.QuickSavePath(), []byte("VNSVxxxxxxxxxxxxxxxxxx"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_, err := s.QuickLoad()
	var rec *RecoveryError
	if !errors.As(err, &rec) || rec.Backup != nil {
		t.Fatalf("expected RecoveryError without backup, got %v", err)
	}
	if !strings.Contains(err.Error(), "backup missing") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestListDeleteRebuild(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	clock := time.UnixMilli(1_000)
	s.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	for _, slot := range []int{3, 1} {
		if _, err := s.Save(ctx, slot, sample(uint32(slot))); err != nil {
			t.Fatalf("Save %d: %v", slot, err)
		}
	}
	if _, err := s.QuickSave(ctx, sample(9)); err != nil {
		t.Fatalf("QuickSave: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || !list[0].Quick || list[1].Slot != 1 || list[2].Slot != 3 {
		t.Fatalf("List order = %+v", list)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.SlotPath(1)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("slot file still present: %v", err)
	}

	// A file copied in behind the store's back appears after a rebuild.
	b, err := os.ReadFile(s.SlotPath(3))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(s.SlotPath(42), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), SlotsDirName, "slot_007.vnsav"), []byte("bad"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, skipped, err := s.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 3 || len(skipped) != 1 {
		t.Fatalf("Rebuild indexed %d, skipped %v", n, skipped)
	}
	list, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slots := map[int]bool{}
	for _, r := range list {
		if !r.Quick {
			slots[r.Slot] = true
		}
	}
	if !slots[3] || !slots[42] || slots[1] || slots[7] {
		t.Fatalf("rebuilt list = %+v", list)
	}
}

func TestAuthenticatedStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := Open(ctx, root, WithAuthKey([]byte("secret")))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.Save(ctx, 0, sample(5)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(s.SlotPath(0))
	if err != nil || string(b[:4]) != "VNSA" {
		t.Fatalf("expected authenticated file, got %q %v", b[:4], err)
	}
	if got, err := s.Load(0); err != nil || got.State.Position != 5 {
		t.Fatalf("Load: %+v %v", got, err)
	}

	other, err := Open(ctx, root, WithAuthKey([]byte("other")))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = other.Close() }()
	_, err = other.Load(0)
	var rec *RecoveryError
	if !errors.As(err, &rec) || save.KindOf(rec.Primary) != save.AuthenticationFailed {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestChapterAndSummary(t *testing.T) {
	if got := ChapterLabel(event.Str(`assets\bg\forest_path.webp`)); got != "Forest Path" {
		t.Fatalf("ChapterLabel = %q", got)
	}
	if got := ChapterLabel(event.Str("bg/__.png")); got != "" {
		t.Fatalf("ChapterLabel of blank stem = %q", got)
	}
	if ChapterLabel(nil) != "" {
		t.Fatalf("nil background should give an empty label")
	}
	long := strings.Repeat("é", 120)
	got := SummaryLine([]engine.HistoryEntry{{Speaker: " ", Text: long}})
	if len([]rune(got)) != SummaryRunes || !strings.HasSuffix(got, "...") {
		t.Fatalf("SummaryLine = %q", got)
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"bg/room.png":     "room",
		"audio/theme.ogg": "",
		"b.txt":           "abc",
	}
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestBuildManifest(t *testing.T) {
	root := writeTree(t)
	m, err := BuildManifest(root)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	if len(m.Assets) != 3 || m.ManifestVersion != 1 {
		t.Fatalf("manifest = %+v", m)
	}
	abc := m.Assets["b.txt"]
	if abc.Size != 3 || abc.SHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("b.txt = %+v", abc)
	}
	empty := m.Assets["audio/theme.ogg"]
	if empty.Size != 0 || empty.SHA256 != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("empty file = %+v", empty)
	}
	if _, ok := m.Assets["bg/room.png"]; !ok {
		t.Fatalf("nested path not POSIX-style: %v", m.Assets)
	}
}

func TestManifestOutputIsStable(t *testing.T) {
	root := writeTree(t)
	a, err := BuildManifest(root)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	b, err := BuildManifest(root)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	ab, _ := a.Marshal()
	bb, _ := b.Marshal()
	if string(ab) != string(bb) {
		t.Fatalf("manifest output differs between runs")
	}
	if strings.Index(string(ab), `"audio/theme.ogg"`) > strings.Index(string(ab), `"b.txt"`) {
		t.Fatalf("keys not sorted:\n%s", ab)
	}
	var doc map[string]any
	if err := json.Unmarshal(ab, &doc); err != nil || doc["manifest_version"] != float64(1) {
		t.Fatalf("document = %v, %v", doc, err)
	}
}

func TestWriteParseVerify(t *testing.T) {
	root := writeTree(t)
	m, err := BuildManifest(root)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	out := filepath.Join(t.TempDir(), "out", "manifest.json")
	if err := m.Write(out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := got.Verify("bg/room.png", []byte("room")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := got.Verify("bg/room.png", []byte("rooM")); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("tampered bytes: %v", err)
	}
	if err := got.Verify("bg/room.png", []byte("rooms")); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("resized bytes: %v", err)
	}
	if err := got.Verify("bg/other.png", nil); !errors.Is(err, ErrEntryMissing) {
		t.Fatalf("unknown asset: %v", err)
	}
	if _, err := Parse([]byte(`{"manifest_version":2,"assets":{}}`)); err == nil {
		t.Fatalf("version 2 accepted")
	}
}

func TestBuildManifestRejectsFileRoot(t *testing.T) {
	root := writeTree(t)
	if _, err := BuildManifest(filepath.Join(root, "b.txt")); err == nil {
		t.Fatalf("file root accepted")
	}
	if _, err := BuildManifest(filepath.Join(root, "missing")); err == nil {
		t.Fatalf("missing root accepted")
	}
}

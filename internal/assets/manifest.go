/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets fingerprints an asset tree so shipped files can be checked
// against what the project was built with.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ManifestVersion is the only manifest layout understood by Parse.
const ManifestVersion = 1

var (
	ErrEntryMissing = errors.New("manifest entry missing")
	ErrSizeMismatch = errors.New("manifest size mismatch")
	ErrHashMismatch = errors.New("manifest hash mismatch")
)

// Entry fingerprints one file.
type Entry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest maps POSIX paths relative to the asset root to their entries.
// encoding/json writes map keys sorted, so output is stable.
type Manifest struct {
	ManifestVersion int              `json:"manifest_version"`
	Assets          map[string]Entry `json:"assets"`
}

// BuildManifest hashes every regular file below root. Directories are
// visited in lexical order.
func BuildManifest(root string) (*Manifest, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", root)
	}
	m := &Manifest{ManifestVersion: ManifestVersion, Assets: map[string]Entry{}}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		e, err := hashFile(p)
		if err != nil {
			return err
		}
		m.Assets[filepath.ToSlash(rel)] = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk assets: %w", err)
	}
	return m, nil
}

func hashFile(p string) (Entry, error) {
	f, err := os.Open(p)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %w", p, err)
	}
	return Entry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Marshal encodes m as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode asset manifest: %w", err)
	}
	return append(b, '\n'), nil
}

// Write stores the manifest at p, creating parent directories.
func (m *Manifest) Write(p string) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Parse decodes a manifest document.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse asset manifest: %w", err)
	}
	if m.ManifestVersion != ManifestVersion {
		return nil, fmt.Errorf("unsupported asset manifest version %d", m.ManifestVersion)
	}
	if m.Assets == nil {
		m.Assets = map[string]Entry{}
	}
	return &m, nil
}

// Verify checks data against the entry recorded for rel.
func (m *Manifest) Verify(rel string, data []byte) error {
	key := path.Clean(filepath.ToSlash(rel))
	e, ok := m.Assets[key]
	if !ok {
		return fmt.Errorf("%w for asset '%s'", ErrEntryMissing, key)
	}
	if e.Size != int64(len(data)) {
		return fmt.Errorf("%w for asset '%s'", ErrSizeMismatch, key)
	}
	sum := sha256.Sum256(data)
	if !strings.EqualFold(e.SHA256, hex.EncodeToString(sum[:])) {
		return fmt.Errorf("%w for asset '%s'", ErrHashMismatch, key)
	}
	return nil
}

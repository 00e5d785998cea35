/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/repro"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/save"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

const linear = `{
	"schema_version": "1.0",
	"events": [
		{"type": "scene", "background": "bg/room.png"},
		{"type": "dialogue", "speaker": "Ava", "text": "Hello"},
		{"type": "dialogue", "speaker": "Ben", "text": "Hi"}
	],
	"labels": {"start": 0}
}`

const loop = `{
	"schema_version": "1.0",
	"events": [
		{"type": "dialogue", "speaker": "Ava", "text": "Again"},
		{"type": "jump", "target": "start"}
	],
	"labels": {"start": 0}
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VNE_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("VNE_LOG_LEVEL", "error")
	t.Setenv("VNE_LOG_FILE", "")
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndUsage(t *testing.T) {
	setupEnv(t)
	code, out, _ := runCLI(t, "version")
	if code != exitOK || !strings.HasPrefix(out, "vnengine ") {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t); code != exitUsage {
		t.Fatalf("no args: code=%d", code)
	}
	code, _, errOut := runCLI(t, "frobnicate")
	if code != exitUsage || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown command: code=%d err=%q", code, errOut)
	}
}

func TestValidate(t *testing.T) {
	dir := setupEnv(t)
	good := writeFile(t, dir, "good.json", linear)
	code, out, _ := runCLI(t, "validate", good)
	if code != exitOK || !strings.Contains(out, "ok: 3 events") {
		t.Fatalf("validate: code=%d out=%q", code, out)
	}
	bad := writeFile(t, dir, "bad.json", `{"events":[{"type":"jump","target":"nowhere"}],"labels":{"start":0}}`)
	if code, _, _ := runCLI(t, "validate", bad); code != exitError {
		t.Fatalf("invalid script: code=%d", code)
	}
	if code, _, _ := runCLI(t, "validate"); code != exitUsage {
		t.Fatalf("missing argument: code=%d", code)
	}
}

func TestValidateLocalization(t *testing.T) {
	dir := setupEnv(t)
	src := writeFile(t, dir, "loc.json", `{"events":[
		{"type":"dialogue","speaker":"loc:speaker.ava","text":"loc:line.hello"},
		{"type":"choice","prompt":"loc:choice.prompt","options":[{"text":"loc:choice.stay","target":"start"}]}
	],"labels":{"start":0}}`)
	complete := writeFile(t, dir, "complete.yaml", `default_locale: en
locales:
  en:
    speaker.ava: Ava
    line.hello: Hello
    choice.prompt: Stay?
    choice.stay: Stay
    line.unused: Spare
`)
	code, out, _ := runCLI(t, "validate", src, "--locales", complete)
	if code != exitOK || !strings.Contains(out, `en: orphan_key "line.unused"`) || !strings.Contains(out, "ok: 2 events") {
		t.Fatalf("orphans only: code=%d out=%q", code, out)
	}

	partial := writeFile(t, dir, "partial.yaml", "locales:\n  es:\n    speaker.ava: Ava\n")
	code, out, errOut := runCLI(t, "validate", src, "--locales", partial)
	if code != exitError || !strings.Contains(out, `es: missing_key "line.hello"`) || !strings.Contains(errOut, "3 missing localization key(s)") {
		t.Fatalf("missing keys: code=%d out=%q err=%q", code, out, errOut)
	}

	if code, _, _ := runCLI(t, "validate", src, "--locales", filepath.Join(dir, "absent.yaml")); code != exitError {
		t.Fatalf("absent catalog: code=%d", code)
	}
}

func TestValidateWithoutConfigDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skipf("config dir resolution differs on %s", runtime.GOOS)
	}
	dir := setupEnv(t)
	t.Setenv("VNE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	good := writeFile(t, dir, "good.json", linear)
	code, out, errOut := runCLI(t, "validate", good)
	if code != exitOK || !strings.Contains(out, "ok: 3 events") {
		t.Fatalf("validate: code=%d out=%q err=%q", code, out, errOut)
	}
}

func TestCompileAndVerifySave(t *testing.T) {
	dir := setupEnv(t)
	src := writeFile(t, dir, "story.json", linear)
	bin := filepath.Join(dir, "out", "story.bin")

	if code, _, _ := runCLI(t, "compile", src); code != exitUsage {
		t.Fatalf("compile without -o: code=%d", code)
	}
	code, out, errOut := runCLI(t, "compile", src, "-o", bin)
	if code != exitOK || !strings.Contains(out, "script_id") {
		t.Fatalf("compile: code=%d out=%q err=%q", code, out, errOut)
	}

	p, err := script.Prepare([]byte(linear), security.DefaultLimits(), security.Policy{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	e, err := engine.New(p.Compiled, security.Policy{}, security.DefaultLimits())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	d, err := save.FromEngine(e)
	if err != nil {
		t.Fatalf("FromEngine: %v", err)
	}
	b, err := d.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	savePath := filepath.Join(dir, "slot.vnsav")
	if err := os.WriteFile(savePath, b, 0o644); err != nil {
		t.Fatalf("write save: %v", err)
	}
	code, out, errOut = runCLI(t, "verify-save", savePath, "--script", bin)
	if code != exitOK || !strings.Contains(out, "matches script") {
		t.Fatalf("verify-save: code=%d out=%q err=%q", code, out, errOut)
	}

	other := writeFile(t, dir, "other.json", loop)
	otherBin := filepath.Join(dir, "other.bin")
	if code, _, _ := runCLI(t, "compile", other, "-o", otherBin); code != exitOK {
		t.Fatalf("compile other: code=%d", code)
	}
	code, _, errOut = runCLI(t, "verify-save", savePath, "--script", otherBin)
	if code != exitError || !strings.Contains(errOut, "script") {
		t.Fatalf("mismatched script: code=%d err=%q", code, errOut)
	}
}

func TestTraceAndGraph(t *testing.T) {
	dir := setupEnv(t)
	src := writeFile(t, dir, "story.json", linear)
	out := filepath.Join(dir, "trace.yaml")
	if code, _, errOut := runCLI(t, "trace", src, "--steps", "10", "-o", out); code != exitOK {
		t.Fatalf("trace: code=%d err=%q", code, errOut)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(b), "trace_format_version: 1") || !strings.Contains(string(b), "speaker: Ava") {
		t.Fatalf("trace document:\n%s", b)
	}

	code, dot, _ := runCLI(t, "graph", src)
	if code != exitOK || !strings.HasPrefix(dot, "digraph StoryGraph {") {
		t.Fatalf("graph dot: code=%d out=%q", code, dot)
	}
	if code, _, _ := runCLI(t, "graph", src, "--format", "pdf"); code != exitUsage {
		t.Fatalf("pdf without -o: code=%d", code)
	}
	if code, _, _ := runCLI(t, "graph", src, "--format", "svg"); code != exitUsage {
		t.Fatalf("unknown format: code=%d", code)
	}
}

func TestDryRunWritesReproCaseThatReplays(t *testing.T) {
	dir := setupEnv(t)
	src := writeFile(t, dir, "loop.json", loop)
	casePath := filepath.Join(dir, "case.json")
	code, out, errOut := runCLI(t, "dry-run", src, "--max-steps", "10", "-o", filepath.Join(dir, "report.json"), "--repro-out", casePath)
	if code != exitOK || !strings.Contains(out, "reached 10 steps") {
		t.Fatalf("dry-run: code=%d out=%q err=%q", code, out, errOut)
	}
	b, err := os.ReadFile(casePath)
	if err != nil {
		t.Fatalf("read case: %v", err)
	}
	c, err := repro.ParseCase(b)
	if err != nil {
		t.Fatalf("ParseCase: %v", err)
	}
	if c.MaxSteps != 10 || c.Oracle.ExpectedStopReason == nil || *c.Oracle.ExpectedStopReason != repro.StepLimit {
		t.Fatalf("case = %+v", c)
	}

	reportPath := filepath.Join(dir, "repro-report.json")
	code, out, errOut = runCLI(t, "repro-run", casePath, "--strict", "-o", reportPath)
	if code != exitOK || !strings.Contains(out, "stop_reason=step_limit oracle_triggered=true") {
		t.Fatalf("repro-run: code=%d out=%q err=%q", code, out, errOut)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestReproRunStrictFailsWhenOracleMisses(t *testing.T) {
	dir := setupEnv(t)
	caseDoc := `{"schema":"vnengine.repro_case.v1","title":"t","created_unix_ms":0,
		"script":` + linear + `,"max_steps":16,"choice_route":[],"environment":{},
		"oracle":{"expected_stop_reason":"runtime_error","monitors":[]}}`
	casePath := writeFile(t, dir, "case.json", caseDoc)
	if code, _, errOut := runCLI(t, "repro-run", casePath); code != exitOK {
		t.Fatalf("non-strict run: code=%d err=%q", code, errOut)
	}
	code, _, errOut := runCLI(t, "repro-run", casePath, "--strict")
	if code != exitError || !strings.Contains(errOut, "oracle was not triggered") {
		t.Fatalf("strict run: code=%d err=%q", code, errOut)
	}
}

func TestParityAndMigrate(t *testing.T) {
	dir := setupEnv(t)
	src := writeFile(t, dir, "story.json", linear)
	code, out, errOut := runCLI(t, "parity", src)
	if code != exitOK || !strings.Contains(out, "0 diagnostic(s)") {
		t.Fatalf("parity: code=%d out=%q err=%q", code, out, errOut)
	}

	legacy := writeFile(t, dir, "legacy.json", `{"events":[{"type":"extcall","command":"ping"}]}`)
	migrated := filepath.Join(dir, "migrated.json")
	code, out, errOut = runCLI(t, "migrate", legacy, "-o", migrated)
	if code != exitOK || !strings.Contains(out, "migrated 0.9 -> 1.0") {
		t.Fatalf("migrate: code=%d out=%q err=%q", code, out, errOut)
	}
	b, err := os.ReadFile(migrated)
	if err != nil {
		t.Fatalf("read migrated: %v", err)
	}
	if !strings.Contains(string(b), `"ext_call"`) || !strings.Contains(string(b), `"schema_version": "1.0"`) {
		t.Fatalf("migrated script:\n%s", b)
	}
}

func TestManifestInitOpen(t *testing.T) {
	dir := setupEnv(t)
	assetsDir := filepath.Join(dir, "assets", "bg")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, assetsDir, "room.png", "png")
	out := filepath.Join(dir, "manifest.json")
	code, stdout, _ := runCLI(t, "manifest", filepath.Join(dir, "assets"), "-o", out)
	if code != exitOK || !strings.Contains(stdout, "1 assets") {
		t.Fatalf("manifest: code=%d out=%q", code, stdout)
	}
	b, _ := os.ReadFile(out)
	if !strings.Contains(string(b), `"bg/room.png"`) {
		t.Fatalf("manifest document:\n%s", b)
	}

	proj := filepath.Join(dir, "proj")
	if code, _, errOut := runCLI(t, "init", proj, "Night Market", "--author", "Ava"); code != exitOK {
		t.Fatalf("init: code=%d err=%q", code, errOut)
	}
	if code, _, _ := runCLI(t, "init", proj, "Again"); code != exitError {
		t.Fatalf("second init: code=%d", code)
	}
	code, stdout, _ = runCLI(t, "open", proj)
	if code != exitOK || !strings.Contains(stdout, "Opened project: Night Market (0.1.0)") || !strings.Contains(stdout, "1280x720") {
		t.Fatalf("open: code=%d out=%q", code, stdout)
	}
}

func TestSlotsCommands(t *testing.T) {
	dir := setupEnv(t)
	saves := filepath.Join(dir, "saves")
	code, out, errOut := runCLI(t, "slots", "list", "--dir", saves)
	if code != exitOK || strings.TrimSpace(out) != "[]" {
		t.Fatalf("slots list: code=%d out=%q err=%q", code, out, errOut)
	}
	code, out, _ = runCLI(t, "slots", "rebuild", "--dir", saves)
	if code != exitOK || !strings.Contains(out, "indexed 0 slot(s)") {
		t.Fatalf("slots rebuild: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "slots", "delete", "x", "--dir", saves); code != exitUsage {
		t.Fatalf("slots delete x: code=%d", code)
	}
	if code, _, _ := runCLI(t, "slots", "shuffle", "--dir", saves); code != exitUsage {
		t.Fatalf("unknown action: code=%d", code)
	}
}

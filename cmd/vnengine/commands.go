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
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/archive"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/assets"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/config"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/dryrun"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/graph"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/localization"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/parity"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/project"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/repro"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/save"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/storage"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/trace"
)

// reproRadius is the number of events kept on each side of a failing event
// when dry-run writes a reduced repro case.
const reproRadius = 8

func (a *app) prepare(path string) (*script.Prepared, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := script.Prepare(text, a.cfg.SecurityLimits(), a.cfg.SecurityPolicy())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if p.Migration != nil && len(p.Migration.Entries) > 0 {
		a.log.Info("script migrated", slog.String("from", p.Migration.From), slog.String("to", p.Migration.To))
	}
	return p, nil
}

func (a *app) newEngine(c *compiled.Script) (*engine.Engine, error) {
	e, err := engine.New(c, a.cfg.SecurityPolicy(), a.cfg.SecurityLimits())
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return e, nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func (a *app) writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func cmdValidate(a *app, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	locales := fs.String("locales", "", "localization catalog (YAML) to check against the script's loc: keys")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	if *locales != "" {
		if err := a.checkLocalization(p.Raw, *locales); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "ok: %d events, %d labels, %d flags\n",
		len(p.Compiled.Events), len(p.Compiled.Labels), p.Compiled.FlagCount)
	return nil
}

// checkLocalization prints every catalog issue. Orphan keys are warnings;
// any missing key fails the command.
func (a *app) checkLocalization(raw *event.Script, path string) error {
	cat, err := localization.Load(path)
	if err != nil {
		return err
	}
	keys := localization.ScriptKeys(raw)
	missing := 0
	for _, is := range cat.ValidateKeys(keys) {
		if is.Kind == localization.MissingKey {
			missing++
		}
		fmt.Fprintf(a.stdout, "localization: %s\n", is)
	}
	a.log.Debug("localization checked", slog.Int("keys", len(keys)), slog.Any("locales", cat.LocaleCodes()))
	if missing > 0 {
		return fmt.Errorf("%d missing localization key(s)", missing)
	}
	return nil
}

func cmdCompile(a *app, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	out := fs.String("o", "", "output file")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	if err := requireFlag("o", *out); err != nil {
		return err
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	b, err := p.Compiled.MarshalBinary()
	if err != nil {
		return err
	}
	id, err := p.Compiled.ID()
	if err != nil {
		return err
	}
	if err := a.writeOutput(*out, b); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "compiled %s (%d bytes, script_id %s)\n", *out, len(b), hex.EncodeToString(id[:]))
	return nil
}

func cmdTrace(a *app, args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	steps := fs.Int("steps", 100, "maximum trace steps")
	out := fs.String("o", "", "output file")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	if err := requireFlag("o", *out); err != nil {
		return err
	}
	if *steps < 0 {
		return usagef("--steps must not be negative")
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	e, err := a.newEngine(p.Compiled)
	if err != nil {
		return err
	}
	doc := trace.Build(e, *steps)
	b, err := doc.Marshal()
	if err != nil {
		return err
	}
	return a.writeOutput(*out, b)
}

func cmdVerifySave(a *app, args []string) error {
	fs := flag.NewFlagSet("verify-save", flag.ContinueOnError)
	scriptPath := fs.String("script", "", "compiled script binary")
	keyName := fs.String("key-name", config.DefaultKeyName, "keyring entry for authenticated saves")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	if err := requireFlag("script", *scriptPath); err != nil {
		return err
	}
	sb, err := os.ReadFile(*scriptPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", *scriptPath, err)
	}
	cs, err := compiled.Decode(sb)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(*scriptPath), err)
	}
	id, err := cs.ID()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(pos[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", pos[0], err)
	}
	var d *save.Data
	if bytes.HasPrefix(b, save.AuthMagic[:]) {
		key, kerr := a.keys.Get(*keyName)
		if kerr != nil {
			return kerr
		}
		d, err = save.DecodeAuthenticated(b, key)
	} else {
		d, err = save.Decode(b)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(pos[0]), err)
	}
	if err := d.Validate(id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "ok: save at position %d matches script %s\n", d.State.Position, hex.EncodeToString(id[:]))
	return nil
}

func cmdManifest(a *app, args []string) error {
	fs := flag.NewFlagSet("manifest", flag.ContinueOnError)
	out := fs.String("o", "", "output file")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	if err := requireFlag("o", *out); err != nil {
		return err
	}
	m, err := assets.BuildManifest(pos[0])
	if err != nil {
		return err
	}
	if err := m.Write(*out); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "manifest: %d assets\n", len(m.Assets))
	return nil
}

func cmdReproRun(a *app, args []string) error {
	fs := flag.NewFlagSet("repro-run", flag.ContinueOnError)
	out := fs.String("o", "", "report output file")
	strict := fs.Bool("strict", false, "fail unless the oracle triggered")
	store := fs.Bool("archive", false, "store the report in the Postgres archive")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(pos[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", pos[0], err)
	}
	c, err := repro.ParseCase(b)
	if err != nil {
		return fmt.Errorf("parse repro case: %w", err)
	}
	r := repro.Run(c, a.cfg.SecurityPolicy(), a.cfg.SecurityLimits())

	fmt.Fprintf(a.stdout, "repro '%s' => stop_reason=%s oracle_triggered=%t matched_monitors=%s\n",
		c.Title, r.StopReason, r.OracleTriggered, strings.Join(r.MatchedMonitors, ","))
	if r.FailingEventIP != nil {
		fmt.Fprintf(a.stdout, "failing_event_ip=%d\n", *r.FailingEventIP)
	}
	fmt.Fprintf(a.stdout, "stop_message=%s\n", r.StopMessage)

	if *out != "" {
		rb, err := r.Marshal()
		if err != nil {
			return err
		}
		if err := a.writeOutput(*out, rb); err != nil {
			return err
		}
	}
	if *store {
		ctx := context.Background()
		ar, err := archive.Open(ctx, a.cfg.Archive.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = ar.Close() }()
		if err := ar.Store(ctx, r, c.Title); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "archived run %s\n", r.RunID)
	}
	if *strict && !r.OracleTriggered {
		return errors.New("repro oracle was not triggered")
	}
	return nil
}

func cmdGraph(a *app, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	format := fs.String("format", "dot", "dot, json or pdf")
	out := fs.String("o", "", "output file (stdout for dot and json when empty)")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	g := graph.Build(p.Compiled)
	var buf bytes.Buffer
	switch strings.ToLower(*format) {
	case "dot":
		buf.WriteString(g.DOT())
	case "json":
		if err := g.WriteJSON(&buf); err != nil {
			return err
		}
	case "pdf":
		if *out == "" || *out == "-" {
			return usagef("pdf output needs -o")
		}
		title := strings.TrimSuffix(filepath.Base(pos[0]), filepath.Ext(pos[0]))
		if err := g.WritePDF(&buf, graph.PDFOptions{Title: title}); err != nil {
			return err
		}
	default:
		return usagef("unknown graph format %q", *format)
	}
	if n := len(g.Unreachable()); n > 0 {
		a.log.Warn("unreachable events", slog.Int("count", n))
	}
	return a.writeOutput(*out, buf.Bytes())
}

func cmdDryRun(a *app, args []string) error {
	fs := flag.NewFlagSet("dry-run", flag.ContinueOnError)
	maxSteps := fs.Int("max-steps", a.cfg.DryRun.MaxSteps, "step budget")
	policyName := fs.String("policy", "first", "first, last or alternating")
	routeText := fs.String("route", "", "scripted choice route, e.g. 0,1")
	out := fs.String("o", "", "report output file (stdout when empty)")
	reproOut := fs.String("repro-out", "", "write a repro case when the run does not finish")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	route, err := dryrun.ParseRoute(*routeText)
	if err != nil {
		return usagef("%v", err)
	}
	policy, err := dryrun.ParsePolicy(*policyName, route)
	if err != nil {
		return usagef("%v", err)
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	e, err := a.newEngine(p.Compiled)
	if err != nil {
		return err
	}
	r := dryrun.Run(e, *maxSteps, policy)
	b, err := marshalJSON(r)
	if err != nil {
		return err
	}
	if err := a.writeOutput(*out, b); err != nil {
		return err
	}
	if *out != "" {
		fmt.Fprintln(a.stdout, r.StopMessage)
	}
	if *reproOut == "" || r.StopReason == dryrun.Finished {
		return nil
	}
	raw := p.Raw
	if r.FailingEventIP != nil {
		reduced, clamped := repro.MinimalScript(p.Raw, int(*r.FailingEventIP), reproRadius)
		if clamped > 0 {
			a.log.Debug("repro targets outside the window point at the end",
				slog.Int("targets", clamped), slog.String("label", repro.EndLabel))
		}
		raw = reduced
	}
	title := fmt.Sprintf("%s: %s", filepath.Base(pos[0]), r.StopReason)
	c, err := repro.NewCase(title, raw)
	if err != nil {
		return err
	}
	c.MaxSteps = r.MaxSteps
	if route != nil {
		c.ChoiceRoute = route
	}
	reason := repro.StopReason(r.StopReason)
	c.Oracle.ExpectedStopReason = &reason
	cb, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := a.writeOutput(*reproOut, cb); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "repro case written to %s\n", *reproOut)
	return nil
}

func cmdParity(a *app, args []string) error {
	fs := flag.NewFlagSet("parity", flag.ContinueOnError)
	policyName := fs.String("policy", "first", "choice policy for a single check")
	routes := fs.Int("routes", 0, "check up to N enumerated choice routes instead")
	depth := fs.Int("depth", 8, "maximum choices per enumerated route")
	out := fs.String("o", "", "write results as JSON")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	policy, err := dryrun.ParsePolicy(*policyName, nil)
	if err != nil {
		return usagef("%v", err)
	}
	p, err := a.prepare(pos[0])
	if err != nil {
		return err
	}
	opt := parity.Options{MaxSteps: a.cfg.DryRun.MaxSteps, Policy: a.cfg.SecurityPolicy(), Limits: a.cfg.SecurityLimits()}
	var results []*parity.Result
	if *routes > 0 {
		results, err = parity.CheckRoutes(p.Raw, p.Compiled, opt, *routes, *depth)
	} else {
		var r *parity.Result
		r, err = parity.Check(p.Raw, p.Compiled, policy, opt)
		results = []*parity.Result{r}
	}
	if err != nil {
		return err
	}
	failed := false
	for _, r := range results {
		fmt.Fprintf(a.stdout, "route %s: %d step(s), %d diagnostic(s)\n", r.Route, len(r.Runtime), len(r.Diagnostics))
		for _, d := range r.Diagnostics {
			fmt.Fprintf(a.stdout, "  [%s] %s step=%d: %s\n", d.Severity, d.Code, d.Step, d.Message)
		}
		failed = failed || r.HasErrors()
	}
	if *out != "" {
		b, err := marshalJSON(results)
		if err != nil {
			return err
		}
		if err := a.writeOutput(*out, b); err != nil {
			return err
		}
	}
	if failed {
		return errors.New("parity check found error-severity mismatches")
	}
	return nil
}

func cmdMigrate(a *app, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	out := fs.String("o", "", "output file (stdout when empty)")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(pos[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", pos[0], err)
	}
	raw, report, err := script.LoadMigrated(text, a.cfg.SecurityLimits())
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(pos[0]), err)
	}
	b, err := script.Encode(raw)
	if err != nil {
		return err
	}
	if err := a.writeOutput(*out, append(b, '\n')); err != nil {
		return err
	}
	if *out == "" {
		return nil
	}
	fmt.Fprintf(a.stdout, "migrated %s -> %s (%d step(s))\n", report.From, report.To, len(report.Entries))
	for _, e := range report.Entries {
		fmt.Fprintf(a.stdout, "  %s: %s -> %s changed=%t\n", e.StepID, e.From, e.To, e.Changed)
	}
	return nil
}

func cmdInit(a *app, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	author := fs.String("author", "", "project author")
	pos, err := parseFlags(fs, args, 2, 2)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(pos[0])
	if err != nil {
		return err
	}
	path := filepath.Join(abs, project.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("project already exists at %s", path)
	}
	a.log.Info("init project", slog.String("root", abs), slog.String("name", pos[1]))
	if err := project.New(pos[1], *author).Save(path); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Created project at", abs)
	return nil
}

func cmdOpen(a *app, args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	path := filepath.Join(pos[0], project.FileName)
	m, report, err := project.Load(path)
	if err != nil {
		return err
	}
	if report.Changed() {
		if err := m.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Upgraded manifest %s -> %s\n", report.From, report.To)
	}
	fmt.Fprintf(a.stdout, "Opened project: %s (%s)\n", m.Metadata.Name, m.Metadata.Version)
	fmt.Fprintf(a.stdout, "Resolution: %dx%d\n", m.Settings.Resolution[0], m.Settings.Resolution[1])
	fmt.Fprintf(a.stdout, "Languages: %s (default %s)\n", strings.Join(m.Settings.SupportedLanguages, ","), m.Settings.DefaultLanguage)
	fmt.Fprintf(a.stdout, "Assets: %d backgrounds, %d characters, %d audio\n",
		len(m.Assets.Backgrounds), len(m.Assets.Characters), len(m.Assets.Audio))
	return nil
}

func cmdSlots(a *app, args []string) error {
	fs := flag.NewFlagSet("slots", flag.ContinueOnError)
	dir := fs.String("dir", "", "save directory (defaults to the configured one)")
	auth := fs.Bool("auth", false, "read and write authenticated saves")
	pos, err := parseFlags(fs, args, 1, 2)
	if err != nil {
		return err
	}
	root := *dir
	if root == "" {
		if root, err = a.cfg.SaveDir(); err != nil {
			return err
		}
	}
	var opts []storage.Option
	if *auth {
		key, err := a.keys.Ensure(config.DefaultKeyName)
		if err != nil {
			return err
		}
		opts = append(opts, storage.WithAuthKey(key))
	}
	ctx := context.Background()
	st, err := storage.Open(ctx, root, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	switch pos[0] {
	case "list":
		list, err := st.List(ctx)
		if err != nil {
			return err
		}
		b, err := marshalJSON(list)
		if err != nil {
			return err
		}
		return a.writeOutput("", b)
	case "rebuild":
		n, skipped, err := st.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "indexed %d slot(s)\n", n)
		for _, s := range skipped {
			fmt.Fprintln(a.stdout, "  skipped:", s)
		}
		return nil
	case "delete":
		if len(pos) != 2 {
			return usagef("slots delete needs a slot number or 'quick'")
		}
		if pos[1] == "quick" {
			return st.DeleteQuickSave(ctx)
		}
		n, err := strconv.Atoi(pos[1])
		if err != nil {
			return usagef("invalid slot %q", pos[1])
		}
		return st.Delete(ctx, n)
	default:
		return usagef("unknown slots action %q", pos[0])
	}
}

func cmdKey(a *app, args []string) error {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	name := fs.String("name", config.DefaultKeyName, "keyring entry name")
	pos, err := parseFlags(fs, args, 1, 1)
	if err != nil {
		return err
	}
	switch pos[0] {
	case "ensure":
		if _, err := a.keys.Ensure(*name); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "save key %q is ready\n", *name)
		return nil
	case "delete":
		return a.keys.Delete(*name)
	default:
		return usagef("unknown key action %q", pos[0])
	}
}

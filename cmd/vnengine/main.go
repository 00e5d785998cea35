/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/config"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/crash"
	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError makes run exit with exitUsage instead of exitError.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type command struct {
	synopsis string
	run      func(a *app, args []string) error
}

var commands = map[string]command{
	"validate":    {"validate <script.json> [--locales <catalog.yaml>]   Parse, validate and compile a script", cmdValidate},
	"compile":     {"compile <script.json> -o <out.bin>                  Write the compiled binary envelope", cmdCompile},
	"trace":       {"trace <script.json> [--steps N] -o <out.yaml>       Write a deterministic UI trace", cmdTrace},
	"verify-save": {"verify-save <save.bin> --script <script.bin>        Check that a save belongs to a script", cmdVerifySave},
	"manifest":    {"manifest <assets_root> -o <out.json>                Fingerprint an asset tree", cmdManifest},
	"repro-run":   {"repro-run <case.json> [-o report.json] [--strict] [--archive]  Replay a repro case", cmdReproRun},
	"graph":       {"graph <script.json> [--format dot|json|pdf] [-o out]  Export the story graph", cmdGraph},
	"dry-run":     {"dry-run <script.json> [--max-steps N] [--policy P] [--route 0,1] [--repro-out case.json]", cmdDryRun},
	"parity":      {"parity <script.json> [--policy P] [--routes N]      Compare preview and runtime execution", cmdParity},
	"migrate":     {"migrate <script.json> [-o out.json]                 Upgrade a script to the current schema", cmdMigrate},
	"init":        {"init <dir> <name> [--author A]                      Create a project manifest", cmdInit},
	"open":        {"open <dir>                                          Load a project manifest and print a summary", cmdOpen},
	"slots":       {"slots list|rebuild|delete <n> [--dir D] [--auth]    Manage save slots", cmdSlots},
	"key":         {"key ensure|delete [--name N]                        Manage the save authentication key", cmdKey},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "vnengine: visual novel script toolchain")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vnengine version|-v|--version")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  vnengine %s\n", commands[name].synopsis)
	}
}

type app struct {
	cfg    config.AppConfig
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	keys   *config.KeyStore
}

func main() {
	defer crash.Recover(crash.Context{Command: commandName(os.Args), Args: os.Args})
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func commandName(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Error: load config:", err)
		return exitError
	}
	applog.Init(cfg.LogOptions())
	a := &app{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		log:    applog.WithOperation(applog.WithComponent("cli"), args[0]),
		keys:   config.NewKeyStore(),
	}
	a.log.Debug("start", slog.Int("args", len(args)))

	err = cmd.run(a, args[1:])
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue), errors.Is(err, flag.ErrHelp):
		if ue != nil {
			fmt.Fprintln(stderr, ue.msg)
		}
		fmt.Fprintf(stderr, "usage: vnengine %s\n", cmd.synopsis)
		return exitUsage
	default:
		a.log.Error("command failed", slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
}

// parseFlags parses fs allowing flags before, between and after positional
// arguments, and checks the positional count.
func parseFlags(fs *flag.FlagSet, args []string, minPos, maxPos int) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, usagef("%v", err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
	if len(pos) < minPos || len(pos) > maxPos {
		return nil, usagef("%s: expected %s, got %d argument(s)", fs.Name(), plural(minPos, maxPos), len(pos))
	}
	return pos, nil
}

func plural(minPos, maxPos int) string {
	if minPos == maxPos {
		return fmt.Sprintf("%d argument(s)", minPos)
	}
	return fmt.Sprintf("%d to %d arguments", minPos, maxPos)
}

// requireFlag reports a usage error for an empty mandatory string flag.
func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return usagef("missing required flag -%s", name)
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console is a line-oriented front end for the kiosk, for
// terminals where the full-screen view is unavailable and for scripted
// walkthroughs. Every line is a sequence of kiosk inputs or a slash
// command; time advances between lines.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/kiosk"
)

// HistoryFileName is the prompt history file under the config directory.
const HistoryFileName = "console_history"

// maxWait bounds /wait so a typo cannot hang the console.
const maxWait = 10 * time.Minute

// =============================================================================
// LINE INPUT
// =============================================================================

// LineReader reads one line per prompt.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// LinerReader is a LineReader with history and line editing.
type LinerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader opens the terminal for line editing. History is loaded
// from and saved to historyFile when it is not empty.
func NewLinerReader(historyFile string) *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &LinerReader{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// DefaultHistoryPath returns ~/.keycabinet/console_history.
func DefaultHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, HistoryFileName)
}

// Prompt reads a line.
func (r *LinerReader) Prompt(prompt string) (string, error) {
	return r.line.Prompt(prompt)
}

// AppendHistory records line for arrow-key recall. PIN digits are never
// passed here.
func (r *LinerReader) AppendHistory(line string) {
	r.line.AppendHistory(line)
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (r *LinerReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.line.Close()
}

// =============================================================================
// CONSOLE
// =============================================================================

// Console runs the prompt loop over an App.
type Console struct {
	app    *kiosk.App
	in     LineReader
	out    io.Writer
	now    func() time.Time
	sleep  func(time.Duration)
	logger zerolog.Logger
	color  bool
}

// Option configures a Console.
type Option func(*Console)

// WithClock replaces time.Now. It should match the App's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleep replaces time.Sleep for /wait.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Console) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the console logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// WithColor enables styled output.
func WithColor(on bool) Option {
	return func(c *Console) { c.color = on }
}

// New returns a console reading from in and writing to out.
func New(app *kiosk.App, in LineReader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		app:    app,
		in:     in,
		out:    out,
		now:    time.Now,
		sleep:  time.Sleep,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errQuit ends Run without an error.
var errQuit = errors.New("quit")

// Run prompts until quit, end of input, Ctrl+C or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.render()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := c.in.Prompt(c.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		c.app.Tick(c.now())

		line = strings.TrimSpace(line)
		if line == "" {
			c.render()
			continue
		}
		if err := c.Execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(c.out, c.errorText(err.Error()))
			continue
		}
		c.render()
	}
}

// Execute runs one input line.
func (c *Console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if strings.HasPrefix(fields[0], "/") {
		c.in.AppendHistory(line)
		return c.command(strings.TrimPrefix(fields[0], "/"), fields[1:])
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return errQuit
	}

	// Navigation words are worth recalling; digit runs may be PINs.
	if !hasDigits(line) {
		c.in.AppendHistory(line)
	}
	for _, tok := range expand(fields) {
		if !c.app.PressText(tok) {
			return fmt.Errorf("unknown input %q (try /help)", tok)
		}
	}
	return nil
}

// expand splits digit runs so "12345 enter" presses six keys.
func expand(fields []string) []string {
	var out []string
	for _, f := range fields {
		if isDigits(f) {
			for _, r := range f {
				out = append(out, string(r))
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasDigits(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (c *Console) command(name string, args []string) error {
	switch name {
	case "help", "h", "?":
		c.printHelp()
	case "quit", "exit", "q":
		return errQuit
	case "wait", "w":
		return c.wait(args)
	case "status":
		c.printStatus()
	case "history":
		c.printHistory()
	case "journal":
		return c.printJournal(args)
	case "verify":
		return c.verifyJournal()
	case "dismiss":
		if !c.app.DismissNotice() {
			fmt.Fprintln(c.out, "no notices")
		}
	default:
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return nil
}

// wait lets deferred screen transitions run, ticking once a second.
func (c *Console) wait(args []string) error {
	d := time.Second
	if len(args) > 0 {
		parsed, err := parseWait(args[0])
		if err != nil {
			return err
		}
		d = parsed
	}
	for d > 0 {
		step := min(d, time.Second)
		c.sleep(step)
		c.app.Tick(c.now())
		d -= step
	}
	return nil
}

// parseWait accepts Go durations and bare seconds.
func parseWait(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 || d > maxWait {
		return 0, fmt.Errorf("wait must be between 0 and %s", maxWait)
	}
	return d, nil
}

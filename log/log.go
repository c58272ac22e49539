// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the scheduler's structured, leveled diagnostic logger.
// It is deliberately not a third-party logging framework: like go-probeum's
// own log package, it wraps a small level/context model around the standard
// library and reaches for go-stack, go-colorable, go-isatty and fatih/color
// only for call-site capture and terminal coloring.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a logging level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Record is a single emitted log line.
type Record struct {
	Time  time.Time
	Lvl   Lvl
	Msg   string
	Ctx   []interface{}
	Call  stack.Call
}

// Logger emits leveled, contextual log records, optionally tagged with a
// fixed context (see With), matching go-probeum's log.Logger shape.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	With(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
}

var (
	mu       sync.Mutex
	out      io.Writer = colorable.NewColorableStdout()
	useColor           = isatty.IsTerminal(os.Stdout.Fd())
	minLvl             = LvlInfo
	root               = &logger{}
)

// SetLevel sets the minimum level written to the output stream.
func SetLevel(lvl Lvl) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = lvl
}

// SetOutput redirects where formatted records are written; tests use this to
// capture output instead of writing to the terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func (l *logger) With(ctx ...interface{}) Logger {
	return &logger{ctx: append(append([]interface{}{}, l.ctx...), ctx...)}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > minLvl {
		return
	}
	call := stack.Caller(2)
	full := append(append([]interface{}{}, l.ctx...), ctx...)
	line := format(lvl, msg, full, call)
	fmt.Fprintln(out, line)
}

func format(lvl Lvl, msg string, ctx []interface{}, call stack.Call) string {
	tag := fmt.Sprintf("[%-5s]", lvl.String())
	if useColor {
		if c, ok := levelColor[lvl]; ok {
			tag = c.Sprint(tag)
		}
	}
	line := fmt.Sprintf("%s %s %s", time.Now().UTC().Format(time.RFC3339Nano), tag, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		line += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	if lvl <= LvlError {
		line += fmt.Sprintf(" caller=%+v", call)
	}
	return line
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// Package-level helpers mirror the root logger, the way go-probeum's log
// package is used throughout the codebase (log.Info(...) rather than
// constructing a Logger everywhere).
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

// New returns a Logger carrying a fixed context, e.g. log.New("vmId", id).
func New(ctx ...interface{}) Logger { return root.With(ctx...) }

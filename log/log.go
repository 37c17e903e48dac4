// Package log provides leveled, structured logging in the style used
// throughout the berith/go-ethereum family: call sites pass a message
// followed by alternating key/value pairs, e.g.
//
//	log.Warn("rejecting request", "key", pubKey, "reason", "queue full")
//
// Output is colorized when attached to a terminal and plain otherwise.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

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

var lvlNames = [...]string{"CRIT", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

var lvlColors = [...]string{
	"\x1b[35m", // CRIT: magenta
	"\x1b[31m", // ERROR: red
	"\x1b[33m", // WARN: yellow
	"\x1b[32m", // INFO: green
	"\x1b[36m", // DEBUG: cyan
	"\x1b[90m", // TRACE: gray
}

const resetColor = "\x1b[0m"

// Logger writes leveled, structured log lines.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	level  Lvl
	ctx    []interface{}
}

// Root is the default logger used by the package-level helpers.
var Root = New(os.Stderr)

// New creates a Logger writing to w. Color is enabled automatically when
// w is a terminal.
func New(w io.Writer) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if color {
		w = colorable.NewColorable(w.(*os.File))
	}
	return &Logger{out: w, color: color, level: LvlInfo}
}

// SetLevel sets the minimum level that will be emitted.
func (l *Logger) SetLevel(lvl Lvl) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
}

// New returns a child logger with additional context key/values appended
// to every message it logs.
func (l *Logger) New(ctx ...interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{out: l.out, color: l.color, level: l.level}
	child.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return child
}

func (l *Logger) write(lvl Lvl, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000-0700")
	name := lvlNames[lvl]
	if l.color {
		fmt.Fprintf(l.out, "%s[%s] %s%-5s%s %s", lvlColors[lvl], ts, lvlColors[lvl], name, resetColor, msg)
	} else {
		fmt.Fprintf(l.out, "[%s] %-5s %s", ts, name, msg)
	}
	all := append(append([]interface{}{}, l.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		fmt.Fprintf(l.out, " %v=MISSING", all[len(all)-1])
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}
func (l *Logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *Logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }

// Package-level helpers log through Root, mirroring the free functions
// used throughout the berith/go-ethereum packages (log.Warn(...), etc.).
func Crit(msg string, ctx ...interface{})  { Root.Crit(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root.Error(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root.Warn(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root.Info(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root.Debug(msg, ctx...) }
func Trace(msg string, ctx ...interface{}) { Root.Trace(msg, ctx...) }

// SetLevel adjusts the root logger's verbosity.
func SetLevel(lvl Lvl) { Root.SetLevel(lvl) }

// ParseLvl parses a level name ("crit".."trace"), case-insensitively,
// defaulting to LvlInfo.
func ParseLvl(s string) Lvl {
	upper := strings.ToUpper(s)
	for i, n := range lvlNames {
		if len(upper) > 0 && (n == upper || n[:1] == upper[:1]) {
			return Lvl(i)
		}
	}
	return LvlInfo
}

// Package logging builds the zerolog loggers used by the hyper commands.
package logging

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const TimeFormat = "2006-01-02T15:04:05.0000Z"

type Options struct {
	// Debug lowers the level to debug and adds caller information.
	Debug bool
	// Color styles the console output.
	Color bool
	// JSON writes raw zerolog events instead of console lines.
	JSON bool
	// Service is attached to every event when set.
	Service string
}

// New returns a logger writing to w. Without Debug only warnings and errors
// are written.
func New(w io.Writer, opts Options) zerolog.Logger {
	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !opts.Color,
			TimeFormat: "15:04:05.000",
		}
	}

	level := zerolog.WarnLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).Hook(TimeHook{})
	if opts.Debug {
		logger = logger.Hook(CallerHook{WithColor: opts.Color && !opts.JSON})
	}
	if opts.Service != "" {
		logger = logger.With().Str("service", opts.Service).Logger()
	}
	return logger
}

// TimeHook stamps events with millisecond precision.
type TimeHook struct {
	Format string
}

func (me TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := me.Format
	if format == "" {
		format = TimeFormat
	}
	e.Str(zerolog.TimestampFieldName, time.Now().UTC().Format(format))
}

// CallerHook adds a short package:file:line caller.
type CallerHook struct {
	WithColor bool
}

func (me CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrames(e) + 3)
	if !ok {
		return
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}
	pkg, _ := SplitFuncName(fn.Name())
	e.Str(zerolog.CallerFieldName, FormatCaller(pkg, file, line, me.WithColor))
}

// skipFrames reads the event's unexported skipFrame so CallerSkipFrame
// still works with the hook.
func skipFrames(e *zerolog.Event) int {
	v := reflect.ValueOf(e).Elem()
	field := v.FieldByName("skipFrame")
	if field.IsValid() && field.CanInt() {
		return int(field.Int())
	}
	return 0
}

// SplitFuncName splits a runtime function name into its package path and
// function, keeping method receivers with the function.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}
	firstDot := strings.IndexByte(name[lastSlash:], '.')
	if firstDot < 0 {
		return name, ""
	}
	firstDot += lastSlash

	pkg = name[:firstDot]
	function = name[firstDot+1:]
	return pkg, function
}

func FormatCaller(pkg, path string, line int, colorize bool) string {
	file := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		file = path[i+1:]
	}
	if !colorize {
		return fmt.Sprintf("%s:%s:%d", pkg, file, line)
	}
	sep := color.New(color.Faint).Sprint(":")
	return pkg + sep +
		color.New(color.Bold).Sprint(file) + sep +
		color.New(color.FgHiRed, color.Bold).Sprintf("%d", line)
}

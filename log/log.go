package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var (
	diagLog = zerolog.Nop()
	logMu   sync.Mutex
	pid     int
)

// Init routes diagnostics to w. Colour is used only when w is a terminal.
func Init(w io.Writer, verbose bool) {
	logMu.Lock()
	defer logMu.Unlock()

	pid = os.Getpid()

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    noColor,
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()
}

// Close drops back to the no-op logger.
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	diagLog = zerolog.Nop()
}

func logger() *zerolog.Logger {
	logMu.Lock()
	l := diagLog
	logMu.Unlock()
	return &l
}

func Debugf(format string, args ...any) {
	logger().Debug().Msg(fmt.Sprintf(format, args...))
}

func Info(msg string) {
	logger().Info().Msg(msg)
}

func Infof(format string, args ...any) {
	logger().Info().Msg(fmt.Sprintf(format, args...))
}

func Warn(msg string) {
	logger().Warn().Msg(msg)
}

func Warnf(format string, args ...any) {
	logger().Warn().Msg(fmt.Sprintf(format, args...))
}

func Error(msg string) {
	logger().Error().Msg(msg)
}

func Errorf(format string, args ...any) {
	logger().Error().Msg(fmt.Sprintf(format, args...))
}

func SessionStart(backend, configPath string, binds int) {
	logger().Info().
		Str("backend", backend).
		Str("config", configPath).
		Int("binds", binds).
		Msg("session_start")
}

func Dispatch(direction, id, kind string) {
	logger().Debug().
		Str("direction", direction).
		Str("id", id).
		Str("action", kind).
		Msg("dispatch")
}

func ReloadStart(configPath string) {
	logger().Info().
		Str("config", configPath).
		Msg("reload_start")
}

func ReloadDone(binds int, err error) {
	if err != nil {
		logger().Error().Err(err).Msg("reload_failed")
		return
	}
	logger().Info().
		Int("binds", binds).
		Msg("reload_done")
}

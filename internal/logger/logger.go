// Package logger — общий логгер сервисов поверх zerolog: префикс сервиса, уровни
// и логирование времени выполнения функций.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold — при уровне info LogDuration пишет только вызовы дольше порога.
const slowThreshold = 100 * time.Millisecond

var (
	mu     sync.RWMutex
	prefix string
	base   zerolog.Logger
	once   sync.Once
)

func initBase() {
	var out io.Writer = os.Stderr
	if os.Getenv("APP_ENV") != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	base = zerolog.New(out).With().Timestamp().Logger()
	SetLevel(os.Getenv("LOG_LEVEL"))
}

func get() zerolog.Logger {
	once.Do(initBase)
	mu.RLock()
	defer mu.RUnlock()
	if prefix == "" {
		return base
	}
	return base.With().Str("service", prefix).Logger()
}

// SetPrefix задаёт имя сервиса для всех последующих логов (например "api", "push").
func SetPrefix(p string) {
	once.Do(initBase)
	mu.Lock()
	prefix = p
	mu.Unlock()
}

// SetLevel переключает глобальный уровень: debug, info, warn, error. Пустое значение — info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetOutput перенаправляет вывод (тесты).
func SetOutput(w io.Writer) {
	once.Do(initBase)
	mu.Lock()
	base = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger возвращает zerolog-логгер с префиксом сервиса для структурированных полей.
func Logger() *zerolog.Logger {
	l := get()
	return &l
}

func Info(v ...any) {
	l := get()
	l.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	l := get()
	l.Info().Msgf(format, v...)
}

func Debugf(format string, v ...any) {
	l := get()
	l.Debug().Msgf(format, v...)
}

func Error(v ...any) {
	l := get()
	l.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	l := get()
	l.Error().Msgf(format, v...)
}

// LogDuration логирует имя функции и время выполнения.
// При info пишутся только вызовы дольше slowThreshold, при debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	l := get()
	if elapsed >= slowThreshold {
		l.Info().Str("fn", fn).Int64("duration_ms", elapsed.Milliseconds()).Msg("slow call")
		return
	}
	l.Debug().Str("fn", fn).Int64("duration_ms", elapsed.Milliseconds()).Msg("call")
}

// DeferLogDuration возвращает функцию для defer: defer logger.DeferLogDuration("itemRepo.GetByID", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

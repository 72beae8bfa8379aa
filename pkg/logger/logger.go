package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config opciones del logger del proceso.
type Config struct {
	Env     string    // development: consola legible con archivo:línea; otro valor: JSON
	Level   string    // nivel zerolog (trace..error); vacío o desconocido = info
	Service string    // campo "service" en cada evento
	Output  io.Writer // destino; nil = stdout
}

// Logger logger estructurado del proceso. También queda instalado como log.Logger de zerolog,
// que es el que usan los repositorios y casos de uso.
type Logger struct {
	zl zerolog.Logger
}

// New construye el logger y reemplaza el global de zerolog.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	dev := cfg.Env == "development"
	if dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	if dev {
		zctx = zctx.Caller()
	}
	zl := zctx.Logger()
	log.Logger = zl
	return &Logger{zl: zl}
}

// ParseLevel nivel por nombre sin distinguir mayúsculas; lo que zerolog no reconoce queda en info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Component sublogger con el campo "component" (p. ej. "http", "redis").
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

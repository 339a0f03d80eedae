// Package logging provides the logger used across bitrix-backup.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface the rest of the system logs through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options controls where and how log lines are written.
type Options struct {
	Level       string // "debug", "info", "warn", "error"
	Format      string // "json" or "console"
	Dir         string // log file directory, empty disables file output
	FileName    string // defaults to bitrix_backup.log
	MaxSizeMB   int    // rotate the file once it reaches this size
	BackupCount int    // rotated files kept
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New builds a logger writing to stdout and, when Dir is set, to a
// size-rotated file inside it.
func New(opts Options) (*ZeroLogger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if opts.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	writers := []io.Writer{console}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
		name := opts.FileName
		if name == "" {
			name = "bitrix_backup.log"
		}
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, name),
			MaxSize:    maxSize,
			MaxBackups: opts.BackupCount,
		})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	return &ZeroLogger{zl: zl}, nil
}

func (l *ZeroLogger) Debug(msg string, args ...any) { l.zl.Debug().Msgf(msg, args...) }
func (l *ZeroLogger) Info(msg string, args ...any)  { l.zl.Info().Msgf(msg, args...) }
func (l *ZeroLogger) Warn(msg string, args ...any)  { l.zl.Warn().Msgf(msg, args...) }
func (l *ZeroLogger) Error(msg string, args ...any) { l.zl.Error().Msgf(msg, args...) }

// Nop discards everything. Handy in tests.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}

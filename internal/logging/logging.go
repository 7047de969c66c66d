package logging

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ManagerCtx owns the global logger output. Apply may be called again on
// config reload; the log file is only reopened when its settings change.
type ManagerCtx struct {
	mu     sync.Mutex
	config Config
	stderr io.Writer
	file   *lumberjack.Logger
}

func New() *ManagerCtx {
	return &ManagerCtx{
		stderr: os.Stderr,
	}
}

// ParseLevel accepts zerolog level names, empty meaning info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

func (m *ManagerCtx) Apply(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileChanged := m.file == nil && config.File != "" ||
		m.file != nil && (config.File != m.config.File ||
			config.MaxAge != m.config.MaxAge ||
			config.MaxSize != m.config.MaxSize ||
			config.MaxBackups != m.config.MaxBackups)

	if fileChanged {
		if m.file != nil {
			_ = m.file.Close()
			m.file = nil
		}
		if config.File != "" {
			m.file = &lumberjack.Logger{
				Filename:   config.File,
				MaxAge:     config.MaxAge,
				MaxSize:    config.MaxSize,
				MaxBackups: config.MaxBackups,
			}
		}
	}

	var writers []io.Writer
	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: m.stderr})
	} else if m.file == nil {
		writers = append(writers, m.stderr)
	}
	if m.file != nil {
		writers = append(writers, m.file)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	level, err := ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("level", config.Level).Msg("unknown log level, using info")
	}

	if m.config.Level != config.Level && m.config != (Config{}) {
		log.Info().Str("from", zerolog.GlobalLevel().String()).Str("to", level.String()).Msg("log level changed")
	}
	zerolog.SetGlobalLevel(level)

	m.config = config
}

// RotateOn reopens the log file whenever one of sig arrives.
func (m *ManagerCtx) RotateOn(sig ...os.Signal) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sig...)

	go func() {
		for range c {
			if err := m.Rotate(); err != nil {
				log.Err(err).Msg("unable to rotate log file")
			}
		}
	}()
}

func (m *ManagerCtx) Rotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	return m.file.Rotate()
}

func (m *ManagerCtx) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

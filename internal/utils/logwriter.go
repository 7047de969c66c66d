package utils

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogWriterCtx turns writes of line based loggers into zerolog messages.
type LogWriterCtx struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func LogWriter(l zerolog.Logger, level zerolog.Level) *LogWriterCtx {
	return &LogWriterCtx{
		logger: l,
		level:  level,
	}
}

func (l *LogWriterCtx) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			l.logger.WithLevel(l.level).Msg(line)
		}
	}
	return len(p), nil
}

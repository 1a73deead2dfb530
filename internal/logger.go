package internal

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Inside an initialized workspace it
// writes to a rotating file under .contexthub/logs; elsewhere to stderr.
func NewLogger(ws *Workspace, cfg LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetOutput(logOutput(ws, cfg))
	return log
}

func logOutput(ws *Workspace, cfg LogConfig) io.Writer {
	if ws == nil || !ws.Initialized() {
		return os.Stderr
	}
	if err := os.MkdirAll(ws.LogDir(), 0755); err != nil {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   ws.LogPath(),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

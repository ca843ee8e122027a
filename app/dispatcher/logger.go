package dispatcher

import (
	"io"
	"log"
	"os"

	"github.com/waxal-io/waxal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the dispatcher logger. Depending on LOG_OUTPUT it writes to
// stdout, a size-rotated file, or both.
func NewLogger(cfg config.LoggingConfig) *log.Logger {
	var w io.Writer
	switch cfg.Output {
	case "file":
		w = rotatingWriter(cfg)
	case "stdout":
		w = os.Stdout
	default:
		w = io.MultiWriter(os.Stdout, rotatingWriter(cfg))
	}
	return log.New(w, "[dispatcher] ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

func rotatingWriter(cfg config.LoggingConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

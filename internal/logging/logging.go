// Package logging configures the process-wide standard logger.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup sets the standard logger flags and, when path is non-empty, tees
// output to a size-rotated log file. The returned closer flushes and closes
// that file and is safe to call when no file was configured.
func Setup(prefix, path string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix(prefix)

	if path == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

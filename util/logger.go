package util

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
)

// Logger tags log records with a component name and optionally tees them
// to a dump file next to stdout. A nil Logger discards everything, so
// components can take a logger without guarding each call site.
type Logger struct {
	tag  string
	log  *slog.Logger
	file *os.File
}

// NewLogger creates a logger for the given tag. If dumpDir is non-empty
// the directory is created and records are also appended to
// <dumpDir>/<tag>.log.
func NewLogger(tag string, dumpDir string) (*Logger, error) {
	var out io.Writer = os.Stdout
	var file *os.File
	if dumpDir != "" {
		if err := os.MkdirAll(dumpDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("creating log dir %s: %w", dumpDir, err)
		}
		f, err := os.OpenFile(path.Join(dumpDir, tag+".log"), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file for %s: %w", tag, err)
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}
	return &Logger{
		tag:  tag,
		log:  slog.New(slog.NewTextHandler(out, nil)).With("tag", tag),
		file: file,
	}, nil
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

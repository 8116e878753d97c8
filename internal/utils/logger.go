package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Logger writes timestamped lines to a log file, mirroring to stdout when asked.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	mirror io.Writer
}

// DefaultLogPath is bdsgp.log next to the running executable, or in the temp
// directory when the executable path cannot be resolved.
func DefaultLogPath() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil && resolved != "" {
			exe = resolved
		}
		return filepath.Join(filepath.Dir(exe), "logs", "bdsgp.log")
	}
	return filepath.Join(os.TempDir(), "bdsgp", "logs", "bdsgp.log")
}

// NewLogger opens logFile for appending. If the file cannot be opened the
// logger falls back to stdout.
func NewLogger(logFile string) *Logger {
	logger := &Logger{}
	if logFile == "" {
		logFile = DefaultLogPath()
	}
	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: Error opening log file (%s): %v\n", time.Now().Format(timestampLayout), logFile, err)
		return logger
	}
	logger.file = f
	return logger
}

// NewWriterLogger logs to w only. Used by tests and when no file is wanted.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{mirror: w}
}

// SetMirror copies every line to w in addition to the file.
func (l *Logger) SetMirror(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.mirror = w
	l.mu.Unlock()
}

// Write appends a timestamped message. A nil logger is a no-op.
func (l *Logger) Write(message string) {
	if l == nil {
		return
	}
	line := fmt.Sprintf("%s: %s\n", time.Now().Format(timestampLayout), message)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.WriteString(line)
	}
	if l.mirror != nil {
		io.WriteString(l.mirror, line)
	}
	if l.file == nil && l.mirror == nil {
		fmt.Print(line)
	}
}

// Printf formats and writes a message.
func (l *Logger) Printf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Write(fmt.Sprintf(format, args...))
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Sync()
		l.file.Close()
		l.file = nil
	}
}

// File returns the underlying file handle when available.
func (l *Logger) File() *os.File {
	if l == nil {
		return nil
	}
	return l.file
}

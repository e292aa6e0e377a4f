package log

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LineWriter forwards everything written to it line by line into a logger.
// Child process output is attached through this so it ends up in the structured log.
type LineWriter struct {
	mu     sync.Mutex
	logger *zap.Logger
	level  zapcore.Level
	buf    bytes.Buffer
}

func NewLineWriter(logger *zap.Logger, level zapcore.Level) *LineWriter {
	return &LineWriter{logger: logger, level: level}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, keep it for the next write
			w.buf.Write(line)
			break
		}

		w.emit(line)
	}

	return len(p), nil
}

// Close flushes a trailing line that was not terminated by a newline
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}

	return nil
}

func (w *LineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}

	if ce := w.logger.Check(w.level, string(line)); ce != nil {
		ce.Write()
	}
}

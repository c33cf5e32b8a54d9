package dispatch

import (
	"bytes"
	"sync"
)

// Stream names the output stream a line was read from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineFunc receives one line of tool output without its newline.
type LineFunc func(stream Stream, line string)

// lineWriter splits written bytes into lines. The trailing partial line is
// delivered by Flush.
type lineWriter struct {
	stream Stream
	emit   LineFunc
	buf    []byte
}

func newLineWriter(stream Stream, emit LineFunc) *lineWriter {
	return &lineWriter{stream: stream, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.stream, string(bytes.TrimSuffix(w.buf[:i], []byte{'\r'})))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.stream, string(w.buf))
		w.buf = w.buf[:0]
	}
}

// serialize wraps fn so concurrent readers never call it at the same time.
func serialize(fn LineFunc) LineFunc {
	var mu sync.Mutex
	return func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		fn(stream, line)
	}
}

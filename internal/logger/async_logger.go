// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying writer (typically a rotating
// file) on a background goroutine, so a slow or momentarily blocked sink
// never stalls the calling FUSE operation. A full buffer drops the message
// rather than blocking.
type AsyncLogger struct {
	dst  io.Writer
	ch   chan []byte
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewAsyncLogger starts the background writer goroutine and returns the
// logger. Close must be called to drain and release it.
func NewAsyncLogger(dst io.Writer, bufferSize int) *AsyncLogger {
	l := &AsyncLogger{
		dst:  dst,
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *AsyncLogger) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)

	select {
	case l.ch <- data:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

func (l *AsyncLogger) run() {
	defer close(l.done)
	for data := range l.ch {
		if _, err := l.dst.Write(data); err != nil {
			return
		}
	}
}

// Close drains any buffered messages, then closes the underlying writer if
// it implements io.Closer. Safe to call more than once.
func (l *AsyncLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.ch)
		<-l.done
		if c, ok := l.dst.(io.Closer); ok {
			l.closeErr = c.Close()
		}
	})
	return l.closeErr
}

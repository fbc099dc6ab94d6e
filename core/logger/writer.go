package logger

import (
	"bufio"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	lineQueueSize = 1024
	flushInterval = 250 * time.Millisecond
)

type line struct {
	level slog.Level
	data  []byte
}

// lineQueue hands formatted lines to a background goroutine that writes them
// to every sink. When the queue is full, lines below Warn are dropped and
// counted; Warn and above wait for room.
type lineQueue struct {
	lines   chan line
	flushes chan chan error
	done    chan struct{}
	close   sync.Once

	out     *bufio.Writer
	dropped atomic.Uint64

	mu  sync.Mutex
	err error
}

func newLineQueue(sinks []io.Writer, size int) *lineQueue {
	if size <= 0 {
		size = lineQueueSize
	}
	live := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	q := &lineQueue{
		lines:   make(chan line, size),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		out:     bufio.NewWriterSize(io.MultiWriter(live...), 64*1024),
	}
	go q.run()
	return q
}

func (q *lineQueue) run() {
	defer close(q.done)
	tick := time.NewTicker(flushInterval)
	defer tick.Stop()
	for {
		select {
		case l, ok := <-q.lines:
			if !ok {
				q.fail(q.out.Flush())
				return
			}
			_, err := q.out.Write(l.data)
			q.fail(err)
			if l.level >= slog.LevelWarn {
				q.fail(q.out.Flush())
			}
		case ack := <-q.flushes:
			ack <- q.out.Flush()
		case <-tick.C:
			if q.out.Buffered() > 0 {
				q.fail(q.out.Flush())
			}
		}
	}
}

// Write queues a copy of p. It returns the first sink error seen so far.
func (q *lineQueue) Write(level slog.Level, p []byte) error {
	if err := q.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	l := line{level: level, data: append([]byte(nil), p...)}
	if level >= slog.LevelWarn {
		q.lines <- l
		return nil
	}
	select {
	case q.lines <- l:
	default:
		q.dropped.Add(1)
	}
	return nil
}

// Dropped reports how many lines were discarded under back-pressure.
func (q *lineQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Flush waits until every queued line has reached the sinks.
func (q *lineQueue) Flush() error {
	ack := make(chan error, 1)
	select {
	case q.flushes <- ack:
		return <-ack
	case <-q.done:
		return q.firstErr()
	}
}

// Close drains the queue, flushes and stops the writer goroutine.
func (q *lineQueue) Close() error {
	q.close.Do(func() { close(q.lines) })
	<-q.done
	return q.firstErr()
}

func (q *lineQueue) fail(err error) {
	if err == nil {
		return
	}
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
}

func (q *lineQueue) firstErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

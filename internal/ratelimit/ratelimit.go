// Package ratelimit provides a token bucket rate limiter for throttling
// FTP data connections.
package ratelimit

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrStopped is returned by throttled reads and writes once the limiter was
// stopped.
var ErrStopped = errors.New("ratelimit: limiter stopped")

// Limiter implements a token bucket limiting a transfer to a number of bytes
// per second. The bucket holds one second worth of tokens and starts full.
//
// A nil *Limiter imposes no limit.
type Limiter struct {
	rate   float64 // bytes per second
	burst  float64 // bucket capacity
	tokens float64
	last   time.Time
	mu     sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// New returns a limiter allowing bytesPerSecond, or nil if bytesPerSecond is
// not positive.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:   rate,
		burst:  rate,
		tokens: rate,
		last:   time.Now(),
		stop:   make(chan struct{}),
	}
}

// Stop wakes every waiter with ErrStopped and makes later waits fail. It is
// idempotent and safe on a nil limiter.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

// Wait blocks until n bytes may be transferred. Requests larger than the
// bucket are capped to its size.
func (l *Limiter) Wait(n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	need := min(float64(n), l.burst)

	for {
		select {
		case <-l.stop:
			return ErrStopped
		default:
		}

		l.mu.Lock()
		now := time.Now()
		l.tokens = min(l.burst, l.tokens+now.Sub(l.last).Seconds()*l.rate)
		l.last = now
		if l.tokens >= need {
			l.tokens -= need
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((need - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-l.stop:
			timer.Stop()
			return ErrStopped
		case <-timer.C:
		}
	}
}

// chunk returns the largest transfer size a single Wait can cover.
func (l *Limiter) chunk(n int) int {
	return min(n, max(1, int(l.burst)))
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader returns r throttled by limiter, or r itself if limiter is nil.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = p[:r.limiter.chunk(len(p))]
	if err := r.limiter.Wait(len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter returns w throttled by limiter, or w itself if limiter is nil.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n := w.limiter.chunk(len(p) - written)
		if err := w.limiter.Wait(n); err != nil {
			return written, err
		}
		m, err := w.w.Write(p[written : written+n])
		written += m
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

package ratelimit

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		bytesPerSecond int64
		expectNil      bool
	}{
		{"Valid rate", 1024, false},
		{"Zero rate (unlimited)", 0, true},
		{"Negative rate (unlimited)", -1, true},
		{"Very low rate", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.bytesPerSecond)
			if tt.expectNil != (limiter == nil) {
				t.Errorf("New(%d) = %v, expect nil: %v", tt.bytesPerSecond, limiter, tt.expectNil)
			}
			limiter.Stop()
		})
	}
}

func TestLimiter_Stop(t *testing.T) {
	limiter := New(1)

	// Stop should be idempotent
	limiter.Stop()
	limiter.Stop()

	if err := limiter.Wait(1); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait after Stop: got %v, want ErrStopped", err)
	}

	var nilLimiter *Limiter
	nilLimiter.Stop()
	if err := nilLimiter.Wait(1 << 20); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
}

func TestLimiter_StopWakesWaiter(t *testing.T) {
	limiter := New(10)
	if err := limiter.Wait(10); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- limiter.Wait(10) }()

	time.Sleep(20 * time.Millisecond)
	limiter.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("got %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not wake the waiter")
	}
}

func TestNewReaderWriter_NilLimiter(t *testing.T) {
	r := bytes.NewReader([]byte("data"))
	if NewReader(r, nil) != r {
		t.Error("Expected original reader when limiter is nil")
	}
	var buf bytes.Buffer
	if NewWriter(&buf, nil) != &buf {
		t.Error("Expected original writer when limiter is nil")
	}
}

func TestReader_LargeTransfer(t *testing.T) {
	data := make([]byte, 10*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	// 5KB/s with a full 5KB bucket: the second half takes about a second.
	limiter := New(5 * 1024)
	defer limiter.Stop()

	start := time.Now()
	result, err := io.ReadAll(NewReader(bytes.NewReader(data), limiter))
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(data, result) {
		t.Error("Data mismatch after rate-limited read")
	}
	if duration < 700*time.Millisecond {
		t.Errorf("Large read completed too quickly (%v)", duration)
	}
	if duration > 3*time.Second {
		t.Errorf("Large read took too long (%v)", duration)
	}
}

func TestWriter_LargeTransfer(t *testing.T) {
	data := make([]byte, 10*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	limiter := New(5 * 1024)
	defer limiter.Stop()

	var buf bytes.Buffer
	start := time.Now()
	n, err := NewWriter(&buf, limiter).Write(data)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) || !bytes.Equal(data, buf.Bytes()) {
		t.Error("Data mismatch after rate-limited write")
	}
	if duration < 700*time.Millisecond {
		t.Errorf("Large write completed too quickly (%v)", duration)
	}
	if duration > 3*time.Second {
		t.Errorf("Large write took too long (%v)", duration)
	}
}

func TestWriter_Stopped(t *testing.T) {
	limiter := New(1024)
	limiter.Stop()

	var buf bytes.Buffer
	n, err := NewWriter(&buf, limiter).Write([]byte("hello"))
	if !errors.Is(err, ErrStopped) || n != 0 {
		t.Errorf("got (%d, %v), want (0, ErrStopped)", n, err)
	}
}

func BenchmarkReader(b *testing.B) {
	data := make([]byte, 1024)
	limiter := New(1 << 30)
	defer limiter.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.ReadAll(NewReader(bytes.NewReader(data), limiter)); err != nil {
			b.Fatal(err)
		}
	}
}

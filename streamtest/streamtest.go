// Package streamtest provides scripted in-memory streams for testing code
// built on asyncftp.
//
// Streams deliver their events from their own goroutine, in order, and stop
// after the terminal event or after Close, like a real transport.
package streamtest

import (
	"bytes"
	"errors"
	"net/url"
	"sync"

	"github.com/gonzalop/asyncftp"
)

// ErrNotFound is reported by streams for URLs with no registered script.
var ErrNotFound = errors.New("streamtest: no such file")

// Transport serves scripted streams by URL path.
type Transport struct {
	mu      sync.Mutex
	inputs  map[string]*InputStream
	outputs map[string]*OutputStream
}

// NewTransport returns an empty Transport.
func NewTransport() *Transport {
	return &Transport{
		inputs:  make(map[string]*InputStream),
		outputs: make(map[string]*OutputStream),
	}
}

// Serve registers the input stream returned for the URL path p.
func (t *Transport) Serve(p string, s *InputStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs[p] = s
}

// Accept registers the output stream returned for the URL path p.
func (t *Transport) Accept(p string, s *OutputStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[p] = s
}

// NewInputStream implements asyncftp.Transport. Unknown paths get a stream
// failing with ErrNotFound.
func (t *Transport) NewInputStream(u *url.URL) asyncftp.InputStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.inputs[u.Path]
	if !ok {
		s = &InputStream{Failure: ErrNotFound}
	}
	s.setURL(u)
	return s
}

// NewOutputStream implements asyncftp.Transport. Unknown paths get a stream
// failing with ErrNotFound.
func (t *Transport) NewOutputStream(u *url.URL) asyncftp.OutputStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.outputs[u.Path]
	if !ok {
		s = &OutputStream{FailAfter: 1, Failure: ErrNotFound}
	}
	s.setURL(u)
	return s
}

// stream is the state shared by input and output streams.
type stream struct {
	// CloseErr is returned by Close.
	CloseErr error

	mu       sync.Mutex
	delegate asyncftp.StreamDelegate
	options  asyncftp.StreamOptions
	url      *url.URL
	opened   bool
	closed   bool
	aborted  bool
	events   []asyncftp.Event
	done     chan struct{}
}

func (s *stream) SetDelegate(d asyncftp.StreamDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

func (s *stream) SetOptions(opts asyncftp.StreamOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = opts
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.CloseErr
}

func (s *stream) setURL(u *url.URL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = u
}

// Options returns the options set by the operation.
func (s *stream) Options() asyncftp.StreamOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// URL returns the URL the stream was created for.
func (s *stream) URL() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Abort implements asyncftp.Aborter.
func (s *stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Aborted reports whether Abort was called.
func (s *stream) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Closed reports whether Close was called.
func (s *stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Events returns the events delivered so far.
func (s *stream) Events() []asyncftp.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]asyncftp.Event(nil), s.events...)
}

// Done is closed once the stream stopped delivering events.
func (s *stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

// start marks the stream open and returns false if it was opened already.
func (s *stream) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return false
	}
	s.opened = true
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return true
}

func (s *stream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.done)
}

// deliver sends ev to the delegate unless the stream was closed.
func (s *stream) deliver(self asyncftp.Stream, hook func(asyncftp.Event), ev asyncftp.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.events = append(s.events, ev)
	d := s.delegate
	s.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	if d != nil {
		d.HandleEvent(self, ev)
	}
	return true
}

// InputStream is a scripted asyncftp.InputStream. After opening it makes each
// of Chunks available in turn with one EventHasBytesAvailable, then ends with
// EventEndEncountered, or with EventErrorOccurred if Failure is set.
type InputStream struct {
	stream

	Chunks [][]byte

	// Failure, if set, is reported after the chunks instead of the end.
	Failure error

	// Size is reported through asyncftp.ResourceSizer when HasSize is set.
	Size    int64
	HasSize bool

	// BeforeEvent, if set, runs before each event is delivered.
	BeforeEvent func(ev asyncftp.Event)

	pending []byte
	reads   int
}

// NewInputStream returns a stream delivering data in chunks of chunkSize
// bytes, or in one chunk if chunkSize is not positive.
func NewInputStream(data []byte, chunkSize int) *InputStream {
	return &InputStream{Chunks: Split(data, chunkSize)}
}

// Split cuts data into chunks of at most size bytes.
func Split(data []byte, size int) [][]byte {
	if size <= 0 || len(data) <= size {
		if len(data) == 0 {
			return nil
		}
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// Open implements asyncftp.Stream.
func (s *InputStream) Open() {
	if !s.start() {
		return
	}
	go s.run()
}

func (s *InputStream) run() {
	defer s.stop()
	if !s.deliver(s, s.BeforeEvent, asyncftp.EventOpenCompleted) {
		return
	}
	for _, chunk := range s.Chunks {
		s.mu.Lock()
		s.pending = append(s.pending, chunk...)
		s.mu.Unlock()
		if !s.deliver(s, s.BeforeEvent, asyncftp.EventHasBytesAvailable) {
			return
		}
	}
	if s.Failure != nil {
		s.deliver(s, s.BeforeEvent, asyncftp.EventErrorOccurred)
		return
	}
	s.deliver(s, s.BeforeEvent, asyncftp.EventEndEncountered)
}

// Read implements asyncftp.InputStream.
func (s *InputStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	if n > 0 {
		s.reads++
	}
	return n, nil
}

// Reads returns the number of non-empty reads.
func (s *InputStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Err implements asyncftp.Stream.
func (s *InputStream) Err() error { return s.Failure }

// ResourceSize implements asyncftp.ResourceSizer.
func (s *InputStream) ResourceSize() (int64, bool) {
	return s.Size, s.HasSize
}

// OutputStream is a scripted asyncftp.OutputStream. After opening it raises
// EventHasSpaceAvailable until it is closed.
type OutputStream struct {
	stream

	// MaxWrite bounds the bytes accepted per Write; zero means no bound.
	MaxWrite int

	// Capacity bounds the total bytes accepted; writes beyond it are refused
	// with a zero count. Zero means no bound.
	Capacity int64

	// FailAfter, if positive, reports EventErrorOccurred with Failure in
	// place of the FailAfter-th space event.
	FailAfter int
	Failure   error

	// MaxEvents ends the stream with EventEndEncountered after that many space
	// events. It defaults to 100000.
	MaxEvents int

	// BeforeEvent, if set, runs before each event is delivered.
	BeforeEvent func(ev asyncftp.Event)

	buf    bytes.Buffer
	writes []int
}

// Open implements asyncftp.Stream.
func (s *OutputStream) Open() {
	if !s.start() {
		return
	}
	go s.run()
}

func (s *OutputStream) run() {
	defer s.stop()
	if !s.deliver(s, s.BeforeEvent, asyncftp.EventOpenCompleted) {
		return
	}
	limit := s.MaxEvents
	if limit <= 0 {
		limit = 100000
	}
	for i := 1; ; i++ {
		if s.FailAfter > 0 && i == s.FailAfter {
			s.deliver(s, s.BeforeEvent, asyncftp.EventErrorOccurred)
			return
		}
		if i > limit {
			s.deliver(s, s.BeforeEvent, asyncftp.EventEndEncountered)
			return
		}
		if !s.deliver(s, s.BeforeEvent, asyncftp.EventHasSpaceAvailable) {
			return
		}
	}
}

// Write implements asyncftp.OutputStream.
func (s *OutputStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(p)
	if s.MaxWrite > 0 {
		n = min(n, s.MaxWrite)
	}
	if s.Capacity > 0 {
		n = int(min(int64(n), s.Capacity-int64(s.buf.Len())))
	}
	if n <= 0 {
		s.writes = append(s.writes, 0)
		return 0, nil
	}
	s.buf.Write(p[:n])
	s.writes = append(s.writes, n)
	return n, nil
}

// Err implements asyncftp.Stream.
func (s *OutputStream) Err() error { return s.Failure }

// Bytes returns a copy of everything written.
func (s *OutputStream) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Writes returns the accepted count of every Write call, in order.
func (s *OutputStream) Writes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.writes...)
}

// SpaceEvents returns the number of space events delivered.
func (s *OutputStream) SpaceEvents() int {
	n := 0
	for _, ev := range s.Events() {
		if ev == asyncftp.EventHasSpaceAvailable {
			n++
		}
	}
	return n
}

var (
	_ asyncftp.InputStream   = (*InputStream)(nil)
	_ asyncftp.OutputStream  = (*OutputStream)(nil)
	_ asyncftp.ResourceSizer = (*InputStream)(nil)
	_ asyncftp.Transport     = (*Transport)(nil)
)

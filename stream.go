package asyncftp

import (
	"fmt"
	"net/url"
)

// Event is a notification from a stream about its byte channel.
type Event int

const (
	// EventOpenCompleted reports that the stream finished opening.
	EventOpenCompleted Event = iota + 1

	// EventHasBytesAvailable reports that an input stream has bytes to read.
	// It is edge-triggered: handlers read until Read returns zero.
	EventHasBytesAvailable

	// EventHasSpaceAvailable reports that an output stream accepts a write.
	// One chunk is written per event.
	EventHasSpaceAvailable

	// EventErrorOccurred reports a terminal transport failure; see Stream.Err.
	EventErrorOccurred

	// EventEndEncountered reports the terminal end of the stream.
	EventEndEncountered
)

func (e Event) String() string {
	switch e {
	case EventOpenCompleted:
		return "OpenCompleted"
	case EventHasBytesAvailable:
		return "HasBytesAvailable"
	case EventHasSpaceAvailable:
		return "HasSpaceAvailable"
	case EventErrorOccurred:
		return "ErrorOccurred"
	case EventEndEncountered:
		return "EndEncountered"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// StreamDelegate receives the events of a stream.
//
// A stream delivers its events one at a time, in order, from a single
// goroutine, and delivers nothing after the terminal ErrorOccurred or
// EndEncountered event or after Close.
type StreamDelegate interface {
	HandleEvent(s Stream, ev Event)
}

// StreamOptions are the properties an operation sets on its stream before
// opening it.
type StreamOptions struct {
	// Passive selects passive (PASV/EPSV) data connections.
	Passive bool

	Username string
	Password string

	// CloseNativeSocket closes the control connection gracefully when the
	// stream is closed.
	CloseNativeSocket bool

	// FetchResourceInfo asks the stream to look up the remote resource size
	// before transferring; see ResourceSizer.
	FetchResourceInfo bool
}

// Stream is one FTP data transfer managed by a transport.
type Stream interface {
	// SetDelegate sets the receiver of the stream's events.
	SetDelegate(d StreamDelegate)

	// SetOptions configures the stream. It must be called before Open.
	SetOptions(opts StreamOptions)

	// Open starts the stream. Events are delivered asynchronously.
	Open()

	// Close releases the stream. It is safe to call from within HandleEvent.
	Close() error

	// Err returns the error reported with EventErrorOccurred.
	Err() error
}

// InputStream is a stream bytes are read from.
type InputStream interface {
	Stream

	// Read reads up to len(p) currently available bytes. It returns 0 and a
	// nil error when no more bytes are available until the next
	// EventHasBytesAvailable.
	Read(p []byte) (int, error)
}

// OutputStream is a stream bytes are written to.
type OutputStream interface {
	Stream

	// Write writes up to len(p) bytes and reports how many were accepted.
	// A count of zero with a nil error means the transport takes no more data.
	Write(p []byte) (int, error)
}

// ResourceSizer is implemented by streams that can report the size of the
// remote resource, when opened with StreamOptions.FetchResourceInfo.
type ResourceSizer interface {
	ResourceSize() (int64, bool)
}

// Aborter is implemented by streams that can abandon a transfer in progress.
// A failing or cancelled operation calls Abort before Close, so that Close
// does not complete the partial transfer with the server.
type Aborter interface {
	Abort()
}

// Transport creates streams for resolved FTP URLs.
//
// A URL whose path ends in "/" names a directory: input streams for it
// deliver the directory listing.
type Transport interface {
	NewInputStream(u *url.URL) InputStream
	NewOutputStream(u *url.URL) OutputStream
}

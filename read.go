package asyncftp

// bufferSize is the size of the scratch buffer of every transfer.
const bufferSize = 1024

// readStream lazily creates the input stream of an operation and owns the
// scratch buffer its handler reads into.
type readStream struct {
	transport Transport
	stream    InputStream
	buf       []byte
}

func (r *readStream) inputStream(op *StreamOperation) InputStream {
	if r.stream == nil {
		r.stream = r.transport.NewInputStream(op.config.Resolve(op.path))
	}
	return r.stream
}

func (r *readStream) scratch() []byte {
	if r.buf == nil {
		r.buf = make([]byte, bufferSize)
	}
	return r.buf
}

// drain reads s until no bytes are available and passes every non-empty
// chunk to fn. The chunk is only valid during the call.
func (r *readStream) drain(s InputStream, fn func([]byte) error) error {
	buf := r.scratch()
	for {
		n, err := s.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		// A read error is reported by the stream as EventErrorOccurred.
		if n <= 0 || err != nil {
			return nil
		}
	}
}

package asyncftp

// writeStream lazily creates the output stream of an operation and owns the
// scratch buffer its handler writes from.
type writeStream struct {
	transport Transport
	stream    OutputStream
	buf       []byte
}

func (w *writeStream) outputStream(op *StreamOperation) OutputStream {
	if w.stream == nil {
		w.stream = w.transport.NewOutputStream(op.config.Resolve(op.path))
	}
	return w.stream
}

func (w *writeStream) scratch() []byte {
	if w.buf == nil {
		w.buf = make([]byte, bufferSize)
	}
	return w.buf
}

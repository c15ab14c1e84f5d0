package transport

import "fmt"

// ProtocolError is a negative reply of the FTP server, with the command it
// answered.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "RETR")
	Command string

	// Response is the reply message (e.g., "Permission denied")
	Response string

	// Code is the numeric reply code (e.g., 550)
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary reports whether the reply is a transient failure (4xx) and the
// transfer may be retried.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent reports whether the reply is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

func protocolError(command string, resp *Response) *ProtocolError {
	return &ProtocolError{Command: command, Response: resp.Message, Code: resp.Code}
}

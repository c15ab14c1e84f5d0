// Package transport provides FTP streams over TCP for asyncftp operations.
//
// # Overview
//
// A Transport hands out one stream per operation. Opening a stream dials a
// control connection, logs in and starts the transfer:
//   - URLs whose path ends in "/" are listed with LIST (or MLSD)
//   - Other URLs are retrieved with RETR or stored with STOR
//   - Passive mode tries EPSV first and falls back to PASV
//   - Active mode announces a local listener with PORT or EPRT
//
// Every stream runs a goroutine that performs the protocol exchange and
// delivers the stream events to its delegate. Replies and commands are logged
// at debug level with zap; passwords are never logged.
//
// # Basic Usage
//
//	t, err := transport.New(
//	    transport.WithTimeout(10*time.Second),
//	    transport.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, _ := asyncftp.NewConfiguration("ftp://ftp.example.com/pub/")
//	op := asyncftp.NewDownloadOperation(cfg, t, "README")
//	op.Start()
//	if err := op.Wait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Negative server replies are reported as *ProtocolError:
//
//	var pe *transport.ProtocolError
//	if errors.As(err, &pe) && pe.Code == 550 {
//	    // file not found
//	}
//
// # Bandwidth
//
// WithBandwidthLimit throttles every data connection of the transport with
// a token bucket.
package transport

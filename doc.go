// Package asyncftp implements asynchronous FTP file operations driven by
// stream events.
//
// # Overview
//
// Every operation (list, download, upload) is a small state machine that
// moves from Ready to Executing to Finished. Starting an operation opens a
// single stream through a Transport; the stream then delivers events
// (open completed, bytes available, space available, error, end) on its own
// goroutine, and the operation reacts to each one until the transfer ends,
// fails, or is cancelled. The result of an operation is observable once it is
// Finished.
//
// The transport package provides a Transport that speaks FTP over TCP. The
// streamtest package provides scripted streams for tests.
//
// # Basic Usage
//
//	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/pub",
//	    asyncftp.WithCredentials("user", "secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	t, err := transport.New(transport.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	op := asyncftp.NewListOperation(cfg, t, "incoming")
//	op.Start()
//	if err := op.Wait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for _, item := range op.Resources() {
//	    fmt.Println(item.Path, item.Type, item.Size)
//	}
//
// # Sessions and Queues
//
// A Session schedules operations on a Queue that bounds how many run at once,
// and offers blocking helpers:
//
//	session := asyncftp.NewSession(ctx, cfg, t, 4)
//	local, err := session.Download(ctx, "incoming/report.csv")
//
// # Cancellation
//
// Cancel may be called from any goroutine. The operation notices it before
// its next stream event, releases its local resources (a partial download is
// deleted) and finishes with ErrCancelled. An operation cancelled before it
// starts finishes as soon as it is started.
//
// # Error Handling
//
// An operation captures at most one error. Transport failures are returned as
// reported by the stream, local file failures as *LocalIOError, and
// cancellation as ErrCancelled:
//
//	err := op.Wait(ctx)
//	if errors.Is(err, asyncftp.ErrCancelled) {
//	    // cancelled
//	}
//	var ioErr *asyncftp.LocalIOError
//	if errors.As(err, &ioErr) {
//	    log.Printf("local file %s: %v", ioErr.Path, ioErr.Err)
//	}
//
// # Listings
//
// Listings are decoded with the listing package, which understands Unix,
// DOS, EPLF and MLSD formats. Entry names are converted to the encoding set
// with WithEncoding.
package asyncftp

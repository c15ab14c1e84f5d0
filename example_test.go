package asyncftp_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gonzalop/asyncftp"
	"github.com/gonzalop/asyncftp/streamtest"
)

// ExampleListOperation lists a directory through a scripted transport.
func ExampleListOperation() {
	t := streamtest.NewTransport()
	t.Serve("/pub/", streamtest.NewInputStream([]byte(
		"drwxr-xr-x 2 ftp ftp 4096 Jan 01 2024 docs\r\n"+
			"-rw-r--r-- 1 ftp ftp   11 Jan 01 2024 hello.txt\r\n"), 0))

	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/")
	if err != nil {
		log.Fatal(err)
	}

	op := asyncftp.NewListOperation(cfg, t, "/pub")
	op.Start()
	if err := op.Wait(context.Background()); err != nil {
		log.Fatal(err)
	}
	for _, item := range op.Resources() {
		fmt.Println(item.Path, item.Type, item.Size)
	}
	// Output:
	// /pub/docs Directory 4096
	// /pub/hello.txt RegularFile 11
}

// ExampleSession_Download downloads a file and reads the temporary copy.
func ExampleSession_Download() {
	t := streamtest.NewTransport()
	t.Serve("/pub/hello.txt", streamtest.NewInputStream([]byte("hello, world"), 4))

	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/pub")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	session := asyncftp.NewSession(ctx, cfg, t, 2)
	local, err := session.Download(ctx, "hello.txt")
	if err != nil {
		log.Fatal(err)
	}
	defer os.Remove(local)

	data, err := os.ReadFile(local)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
	// Output: hello, world
}

// ExampleOperation_Cancel cancels an operation before it starts.
func ExampleOperation_Cancel() {
	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/")
	if err != nil {
		log.Fatal(err)
	}

	op := asyncftp.NewDownloadOperation(cfg, streamtest.NewTransport(), "big.iso")
	op.Cancel()
	op.Start()

	err = op.Wait(context.Background())
	fmt.Println(errors.Is(err, asyncftp.ErrCancelled), op.State())
	// Output: true Finished
}

func ExampleFilterResources() {
	items := []asyncftp.ResourceItem{
		{Name: "report.csv"},
		{Name: "notes.md"},
		{Name: "data.csv"},
	}
	csv, err := asyncftp.FilterResources(items, "*.csv")
	if err != nil {
		log.Fatal(err)
	}
	for _, item := range csv {
		fmt.Println(item.Name)
	}
	// Output:
	// report.csv
	// data.csv
}

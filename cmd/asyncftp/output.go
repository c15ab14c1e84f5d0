package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/gonzalop/asyncftp"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	dirColor = color.New(color.FgBlue, color.Bold)
	lnkColor = color.New(color.FgCyan)
)

// printer writes command results.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) printer {
	return printer{w: w}
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", okMark, fmt.Sprintf(format, args...))
}

func (p printer) failure(err error) {
	fmt.Fprintf(p.w, "%s %v\n", failMark, err)
}

// resource prints one listing entry in an ls -l like layout.
func (p printer) resource(item asyncftp.ResourceItem) {
	name := item.Path
	switch item.Type {
	case asyncftp.ResourceDirectory:
		name = dirColor.Sprint(name + "/")
	case asyncftp.ResourceSymbolicLink:
		name = lnkColor.Sprint(name)
		if item.Link != "" {
			name += " -> " + item.Link
		}
	}

	date := "-"
	if !item.Date.IsZero() {
		date = item.Date.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(p.w, "%s %-8s %-8s %12d %16s %s\n",
		item.FileMode(), orDash(item.Owner), orDash(item.Group), item.Size, date, name)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

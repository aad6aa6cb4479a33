package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"

	"github.com/shitpoet/ungz/internal/gzip"
	"github.com/shitpoet/ungz/ranger"
	"github.com/shitpoet/ungz/tarfs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// run mirrors original_source/ungz.c's main(): read a whole gzip stream,
// decode it, and write the result to stdout. --list and --url are additive
// modes layered on top of the same decode call (SPEC_FULL.md, "CLI").
func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: ungz [--list] [--url] <path-or-url>")
	}

	listMode := false
	urlMode := false
	rest := args
	for len(rest) > 0 && len(rest[0]) > 0 && rest[0][0] == '-' {
		switch rest[0] {
		case "--list":
			listMode = true
		case "--url":
			urlMode = true
		default:
			return fmt.Errorf("unknown flag %q", rest[0])
		}
		rest = rest[1:]
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: ungz [--list] [--url] <path-or-url>")
	}

	var raw []byte
	var err error
	if urlMode {
		raw, err = readAllURL(rest[0])
	} else {
		raw, err = os.ReadFile(rest[0])
	}
	if err != nil {
		return err
	}

	if listMode {
		return list(raw)
	}

	out, _, err := gzip.Decode(raw)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(out)
	return err
}

// readAllURL fetches the whole resource at uri using ranger.Reader, a
// range-request io.ReaderAt. A HEAD request establishes the resource length
// up front so ranger.Reader.ReadAll can stride through it.
func readAllURL(uri string) ([]byte, error) {
	head, err := http.Head(uri)
	if err != nil {
		return nil, err
	}
	head.Body.Close()
	if head.ContentLength < 0 {
		return nil, fmt.Errorf("%q did not report a Content-Length", uri)
	}

	r := ranger.New(context.Background(), uri, http.DefaultTransport)
	const stride = 1 << 20
	return r.ReadAll(head.ContentLength, stride)
}

// list decodes raw as a gzip-compressed tar archive and prints its entries.
func list(raw []byte) error {
	fsys, err := tarfs.FromGzip(raw)
	if err != nil {
		return err
	}

	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		fmt.Println(p)
		return nil
	})
}

// Package pdf inspects compiled artifacts for reporting.
package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Info describes a compiled document
type Info struct {
	Pages    int
	Bytes    int
	Title    string
	Producer string
}

// Inspect opens data with MuPDF and reads its page count and metadata.
// It is only used to describe an artifact, never to decide whether a
// compilation succeeded.
func Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, errors.New("not a pdf document")
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	info := &Info{
		Pages: doc.NumPage(),
		Bytes: len(data),
	}
	if meta := doc.Metadata(); meta != nil {
		info.Title = meta["title"]
		info.Producer = meta["producer"]
	}
	return info, nil
}

// Package tabular gives the record parser a uniform "header row plus
// ordered data rows" view over the file formats fuel-card providers
// export, so parsing never special-cases file format.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a file's extension maps to no
// known reader variant. The check happens before any I/O.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Kind identifies the reader variant behind the uniform interface.
type Kind int

const (
	// KindDelimited is plain delimited text (one line per row, literal split).
	KindDelimited Kind = iota
	// KindWorkbook is a spreadsheet workbook (first sheet only).
	KindWorkbook
)

// Row is one data row with positional string access. Cell returns "" for
// any index outside the row.
type Row interface {
	Cell(i int) string
	Len() int
}

// Reader exposes a file's header row and a single-pass sequence of data
// rows. Next returns io.EOF when the rows are exhausted.
type Reader interface {
	Kind() Kind
	Headers() []string
	Next() (Row, error)
	Close() error
}

type sliceRow []string

func (r sliceRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

func (r sliceRow) Len() int { return len(r) }

// Open opens a file with the reader variant selected by its extension.
// Unrecognized extensions are rejected before the file is touched.
func Open(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := open(f, ext)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// OpenReader is like Open for an already-open stream; filename supplies
// the extension used for dispatch.
func OpenReader(src io.ReadCloser, filename string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return open(src, ext)
}

func supported(ext string) bool {
	return ext == ".csv" || ext == ".xlsx"
}

func open(src io.ReadCloser, ext string) (Reader, error) {
	switch ext {
	case ".csv":
		return newDelimitedReader(src, ',')
	case ".xlsx":
		return newWorkbookReader(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

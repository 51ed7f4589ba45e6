package tabular

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// delimitedReader reads header+rows from delimited text. Lines are split
// literally on the delimiter; provider exports do not quote embedded
// delimiters, so no CSV quoting rules apply.
type delimitedReader struct {
	src     io.ReadCloser
	scanner *bufio.Scanner
	delim   string
	headers []string
}

func newDelimitedReader(src io.ReadCloser, delim rune) (*delimitedReader, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	r := &delimitedReader{src: src, scanner: scanner, delim: string(delim)}

	line, err := r.nextLine()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty file")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	r.headers = strings.Split(line, r.delim)
	return r, nil
}

func (r *delimitedReader) Kind() Kind        { return KindDelimited }
func (r *delimitedReader) Headers() []string { return r.headers }

func (r *delimitedReader) Next() (Row, error) {
	line, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	return sliceRow(strings.Split(line, r.delim)), nil
}

// nextLine returns the next non-blank line with any trailing CR removed.
func (r *delimitedReader) nextLine() (string, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *delimitedReader) Close() error { return r.src.Close() }

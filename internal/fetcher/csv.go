// Package fetcher opens local or remote import files and streams their rows.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// Row is one data row keyed by its lowercased header.
type Row struct {
	Line   int
	Header []string
	Values map[string]string
}

// Get returns the first non-empty value among keys.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := r.Values[k]; v != "" {
			return v
		}
	}
	return ""
}

// First returns the value of the first column.
func (r Row) First() string {
	if len(r.Header) == 0 {
		return ""
	}
	return r.Values[r.Header[0]]
}

// StreamCSV reads a CSV with a header row and sends data rows to a channel.
// Header names are trimmed and lowercased; values are trimmed. The caller
// must drain the row channel. Both channels are closed when processing
// completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		var header []string
		line := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				if header == nil {
					errCh <- eris.New("csv: missing header row")
				}
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line++

			if header == nil {
				header = make([]string, len(record))
				for i, h := range record {
					header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
				}
				continue
			}

			values := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(record) {
					values[h] = strings.TrimSpace(record[i])
				}
			}

			select {
			case rowCh <- Row{Line: line, Header: header, Values: values}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

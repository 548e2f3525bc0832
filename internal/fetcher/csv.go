// Package fetcher downloads lead files and parses them into keyed records.
package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/leadscore/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// Record is one data row keyed by lower-cased header name. Line is the
// 1-based position of the row among data rows (the header is not counted).
// Err is set when the row itself was malformed; such rows carry no Fields
// and the stream continues past them.
type Record struct {
	Line   int
	Fields map[string]string
	Err    error
}

// StreamCSV reads a header row followed by data rows and sends them to a
// channel in stream order. Values are trimmed. A UTF-8 or UTF-16 byte order
// mark is honored. Stream-level failures (unreadable input, invalid UTF-8,
// missing header) are sent on the error channel wrapped with
// model.ErrStreamParse and end the stream. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	rowCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.Wrap(model.ErrStreamParse, "csv: empty stream, header row required")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(model.ErrStreamParse, "csv: read header: "+err.Error())
			return
		}
		if !validUTF8(header) {
			errCh <- eris.Wrap(model.ErrStreamParse, "csv: header is not valid UTF-8")
			return
		}
		for i, h := range header {
			header[i] = strings.ToLower(strings.TrimSpace(h))
		}

		line := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}

			line++
			rec := Record{Line: line}

			var parseErr *csv.ParseError
			switch {
			case errors.As(err, &parseErr):
				rec.Err = eris.Wrap(model.ErrValidation, "malformed row: "+parseErr.Err.Error())
			case err != nil:
				errCh <- eris.Wrap(model.ErrStreamParse, "csv: read row: "+err.Error())
				return
			case !validUTF8(record):
				errCh <- eris.Wrapf(model.ErrStreamParse, "csv: row %d is not valid UTF-8", line)
				return
			default:
				rec.Fields = mapRecord(header, record)
			}

			select {
			case rowCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func mapRecord(header, record []string) map[string]string {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if h == "" || i >= len(record) {
			continue
		}
		fields[h] = strings.TrimSpace(record[i])
	}
	return fields
}

func validUTF8(fields []string) bool {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return false
		}
	}
	return true
}

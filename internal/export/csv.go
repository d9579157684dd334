// Package export encodes record sets as the CSV artifact and reads them back.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"xetl/internal/model"
)

const ContentType = "text/csv; charset=utf-8"

var (
	ErrInvalidUTF8    = errors.New("record text is not valid UTF-8")
	ErrHeaderMismatch = errors.New("csv header does not match record schema")
)

// EncodeCSV renders the header and one row per record, in order. Fields are
// quoted only when they hold a comma, quote, newline or leading space.
func EncodeCSV(records []model.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.RecordSchema.Columns); err != nil {
		return nil, err
	}
	for i, r := range records {
		row := r.Row()
		for _, f := range row {
			if !utf8.ValidString(f) {
				return nil, fmt.Errorf("row %d: %w", i, ErrInvalidUTF8)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses an artifact produced by EncodeCSV. encoding/csv reads a
// CRLF pair inside a quoted field back as LF, so such texts come back with
// "\n" where the artifact holds "\r\n". Every other text round-trips exactly.
func DecodeCSV(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(model.RecordSchema.Columns)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrHeaderMismatch
		}
		return nil, err
	}
	if strings.Join(header, ",") != strings.Join(model.RecordSchema.Columns, ",") {
		return nil, fmt.Errorf("%w: %v", ErrHeaderMismatch, header)
	}

	out := make([]model.Record, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		counts := make([]int, 4)
		for i := range counts {
			n, err := strconv.Atoi(row[3+i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, model.RecordSchema.Columns[3+i], err)
			}
			counts[i] = n
		}
		out = append(out, model.Record{
			User:         row[0],
			Date:         row[1],
			Text:         row[2],
			RetweetCount: counts[0],
			LikeCount:    counts[1],
			ReplyCount:   counts[2],
			QuoteCount:   counts[3],
		})
	}
	return out, nil
}

package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// MaxFileSize bounds how much of one snapshot file is read.
const MaxFileSize = 64 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRows parses a CSV snapshot with a header line into raw rows.
//
// Blank lines are skipped, short rows leave their trailing columns absent and extra
// cells are ignored. The delimiter is "," unless the header holds more ";" than ",".
func ReadRows(r io.Reader) ([]model.RawRow, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("snapshot larger than %d bytes", MaxFileSize)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []model.RawRow
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return rows, fmt.Errorf("read record near line %d: %w", line, err)
		}
		if blankRecord(rec) {
			continue
		}
		rows = append(rows, toRow(header, rec))
	}
	return rows, nil
}

func toRow(header, rec []string) model.RawRow {
	row := make(model.RawRow, len(header))
	for i, name := range header {
		if name == "" || i >= len(rec) {
			continue
		}
		if prev, dup := row[name]; dup && strings.TrimSpace(prev) != "" {
			continue
		}
		row[name] = rec[i]
	}
	return row
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return ','
	}
	first := sc.Text()
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

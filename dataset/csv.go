package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/dirscrape/models"
)

// Decode reads a CSV table with a header row into ordered rows.
// Short records leave the missing columns empty.
func Decode(r io.Reader) (header []string, rows []Row, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err = reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Encode writes rows against columns, in that order, with a header row.
// Absent fields are written as empty strings.
func Encode(w io.Writer, columns []string, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			record[i] = row[c]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// ReadCSV reads the input table at path.
func ReadCSV(path string) (header []string, rows []Row, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeInputRead, "open input", err)
	}
	defer f.Close()

	header, rows, err = Decode(f)
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeInputRead, "parse input", err)
	}
	return header, rows, nil
}

// WriteCSV writes the dataset to path. The table is written to a temporary
// file in the same directory and renamed into place, so a failed write never
// truncates an existing file (the output defaults to the input). The
// replacement keeps the permissions of the file it replaces, or 0644.
func WriteCSV(path string, d *Dataset) error {
	if err := ensureDir(path); err != nil {
		return models.NewScrapeError(models.ErrCodeOutputWrite, "create output directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeOutputWrite, "create output", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, d.Header(), d.Rows); err != nil {
		tmp.Close()
		return models.NewScrapeError(models.ErrCodeOutputWrite, "write output", err)
	}
	if err := tmp.Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeOutputWrite, "close output", err)
	}
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return models.NewScrapeError(models.ErrCodeOutputWrite, "set output permissions", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return models.NewScrapeError(models.ErrCodeOutputWrite, "replace output", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

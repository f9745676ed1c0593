package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"quotelens/logger"
)

// WriteError reports a report file that could not be produced. The path names
// the intended destination, not the temporary file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// writeCSV writes one table atomically: rows go to a uniquely named temp file
// in the target directory, which is renamed over the destination only after a
// successful flush. Readers never observe a half-written table.
func writeCSV(dir, name string, header []string, rows [][]string) error {
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.New().String()))
	f, err := os.Create(tmp)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	logger.IncrementRowsWritten(name, len(rows))
	logger.GetLogger().WithComponent("writer").WithFields(logger.Fields{
		"table": name,
		"rows":  len(rows),
	}).Debug("table written")

	return nil
}

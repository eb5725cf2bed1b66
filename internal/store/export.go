package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Export writes every record generated at or after since as one JSON line
// each, zstd-compressed. It returns the number of records written.
func Export(w io.Writer, fs *FileStore, since time.Time) (int, error) {
	records, err := fs.List()
	if err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	n := 0
	jw := json.NewEncoder(enc)
	for _, rec := range records {
		if !since.IsZero() && rec.GeneratedAt.Before(since) {
			continue
		}
		if err := jw.Encode(rec); err != nil {
			enc.Close()
			return n, fmt.Errorf("failed to write record %s: %w", rec.SessionID, err)
		}
		n++
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("failed to finish archive: %w", err)
	}
	return n, nil
}

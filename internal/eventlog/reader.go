package eventlog

import (
	"bufio"
	"fmt"
	"os"
)

// MaxLineSize bounds a single JSONL line. Assistant messages with thinking
// blocks and tool results can exceed the scanner's 64KB default.
const MaxLineSize = 10 * 1024 * 1024

// Reader streams normalized events from the oldest entry forward and stops
// after maxEntries lines. Blank and unparseable lines still count toward
// the cap so the bound holds for any input.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	decoder lineDecoder

	maxEntries int
	processed  int
	truncated  bool
	done       bool
	pending    []Event
	err        error
}

type lineDecoder interface {
	decode(line []byte) []Event
}

// Open opens the event log at path. format selects the line decoder.
// maxEntries <= 0 means no cap.
func Open(path string, format Format, maxEntries int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	var dec lineDecoder = nativeDecoder{}
	if format == FormatClaude {
		dec = newClaudeDecoder()
	}

	return &Reader{
		file:       f,
		scanner:    scanner,
		decoder:    dec,
		maxEntries: maxEntries,
	}, nil
}

// Next returns the next event. ok is false once the log or the cap is exhausted.
func (r *Reader) Next() (Event, bool) {
	for len(r.pending) == 0 {
		if r.done {
			return Event{}, false
		}
		if r.maxEntries > 0 && r.processed >= r.maxEntries {
			r.done = true
			r.truncated = r.scanner.Scan()
			return Event{}, false
		}
		if !r.scanner.Scan() {
			r.done = true
			if err := r.scanner.Err(); err != nil {
				r.err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			return Event{}, false
		}
		r.processed++

		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r.pending = r.decoder.decode(line)
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, true
}

// Processed is the number of log entries consumed so far
func (r *Reader) Processed() int { return r.processed }

// Truncated reports whether entries remained past the cap
func (r *Reader) Truncated() bool { return r.truncated }

// Err returns the first read error. A log cut off mid-line is not an
// error: the partial line is skipped like any other unparseable entry.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying file
func (r *Reader) Close() error { return r.file.Close() }

// ReadAll collects every event within the cap
func ReadAll(path string, format Format, maxEntries int) ([]Event, error) {
	r, err := Open(path, format, maxEntries)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	for {
		ev, ok := r.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return events, r.Err()
}

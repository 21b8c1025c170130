// Package journal appends pipeline events to rotating JSON-lines files and
// hands closed files to an archiver.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/domain"
)

// Archiver receives rotated journal files.
type Archiver interface {
	Archive(ctx context.Context, path string) error
}

// Options configures a Writer.
type Options struct {
	// Dir holds the journal files. Created if missing.
	Dir string
	// Prefix names the files: <prefix>-<utc timestamp>-<seq>.jsonl. Default "events".
	Prefix string
	// MaxBytes rotates the current file once it reaches this size. Default 64 MiB.
	MaxBytes int64
	// MaxAge rotates a non-empty file older than this. Zero disables age rotation.
	MaxAge time.Duration
	// Archiver, when set, receives every rotated file.
	Archiver Archiver
	// ArchiveTimeout bounds a single archive call. Default 2m.
	ArchiveTimeout time.Duration
	Logger         *zap.Logger
}

const (
	defaultPrefix      = "events"
	defaultMaxBytes    = 64 << 20
	defaultArchiveTime = 2 * time.Minute
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("journal: writer closed")

// Writer is a domain.EventSink writing one JSON object per line.
type Writer struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	file     *os.File
	buf      *bufio.Writer
	path     string
	size     int64
	openedAt time.Time
	closed   bool
	failures int64
	seq      int

	archiving sync.WaitGroup
}

// NewWriter creates the journal directory and opens the first file lazily.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("journal: dir is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = defaultArchiveTime
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{opts: opts, logger: opts.Logger.Named("journal"), now: time.Now}, nil
}

// Emit appends ev. Write errors are logged and counted, never returned.
func (w *Writer) Emit(_ context.Context, ev domain.Event) {
	if err := w.Write(ev); err != nil {
		w.mu.Lock()
		w.failures++
		w.mu.Unlock()
		w.logger.Warn("journal write failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// Write appends ev and rotates when a limit is reached.
func (w *Writer) Write(ev domain.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.file != nil && w.dueLocked(int64(len(line))) {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}
	if w.file == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}
	n, err := w.buf.Write(line)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return w.buf.Flush()
}

// Failures returns the number of events that could not be written.
func (w *Writer) Failures() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Path returns the file currently written to, or "" before the first event.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Rotate closes the current file and hands it to the archiver.
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.rotateLocked()
}

// Close rotates the last file and waits for pending archive uploads.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	err := w.rotateLocked()
	w.closed = true
	w.mu.Unlock()

	w.archiving.Wait()
	return err
}

func (w *Writer) dueLocked(next int64) bool {
	if w.size == 0 {
		return false
	}
	if w.size+next > w.opts.MaxBytes {
		return true
	}
	return w.opts.MaxAge > 0 && w.now().Sub(w.openedAt) >= w.opts.MaxAge
}

func (w *Writer) openLocked() error {
	now := w.now().UTC()
	w.seq++
	name := fmt.Sprintf("%s-%s-%04d.jsonl", w.opts.Prefix, now.Format("20060102T150405Z"), w.seq)
	path := filepath.Join(w.opts.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.path = path
	w.size = 0
	w.openedAt = now
	return nil
}

func (w *Writer) rotateLocked() error {
	if w.file == nil {
		return nil
	}
	path, size := w.path, w.size
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file, w.buf, w.path, w.size = nil, nil, "", 0

	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	w.logger.Debug("journal rotated", zap.String("path", path), zap.Int64("bytes", size))

	if w.opts.Archiver != nil {
		w.archiving.Add(1)
		go w.archive(path)
	}
	return nil
}

func (w *Writer) archive(path string) {
	defer w.archiving.Done()
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.ArchiveTimeout)
	defer cancel()
	if err := w.opts.Archiver.Archive(ctx, path); err != nil {
		w.logger.Error("journal archive failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("journal archived", zap.String("path", path))
}

var _ domain.EventSink = (*Writer)(nil)

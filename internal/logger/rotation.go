package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// rotatedTimeFormat stamps rotated files as vechnost.log.20060102-150405.
const rotatedTimeFormat = "20060102-150405"

// RotatingWriter writes the daemon log and rotates it by size. Rotated
// files are optionally gzipped and reaped after maxAge days so a
// long-lived install does not fill its data directory.
type RotatingWriter struct {
	path     string
	maxSize  int64 // bytes
	maxAge   int   // days; 0 disables reaping
	compress bool

	f    *os.File
	size int64
}

// NewRotatingWriter opens (or creates) the log file at path and starts
// a background sweep of rotated files older than maxAge days.
func NewRotatingWriter(path string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxAge:   maxAge,
		compress: compress,
		f:        f,
		size:     info.Size(),
	}
	go w.cleanup()

	return w, nil
}

// Write appends to the current log file, rotating first when the write
// would push it past maxSize.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the current log file.
func (w *RotatingWriter) Close() error {
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}

// rotate renames the current file aside with a timestamp suffix and
// starts a fresh one. Compression runs off the write path.
func (w *RotatingWriter) rotate() error {
	if err := w.f.Close(); err != nil {
		return err
	}

	rotated := w.path + "." + time.Now().Format(rotatedTimeFormat)
	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}
	if w.compress {
		go w.compressFile(rotated)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.f = f
	w.size = 0

	return nil
}

// compressFile gzips a rotated file in place and removes the original.
func (w *RotatingWriter) compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gzw := gzip.NewWriter(dst)
	defer gzw.Close()

	if _, err := io.Copy(gzw, src); err != nil {
		return err
	}
	return os.Remove(path)
}

// cleanup removes rotated files (and their gzipped forms) older than
// maxAge days.
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	rotated, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	for _, path := range rotated {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		os.Remove(path)
		if !strings.HasSuffix(path, ".gz") {
			os.Remove(path + ".gz")
		}
	}
}

package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Rotation triggers
	DefaultMaxMatchesPerFile = 500
	DefaultMaxFileAge        = 24 * time.Hour
)

// RawRecord is one archived match: the untouched detail and timeline
// payloads as fetched, before normalization.
type RawRecord struct {
	MatchID   string    `json:"matchId"`
	PlayerID  string    `json:"puuid"`
	FetchedAt time.Time `json:"fetchedAt"`
	Match     any       `json:"match"`
	Timeline  any       `json:"timeline"`
}

// FileRotator appends raw records to rotating JSONL files.
// Files move hot -> warm on rotation and warm -> cold (gzip) on Compact.
type FileRotator struct {
	mu sync.Mutex

	hotDir  string // Active writes
	warmDir string // Closed files
	coldDir string // Compressed archives

	maxMatches int
	maxAge     time.Duration
	logger     *slog.Logger
	now        func() time.Time

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
	fileSeq       int
}

// RotatorOption configures a FileRotator
type RotatorOption func(*FileRotator)

func WithMaxMatchesPerFile(n int) RotatorOption {
	return func(r *FileRotator) { r.maxMatches = n }
}

func WithMaxFileAge(d time.Duration) RotatorOption {
	return func(r *FileRotator) { r.maxAge = d }
}

func WithRotatorLogger(l *slog.Logger) RotatorOption {
	return func(r *FileRotator) { r.logger = l }
}

// NewFileRotator creates a new rotator with the given base directory
func NewFileRotator(baseDir string, opts ...RotatorOption) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		maxMatches: DefaultMaxMatchesPerFile,
		maxAge:     DefaultMaxFileAge,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "archive")

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Append writes one record, flushes it and rotates if the file is full or old.
func (r *FileRotator) Append(record RawRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return fmt.Errorf("archive is closed")
	}
	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	r.matchCount++
	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.matchCount >= r.maxMatches {
		return true
	}
	return r.now().Sub(r.fileOpenedAt) >= r.maxAge
}

// rotate closes current file and opens a new one
func (r *FileRotator) rotate() error {
	if err := r.closeCurrent(); err != nil {
		return err
	}

	r.fileSeq++
	filename := fmt.Sprintf("raw_matches_%s_%04d.jsonl", r.now().Format("2006-01-02_15-04-05"), r.fileSeq)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.matchCount = 0
	r.fileOpenedAt = r.now()

	r.logger.Debug("opened archive file", "file", filename)
	return nil
}

// closeCurrent moves a non-empty hot file to warm and removes an empty one.
func (r *FileRotator) closeCurrent() error {
	if r.currentFile == nil {
		return nil
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		return os.Remove(r.currentPath)
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.logger.Info("moved archive file to warm", "file", filepath.Base(warmPath), "matches", r.matchCount)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCurrent()
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount, filepath.Base(r.currentPath)
}

// Compact gzips every warm file into cold storage and returns how many
// files were moved.
func (r *FileRotator) Compact() (int, error) {
	r.mu.Lock()
	warmDir, coldDir := r.warmDir, r.coldDir
	r.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(warmDir, "*.jsonl"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	for i, p := range paths {
		if err := CompressToCold(p, coldDir); err != nil {
			return i, fmt.Errorf("compress %s: %w", filepath.Base(p), err)
		}
	}
	return len(paths), nil
}

// CompressToCold compresses a warm file and moves it to cold storage
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}

	return os.Remove(warmPath)
}

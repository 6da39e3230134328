package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/safewatch/internal/domain"
)

const (
	filePrefix   = "analysis_"
	fileExt      = ".json"
	filePerm     = 0644
	dirPerm      = 0755
	maxNameTries = 100
)

var (
	// ErrInvalidName is returned for names that are not a plain .json file name.
	ErrInvalidName = errors.New("invalid filename")
	// ErrNotFound is returned when the named document does not exist.
	ErrNotFound = errors.New("file not found")
)

// Metadata is the file-level information attached to a stored record.
type Metadata struct {
	Filename string    `json:"filename"`
	Filesize int64     `json:"filesize"`
	Modified time.Time `json:"modified"`
}

// StoredRecord is a record as read back from disk.
type StoredRecord struct {
	domain.AnalysisRecord
	Metadata Metadata `json:"_metadata"`
}

// Listing is the result of List. Missing is set when the store directory
// does not exist yet.
type Listing struct {
	Records []StoredRecord
	Missing bool
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	IsJSON   bool      `json:"isJson"`
}

// FileListing is the raw directory listing returned by Files.
type FileListing struct {
	Files      []FileInfo `json:"files"`
	TotalFiles int        `json:"totalFiles"`
	JSONFiles  int        `json:"jsonFiles"`
	Missing    bool       `json:"-"`
}

// Store keeps one indented JSON document per retained analysis record.
// Documents are created once and never rewritten.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With("component", "filestore"),
		now:    time.Now,
	}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes record to a new file and returns its path. The file name embeds
// the post id and the write time; an existing file is never overwritten.
func (s *Store) Save(ctx context.Context, record domain.AnalysisRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis record: %w", err)
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create analysis directory %s: %w", s.dir, err)
	}

	// Write to a hidden temp file first so tailers never see a partial
	// document, then link it into place. Link fails if the target exists.
	tmp, err := os.CreateTemp(s.dir, ".analysis-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write analysis record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		s.logger.Warn("failed to sync analysis file", "error", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		s.logger.Warn("failed to set file mode", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := FileName(record.Post.ID, s.now())
	for i := 0; i < maxNameTries; i++ {
		name := base
		if i > 0 {
			name = strings.TrimSuffix(base, fileExt) + fmt.Sprintf("_%d", i) + fileExt
		}
		path := filepath.Join(s.dir, name)
		err := os.Link(tmpPath, path)
		if err == nil {
			s.logger.Info("saved harmful content analysis", "path", path)
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create analysis file %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("failed to pick a unique name for %s", base)
}

// FileName builds analysis_<postId>_<timestamp>.json. The timestamp is the
// UTC ISO-8601 time with ':' and '.' replaced by '-'.
func FileName(postID string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return filePrefix + sanitizeID(postID) + "_" + ts + fileExt
}

func sanitizeID(id string) string {
	if id == "" {
		return "unknown"
	}
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", "\x00", "_")
	return r.Replace(id)
}

// ValidateName rejects anything that is not a plain *.json file name.
// It never touches the filesystem.
func ValidateName(name string) error {
	switch {
	case name == "", name == fileExt:
		return ErrInvalidName
	case !strings.HasSuffix(name, fileExt):
		return ErrInvalidName
	case strings.Contains(name, ".."):
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	}
	return nil
}

// List decodes every *.json document in the store. Documents that cannot be
// read or decoded are skipped and logged.
func (s *Store) List(ctx context.Context) (Listing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("analyzed data directory not found", "path", s.dir)
			return Listing{Records: []StoredRecord{}, Missing: true}, nil
		}
		return Listing{}, fmt.Errorf("failed to read analysis directory: %w", err)
	}

	records := make([]StoredRecord, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return Listing{}, ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		rec, err := s.read(name)
		if err != nil {
			s.logger.Warn("failed to read analysis file, skipping", "file", name, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return Listing{Records: records}, nil
}

// Get reads one document by file name.
func (s *Store) Get(ctx context.Context, name string) (StoredRecord, error) {
	if err := ValidateName(name); err != nil {
		return StoredRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return StoredRecord{}, err
	}
	return s.read(name)
}

func (s *Store) read(name string) (StoredRecord, error) {
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StoredRecord{}, ErrNotFound
		}
		return StoredRecord{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return StoredRecord{}, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var rec domain.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return StoredRecord{}, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	return StoredRecord{
		AnalysisRecord: rec,
		Metadata: Metadata{
			Filename: name,
			Filesize: info.Size(),
			Modified: info.ModTime().UTC(),
		},
	}, nil
}

// Files lists every regular file in the store directory.
func (s *Store) Files(ctx context.Context) (FileListing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileListing{Files: []FileInfo{}, Missing: true}, nil
		}
		return FileListing{}, fmt.Errorf("failed to read analysis directory: %w", err)
	}

	out := FileListing{Files: make([]FileInfo, 0, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		isJSON := strings.HasSuffix(entry.Name(), fileExt)
		out.Files = append(out.Files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
			IsJSON:   isJSON,
		})
		if isJSON {
			out.JSONFiles++
		}
	}
	out.TotalFiles = len(out.Files)
	return out, nil
}

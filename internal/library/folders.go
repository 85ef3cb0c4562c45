package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Folder is one watched library root.
type Folder struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// HashPath returns the identity hash of a cleaned path.
func HashPath(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.Clean(path)))
}

// NewFolder resolves path to an absolute folder and computes its hash.
func NewFolder(path string) (Folder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Folder{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)
	return Folder{Path: abs, Hash: HashPath(abs)}, nil
}

// Store persists the folder list as a JSON array, rewritten wholesale.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the folder list. A missing file is an empty list.
func (s *Store) Load() ([]Folder, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Folder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read folder config: %w", err)
	}

	var folders []Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, fmt.Errorf("parse folder config %s: %w", s.path, err)
	}
	for i := range folders {
		folders[i].Path = filepath.Clean(folders[i].Path)
		if folders[i].Hash == "" {
			folders[i].Hash = HashPath(folders[i].Path)
		}
	}
	return folders, nil
}

// Save replaces the folder config through a temp file and rename.
func (s *Store) Save(folders []Folder) error {
	if folders == nil {
		folders = []Folder{}
	}
	data, err := json.MarshalIndent(folders, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-"+strconv.Itoa(os.Getpid())+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write folder config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

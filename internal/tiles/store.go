package tiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Store addresses tile files under a dataset root using the layout
// {root}/{level}/{x}/{y}.{ext}. Files are immutable once visible: the only
// write path is an atomic temp-file-plus-rename, so a reader never observes
// a partial tile.
type Store struct {
	Root string
	Ext  string // file extension without the dot, e.g. "png" or "webp"
}

// NewStore creates a store rooted at dir. ext defaults to "png".
func NewStore(dir, ext string) *Store {
	if ext == "" {
		ext = "png"
	}
	return &Store{Root: dir, Ext: ext}
}

// Path returns the absolute file path for a tile.
func (s *Store) Path(c Coord) string {
	return filepath.Join(s.Root, strconv.Itoa(c.Level), strconv.Itoa(c.X), strconv.Itoa(c.Y)+"."+s.Ext)
}

// Exists reports whether the tile file is present on disk.
func (s *Store) Exists(c Coord) bool {
	info, err := os.Stat(s.Path(c))
	return err == nil && !info.IsDir()
}

// Read returns the tile bytes.
func (s *Store) Read(c Coord) ([]byte, error) {
	return os.ReadFile(s.Path(c))
}

// WriteAtomic persists tile bytes crash-safely. Concurrent writers racing on
// the same coordinate are expected; whoever renames first wins and the loser
// discards its temp file without error.
func (s *Store) WriteAtomic(c Coord, data []byte) error {
	return WriteFileAtomic(s.Path(c), data)
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename. A rename failure where the destination already exists
// is treated as a lost-but-harmless write race, not an error.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp tile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp tile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp tile: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		if _, statErr := os.Stat(path); statErr == nil {
			// A concurrent writer won the race; the visible file is complete.
			return nil
		}
		return fmt.Errorf("rename tile into place: %w", err)
	}
	return nil
}

// RemoveLevels deletes only the numeric level directories under the root,
// preserving config, path definitions and the manifest.
func (s *Store) RemoveLevels() error {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.Root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

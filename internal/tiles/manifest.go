package tiles

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ManifestName is the manifest file written at the dataset root.
const ManifestName = "tiles.json"

// RebuildManifest scans the level directories and returns the sorted list of
// "level/x/y" strings for every tile file present. The manifest is advisory:
// the filesystem stays the source of truth and the scan is repeated on each
// flush rather than patched incrementally.
func (s *Store) RebuildManifest() ([]string, error) {
	var coords []Coord

	levels, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	suffix := "." + s.Ext
	for _, lv := range levels {
		if !lv.IsDir() {
			continue
		}
		level, err := strconv.Atoi(lv.Name())
		if err != nil {
			continue
		}
		xDirs, err := os.ReadDir(filepath.Join(s.Root, lv.Name()))
		if err != nil {
			continue
		}
		for _, xd := range xDirs {
			if !xd.IsDir() {
				continue
			}
			x, err := strconv.Atoi(xd.Name())
			if err != nil {
				continue
			}
			files, err := os.ReadDir(filepath.Join(s.Root, lv.Name(), xd.Name()))
			if err != nil {
				continue
			}
			for _, f := range files {
				name := f.Name()
				if f.IsDir() || !strings.HasSuffix(name, suffix) {
					continue
				}
				y, err := strconv.Atoi(strings.TrimSuffix(name, suffix))
				if err != nil {
					continue
				}
				coords = append(coords, Coord{Level: level, X: x, Y: y})
			}
		}
	}

	sort.Slice(coords, func(i, j int) bool { return Less(coords[i], coords[j]) })
	out := make([]string, len(coords))
	for i, c := range coords {
		out[i] = c.String()
	}
	return out, nil
}

// WriteManifest rebuilds the manifest from disk and writes it wholesale.
func (s *Store) WriteManifest() (int, error) {
	entries, err := s.RebuildManifest()
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return 0, err
	}
	if err := WriteFileAtomic(filepath.Join(s.Root, ManifestName), data); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// LoadManifest reads the persisted manifest. A missing manifest yields an
// empty set, matching a dataset that has not been flushed yet.
func (s *Store) LoadManifest() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

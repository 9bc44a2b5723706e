package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/observability"
	"github.com/matzehuels/gallade/pkg/version"
)

// staleTemp is how old an abandoned download must be before Prune removes
// it. Younger files may belong to another running process.
const staleTemp = time.Hour

// Lookup returns the cached entry of c without re-hashing it. The entry's
// state is Verified when the object exists and Corrupt otherwise.
func (s *Store) Lookup(c coord.Coordinate) (*Entry, bool, error) {
	ref, ok, err := s.readRef(c)
	if err != nil || !ok {
		return nil, false, err
	}
	e := &Entry{Coordinate: c, Checksum: ref, State: Corrupt}
	if ref.IsZero() {
		return e, true, nil
	}
	e.Path = s.objectPath(ref)
	if info, err := os.Stat(e.Path); err == nil {
		e.Size = info.Size()
		e.State = Verified
	}
	return e, true, nil
}

// State reports the cache state of c, re-hashing the object.
func (s *Store) State(c coord.Coordinate) State {
	s.mu.Lock()
	busy := s.inflight[c.String()]
	s.mu.Unlock()
	if busy {
		return Downloading
	}
	e, err := s.check(c, checksum.Sum{})
	if err != nil {
		return Corrupt
	}
	return e.State
}

// Path returns the file holding the bytes of c after re-hashing it.
func (s *Store) Path(c coord.Coordinate) (string, error) {
	return s.VerifiedPath(c, checksum.Sum{})
}

// VerifiedPath re-hashes the cached object of c and returns its file.
// expected, when set, must match as well. An absent entry fails with
// NOT_FOUND and bytes that no longer match fail with CHECKSUM_MISMATCH.
func (s *Store) VerifiedPath(c coord.Coordinate, expected checksum.Sum) (string, error) {
	e, err := s.check(c, expected)
	if err != nil {
		return "", err
	}
	switch e.State {
	case Absent:
		return "", errors.New(errors.ErrCodeNotFound, "not in the cache").WithCoordinate(c.String())
	case Corrupt:
		return "", errors.New(errors.ErrCodeChecksumMismatch, "cached artifact is corrupt; run `gallade install` to download it again").
			WithCoordinate(c.String())
	}
	return e.Path, nil
}

// Verify re-hashes every cached artifact and returns all entries with
// their state.
func (s *Store) Verify(ctx context.Context) ([]Entry, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		checked, err := s.check(e.Coordinate, checksum.Sum{})
		if err != nil {
			return nil, err
		}
		if checked.State == Corrupt {
			observability.Store().OnCorrupt(ctx, e.Coordinate.String())
		}
		entries[i] = *checked
	}
	return entries, nil
}

// Entries lists every coordinate with a ref, sorted.
func (s *Store) Entries() ([]Entry, error) {
	refs := filepath.Join(s.root, refsDir)
	var out []Entry
	err := filepath.WalkDir(refs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, refExt) {
			return nil
		}
		rel, err := filepath.Rel(refs, path)
		if err != nil {
			return err
		}
		c, ok := parseRef(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		e, found, err := s.Lookup(c)
		if err != nil || !found {
			return err
		}
		out = append(out, *e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Coordinate.Less(b.Coordinate):
			return -1
		case b.Coordinate.Less(a.Coordinate):
			return 1
		}
		return 0
	})
	return out, nil
}

// parseRef recovers a coordinate from a ref path such as
// "org/example/lib/2.1/lib-2.1-sources.jar.sha256".
func parseRef(rel string) (coord.Coordinate, bool) {
	parts := strings.Split(strings.TrimSuffix(rel, refExt), "/")
	if len(parts) < 4 {
		return coord.Coordinate{}, false
	}
	file := parts[len(parts)-1]
	c := coord.Coordinate{
		Group:    strings.Join(parts[:len(parts)-3], "."),
		Artifact: parts[len(parts)-3],
		Version:  parts[len(parts)-2],
	}
	dot := strings.LastIndexByte(file, '.')
	if dot < 0 {
		return coord.Coordinate{}, false
	}
	if ext := file[dot+1:]; ext != coord.DefaultType {
		c.Type = ext
	}
	rest, ok := strings.CutPrefix(file[:dot], c.Artifact+"-"+c.Version)
	if !ok {
		return coord.Coordinate{}, false
	}
	if rest != "" {
		if c.Classifier, ok = strings.CutPrefix(rest, "-"); !ok {
			return coord.Coordinate{}, false
		}
	}
	return c, c.Validate() == nil
}

// Versions lists the cached versions of k, oldest first.
func (s *Store) Versions(k coord.Key) ([]string, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Coordinate.Key() == k && !slices.Contains(out, e.Coordinate.Version) {
			out = append(out, e.Coordinate.Version)
		}
	}
	version.Sort(out)
	return out, nil
}

// Remove deletes the ref of c, prunes directories left empty and drops
// objects no other ref points at. It reports whether c was cached.
func (s *Store) Remove(c coord.Coordinate) (bool, error) {
	removed, err := s.removeRef(c)
	if err != nil || !removed {
		return removed, err
	}
	_, err = s.collect()
	return true, err
}

// Prune removes every cached coordinate not in keep, then unreferenced
// objects and abandoned downloads. It returns the removed coordinates.
func (s *Store) Prune(keep []coord.Coordinate) ([]coord.Coordinate, error) {
	wanted := make(map[string]bool, len(keep))
	for _, c := range keep {
		wanted[c.String()+"|"+c.Ext()] = true
	}

	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	var removed []coord.Coordinate
	for _, e := range entries {
		if wanted[e.Coordinate.String()+"|"+e.Coordinate.Ext()] {
			continue
		}
		if _, err := s.removeRef(e.Coordinate); err != nil {
			return removed, err
		}
		removed = append(removed, e.Coordinate)
	}
	if _, err := s.collect(); err != nil {
		return removed, err
	}
	return removed, s.sweepTemp()
}

// Clear removes everything in the store.
func (s *Store) Clear() error {
	for _, dir := range []string{objectsDir, refsDir, tmpDir} {
		if err := os.RemoveAll(filepath.Join(s.root, dir)); err != nil {
			return err
		}
	}
	for _, dir := range []string{filepath.Join(objectsDir, string(checksum.SHA256)), refsDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) removeRef(c coord.Coordinate) (bool, error) {
	path := s.refPath(c)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	removeEmptyDirs(filepath.Dir(path), filepath.Join(s.root, refsDir))
	return true, nil
}

// collect deletes objects that no ref points at.
func (s *Store) collect() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(entries))
	for _, e := range entries {
		live[e.Checksum.Hex] = true
	}

	objects := filepath.Join(s.root, objectsDir, string(checksum.SHA256))
	var dead []string
	err = filepath.WalkDir(objects, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !live[d.Name()] {
			dead = append(dead, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, path := range dead {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return 0, err
		}
		removeEmptyDirs(filepath.Dir(path), objects)
	}
	return len(dead), nil
}

func (s *Store) sweepTemp() error {
	dir := filepath.Join(s.root, tmpDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-staleTemp)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		os.Remove(filepath.Join(dir, e.Name()))
	}
	return nil
}

// removeEmptyDirs removes dir and its parents while they are empty,
// stopping at stop.
func removeEmptyDirs(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

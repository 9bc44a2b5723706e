// Package store is the local, content-addressed artifact cache.
//
// Layout under the cache root:
//
//	objects/sha256/<2 hex>/<64 hex>         artifact bytes, named by their sha256
//	refs/<group path>/<artifact>/<version>/<file>.sha256
//	                                         "sha256:<hex>" of the object a coordinate maps to
//	tmp/                                     downloads in progress
//
// Objects are written to tmp/ while being hashed, verified against the
// expected checksum and only then renamed into objects/. The ref is
// written last, so a ref always points at a complete object. Two
// coordinates with identical bytes share one object.
//
// The store knows nothing about resolution: it is handed coordinates and
// checksums and makes sure the bytes are present and intact.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/httputil"
)

// DefaultDownloads bounds concurrent downloads in [Store.EnsureAll].
const DefaultDownloads = 4

const (
	objectsDir = "objects"
	refsDir    = "refs"
	tmpDir     = "tmp"
	refExt     = ".sha256"
)

// State is the cache state of a coordinate.
type State int

const (
	Absent State = iota
	Downloading
	Verified
	Corrupt
)

func (s State) String() string {
	switch s {
	case Downloading:
		return "downloading"
	case Verified:
		return "verified"
	case Corrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// Entry describes a cached artifact.
type Entry struct {
	Coordinate coord.Coordinate
	Path       string       // object file holding the bytes
	Checksum   checksum.Sum // sha256 of the bytes
	Size       int64
	State      State
}

// Fetcher downloads artifacts and their published checksums.
// *repository.Set implements it.
type Fetcher interface {
	Open(ctx context.Context, at coord.Coordinate, source string) (io.ReadCloser, string, error)
	Checksum(ctx context.Context, at coord.Coordinate, source string) (checksum.Sum, error)
}

// Options configures a [Store].
type Options struct {
	Downloads int             // concurrent downloads (default: 4)
	Retry     httputil.Policy // retries of interrupted transfers (default: httputil.DefaultPolicy)
	Logger    *log.Logger     // optional
}

// Store is a content-addressed artifact cache rooted at a directory. It is
// safe for concurrent use.
type Store struct {
	root      string
	fetcher   Fetcher
	downloads int
	retry     httputil.Policy
	logger    *log.Logger

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]bool
}

// New opens the store at root, creating its directories. fetcher may be
// nil for a store that is only inspected or maintained.
func New(root string, fetcher Fetcher, opts Options) (*Store, error) {
	for _, dir := range []string{filepath.Join(objectsDir, string(checksum.SHA256)), refsDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	if opts.Downloads <= 0 {
		opts.Downloads = DefaultDownloads
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = httputil.DefaultPolicy
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{
		root:      root,
		fetcher:   fetcher,
		downloads: opts.Downloads,
		retry:     opts.Retry,
		logger:    opts.Logger,
		inflight:  make(map[string]bool),
	}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) objectPath(sum checksum.Sum) string {
	return filepath.Join(s.root, objectsDir, string(checksum.SHA256), sum.Hex[:2], sum.Hex)
}

func (s *Store) refPath(c coord.Coordinate) string {
	return filepath.Join(s.root, refsDir, filepath.FromSlash(c.Path())+refExt)
}

// readRef returns the object checksum recorded for c. ok is false when no
// ref exists.
func (s *Store) readRef(c coord.Coordinate) (sum checksum.Sum, ok bool, err error) {
	data, err := os.ReadFile(s.refPath(c))
	if os.IsNotExist(err) {
		return checksum.Sum{}, false, nil
	}
	if err != nil {
		return checksum.Sum{}, false, err
	}
	sum, err = checksum.Parse(strings.TrimSpace(string(data)))
	if err != nil || sum.Algo != checksum.SHA256 {
		// An unreadable ref is treated like a corrupt object.
		return checksum.Sum{}, true, nil
	}
	return sum, true, nil
}

func (s *Store) writeRef(c coord.Coordinate, sum checksum.Sum) error {
	path := s.refPath(c)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, []byte(sum.String()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// Package checksum computes and parses artifact checksums.
//
// A [Sum] is written "algo:hex", for example
// "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08".
// Repositories publish sidecar files (".sha256", ".sha1") whose first
// whitespace-separated field is the hex digest; [ParsePublished] reads them.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
)

// Preferred lists algorithms in the order published sidecars are tried.
var Preferred = []Algorithm{SHA256, SHA1}

// Ext returns the sidecar file extension, including the dot.
func (a Algorithm) Ext() string { return "." + string(a) }

// New returns a fresh hasher for a.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", a)
}

func (a Algorithm) hexLen() int {
	switch a {
	case SHA256:
		return 64
	case SHA1:
		return 40
	}
	return 0
}

// Sum is a digest tagged with its algorithm.
type Sum struct {
	Algo Algorithm
	Hex  string
}

// IsZero reports whether s is empty.
func (s Sum) IsZero() bool { return s.Hex == "" }

func (s Sum) String() string {
	if s.IsZero() {
		return ""
	}
	return string(s.Algo) + ":" + s.Hex
}

// Equal compares two sums. Sums of different algorithms are never equal.
func (s Sum) Equal(o Sum) bool {
	return s.Algo == o.Algo && strings.EqualFold(s.Hex, o.Hex)
}

// Parse parses "algo:hex".
func Parse(s string) (Sum, error) {
	algo, hx, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Sum{}, fmt.Errorf("checksum %q: expected algo:hex", s)
	}
	return validate(Algorithm(strings.ToLower(algo)), hx)
}

func validate(a Algorithm, hx string) (Sum, error) {
	n := a.hexLen()
	if n == 0 {
		return Sum{}, fmt.Errorf("unsupported checksum algorithm %q", a)
	}
	hx = strings.ToLower(hx)
	if len(hx) != n {
		return Sum{}, fmt.Errorf("%s checksum must be %d hex characters, got %d", a, n, len(hx))
	}
	if _, err := hex.DecodeString(hx); err != nil {
		return Sum{}, fmt.Errorf("%s checksum is not hex: %w", a, err)
	}
	return Sum{Algo: a, Hex: hx}, nil
}

// ParsePublished parses the body of a published checksum sidecar. Only the
// first field is used; some repositories append the file name.
func ParsePublished(a Algorithm, body []byte) (Sum, error) {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return Sum{}, fmt.Errorf("empty %s checksum file", a)
	}
	return validate(a, fields[0])
}

// Of computes the a-digest of data.
func Of(a Algorithm, data []byte) (Sum, error) {
	h, err := a.New()
	if err != nil {
		return Sum{}, err
	}
	h.Write(data)
	return Sum{Algo: a, Hex: hex.EncodeToString(h.Sum(nil))}, nil
}

// Reader computes the a-digest of everything read from r.
func Reader(a Algorithm, r io.Reader) (Sum, int64, error) {
	h, err := a.New()
	if err != nil {
		return Sum{}, 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return Sum{}, n, err
	}
	return Sum{Algo: a, Hex: hex.EncodeToString(h.Sum(nil))}, n, nil
}

// File computes the a-digest of the file at path.
func File(a Algorithm, path string) (Sum, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, 0, err
	}
	defer f.Close()
	return Reader(a, f)
}

// Multi hashes one stream with several algorithms at once. It is used while
// downloading so a single pass yields both the content address (sha256) and
// whatever digest the repository published.
type Multi struct {
	hashes map[Algorithm]hash.Hash
	w      io.Writer
}

// NewMulti returns a writer hashing with every algorithm in algos.
func NewMulti(algos ...Algorithm) (*Multi, error) {
	m := &Multi{hashes: make(map[Algorithm]hash.Hash, len(algos))}
	ws := make([]io.Writer, 0, len(algos))
	for _, a := range algos {
		if _, ok := m.hashes[a]; ok {
			continue
		}
		h, err := a.New()
		if err != nil {
			return nil, err
		}
		m.hashes[a] = h
		ws = append(ws, h)
	}
	m.w = io.MultiWriter(ws...)
	return m, nil
}

func (m *Multi) Write(p []byte) (int, error) { return m.w.Write(p) }

// Sum returns the digest for a, or a zero Sum if a was not requested.
func (m *Multi) Sum(a Algorithm) Sum {
	h, ok := m.hashes[a]
	if !ok {
		return Sum{}
	}
	return Sum{Algo: a, Hex: hex.EncodeToString(h.Sum(nil))}
}

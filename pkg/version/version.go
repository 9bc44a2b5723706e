// Package version implements Maven-style version ordering and version
// requirements.
//
// Versions are split into items at '.', '-' and at every transition between
// digits and letters, so "1.0-rc2" becomes [1 0 rc 2]. Numeric items compare
// numerically and always sort above qualifiers. Known qualifiers sort as
//
//	alpha < beta < milestone < rc < snapshot < "" (release) < sp
//
// and unknown qualifiers sort after sp, lexically among themselves. Missing
// trailing items compare as zero or as a release marker, so "1", "1.0" and
// "1.0.0" are equal.
package version

import (
	"sort"
	"strings"
)

type item struct {
	numeric bool
	digits  string // numeric value without leading zeros
	word    string // lowercased qualifier
}

const (
	rankAlpha = iota
	rankBeta
	rankMilestone
	rankRC
	rankSnapshot
	rankRelease
	rankSP
	rankUnknown
)

var qualifierRanks = map[string]int{
	"alpha":     rankAlpha,
	"a":         rankAlpha,
	"beta":      rankBeta,
	"b":         rankBeta,
	"milestone": rankMilestone,
	"m":         rankMilestone,
	"rc":        rankRC,
	"cr":        rankRC,
	"snapshot":  rankSnapshot,
	"":          rankRelease,
	"ga":        rankRelease,
	"final":     rankRelease,
	"release":   rankRelease,
	"sp":        rankSP,
}

func rank(word string) int {
	if r, ok := qualifierRanks[word]; ok {
		return r
	}
	return rankUnknown
}

func tokenize(v string) []item {
	v = strings.ToLower(strings.TrimSpace(v))
	var items []item
	flush := func(tok string) {
		if tok == "" {
			return
		}
		if tok[0] >= '0' && tok[0] <= '9' {
			d := strings.TrimLeft(tok, "0")
			items = append(items, item{numeric: true, digits: d})
			return
		}
		items = append(items, item{word: tok})
	}

	start := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '.' || c == '-' || c == '_' || c == '+' {
			flush(v[start:i])
			start = i + 1
			continue
		}
		if i > start && isDigit(c) != isDigit(v[i-1]) {
			flush(v[start:i])
			start = i
		}
	}
	flush(v[start:])
	return items
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// compareItem compares a against b; a nil b stands for a missing item.
func compareItem(a item, b *item) int {
	if b == nil {
		if a.numeric {
			if a.digits == "" {
				return 0
			}
			return 1
		}
		return sign(rank(a.word) - rankRelease)
	}
	switch {
	case a.numeric && b.numeric:
		return compareDigits(a.digits, b.digits)
	case a.numeric:
		return 1
	case b.numeric:
		return -1
	}
	ra, rb := rank(a.word), rank(b.word)
	if ra != rb {
		return sign(ra - rb)
	}
	if ra == rankUnknown {
		return strings.Compare(a.word, b.word)
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// Compare returns -1, 0 or 1 as a sorts before, equal to, or after b.
func Compare(a, b string) int {
	ia, ib := tokenize(a), tokenize(b)
	n := max(len(ia), len(ib))
	for i := 0; i < n; i++ {
		var c int
		switch {
		case i >= len(ia):
			c = -compareItem(ib[i], nil)
		case i >= len(ib):
			c = compareItem(ia[i], nil)
		default:
			c = compareItem(ia[i], &ib[i])
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// IsSnapshot reports whether v is a development snapshot.
func IsSnapshot(v string) bool {
	return strings.HasSuffix(strings.ToUpper(v), "-SNAPSHOT")
}

// Sort sorts versions ascending. Versions that compare equal keep a stable
// order by their raw string so output is deterministic.
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		if c := Compare(versions[i], versions[j]); c != 0 {
			return c < 0
		}
		return versions[i] < versions[j]
	})
}

// Max returns the highest version in versions, or "" if empty.
func Max(versions []string) string {
	var best string
	for i, v := range versions {
		if i == 0 {
			best = v
			continue
		}
		if c := Compare(v, best); c > 0 || (c == 0 && v > best) {
			best = v
		}
	}
	return best
}

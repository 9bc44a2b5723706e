package version

import (
	"fmt"
	"strings"

	"github.com/matzehuels/gallade/pkg/errors"
)

// Kind distinguishes the forms a version requirement can take.
type Kind int

const (
	// KindExact requires one specific version.
	KindExact Kind = iota
	// KindRange accepts any version inside a union of intervals.
	KindRange
	// KindQualifier selects by a symbolic name such as "latest".
	KindQualifier
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindRange:
		return "range"
	case KindQualifier:
		return "qualifier"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Qualifiers accepted in place of a version.
const (
	QualifierLatest  = "latest"
	QualifierRelease = "release"
)

// Bound is one end of an interval.
type Bound struct {
	Version   string
	Inclusive bool
}

// Interval is a version interval. A nil bound is unbounded.
type Interval struct {
	Lower *Bound
	Upper *Bound
}

// Contains reports whether v lies within the interval.
func (iv Interval) Contains(v string) bool {
	if iv.Lower != nil {
		c := Compare(v, iv.Lower.Version)
		if c < 0 || (c == 0 && !iv.Lower.Inclusive) {
			return false
		}
	}
	if iv.Upper != nil {
		c := Compare(v, iv.Upper.Version)
		if c > 0 || (c == 0 && !iv.Upper.Inclusive) {
			return false
		}
	}
	return true
}

func (iv Interval) String() string {
	var b strings.Builder
	if iv.Lower != nil && iv.Lower.Inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if iv.Lower != nil && iv.Upper != nil && iv.Lower.Inclusive && iv.Upper.Inclusive &&
		iv.Lower.Version == iv.Upper.Version {
		b.WriteString(iv.Lower.Version)
		b.WriteByte(']')
		return b.String()
	}
	if iv.Lower != nil {
		b.WriteString(iv.Lower.Version)
	}
	b.WriteByte(',')
	if iv.Upper != nil {
		b.WriteString(iv.Upper.Version)
	}
	if iv.Upper != nil && iv.Upper.Inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Spec is a parsed version requirement. The zero value is not valid; use
// [ParseSpec] or [Exact].
type Spec struct {
	kind      Kind
	exact     string
	intervals []Interval
	qualifier string
}

// Exact returns a spec requiring exactly v.
func Exact(v string) Spec { return Spec{kind: KindExact, exact: v} }

// Kind returns the form of the requirement.
func (s Spec) Kind() Kind { return s.kind }

// Version returns the required version of an exact spec, or "".
func (s Spec) Version() string { return s.exact }

// Intervals returns the intervals of a range spec.
func (s Spec) Intervals() []Interval { return s.intervals }

// Qualifier returns the symbolic name of a qualifier spec.
func (s Spec) Qualifier() string { return s.qualifier }

func (s Spec) String() string {
	switch s.kind {
	case KindExact:
		return s.exact
	case KindQualifier:
		return s.qualifier
	}
	parts := make([]string, len(s.intervals))
	for i, iv := range s.intervals {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ",")
}

// Matches reports whether v satisfies the requirement. Qualifier specs
// match every version they could select from.
func (s Spec) Matches(v string) bool {
	switch s.kind {
	case KindExact:
		return Compare(v, s.exact) == 0
	case KindRange:
		for _, iv := range s.intervals {
			if iv.Contains(v) {
				return true
			}
		}
		return false
	case KindQualifier:
		return s.qualifier == QualifierLatest || !IsSnapshot(v)
	}
	return false
}

// Select picks a version from available.
//
// Exact specs return their version when it is available. Range specs return
// the highest matching release, or the highest matching snapshot when no
// release matches. "latest" returns the highest version overall; "release"
// the highest that is not a snapshot. The second result is false when no
// version qualifies.
func (s Spec) Select(available []string) (string, bool) {
	if s.kind == KindExact {
		for _, v := range available {
			if v == s.exact {
				return v, true
			}
		}
		for _, v := range available {
			if Compare(v, s.exact) == 0 {
				return v, true
			}
		}
		return "", false
	}

	if s.kind == KindQualifier && s.qualifier == QualifierLatest {
		if len(available) == 0 {
			return "", false
		}
		return Max(available), true
	}

	var releases, snapshots []string
	for _, v := range available {
		if !s.Matches(v) {
			continue
		}
		if IsSnapshot(v) {
			snapshots = append(snapshots, v)
		} else {
			releases = append(releases, v)
		}
	}
	if len(releases) > 0 {
		return Max(releases), true
	}
	if len(snapshots) > 0 && s.kind == KindRange {
		return Max(snapshots), true
	}
	return "", false
}

// ParseSpec parses a version requirement:
//
//	1.2.3               exact
//	[1.0,2.0)           range, inclusive lower, exclusive upper
//	(,1.0]  [1.5,)      half-open ranges
//	[1.0]               exactly 1.0, as a range
//	[1.0,2.0),[3.0,)    union of ranges
//	latest  release  *  qualifiers ("*" means release)
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, errors.New(errors.ErrCodeInvalidInput, "empty version requirement")
	}

	switch strings.ToLower(s) {
	case QualifierLatest:
		return Spec{kind: KindQualifier, qualifier: QualifierLatest}, nil
	case QualifierRelease, "*":
		return Spec{kind: KindQualifier, qualifier: QualifierRelease}, nil
	}

	if s[0] != '[' && s[0] != '(' {
		if strings.ContainsAny(s, "[](),") {
			return Spec{}, errors.New(errors.ErrCodeInvalidInput, "malformed version requirement %q", raw)
		}
		if err := errors.ValidateVersion(s); err != nil {
			return Spec{}, err
		}
		return Exact(s), nil
	}

	var intervals []Interval
	rest := s
	for rest != "" {
		end := strings.IndexAny(rest, "])")
		if end < 0 || (rest[0] != '[' && rest[0] != '(') {
			return Spec{}, errors.New(errors.ErrCodeInvalidInput, "malformed version range %q", raw)
		}
		iv, err := parseInterval(rest[:end+1])
		if err != nil {
			return Spec{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed version range %q", raw)
		}
		intervals = append(intervals, iv)

		rest = strings.TrimSpace(rest[end+1:])
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return Spec{}, errors.New(errors.ErrCodeInvalidInput, "malformed version range %q", raw)
		}
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return Spec{}, errors.New(errors.ErrCodeInvalidInput, "trailing comma in version range %q", raw)
		}
	}
	return Spec{kind: KindRange, intervals: intervals}, nil
}

func parseInterval(s string) (Interval, error) {
	lowerInc := s[0] == '['
	upperInc := s[len(s)-1] == ']'
	body := strings.TrimSpace(s[1 : len(s)-1])

	lo, hi, hasComma := strings.Cut(body, ",")
	if !hasComma {
		if !lowerInc || !upperInc || body == "" {
			return Interval{}, fmt.Errorf("single version %q must use [v]", s)
		}
		if err := errors.ValidateVersion(body); err != nil {
			return Interval{}, err
		}
		return Interval{
			Lower: &Bound{Version: body, Inclusive: true},
			Upper: &Bound{Version: body, Inclusive: true},
		}, nil
	}
	if strings.Contains(hi, ",") {
		return Interval{}, fmt.Errorf("too many bounds in %q", s)
	}

	var iv Interval
	if lo = strings.TrimSpace(lo); lo != "" {
		if err := errors.ValidateVersion(lo); err != nil {
			return Interval{}, err
		}
		iv.Lower = &Bound{Version: lo, Inclusive: lowerInc}
	} else if lowerInc {
		return Interval{}, fmt.Errorf("unbounded lower end of %q must be exclusive", s)
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if err := errors.ValidateVersion(hi); err != nil {
			return Interval{}, err
		}
		iv.Upper = &Bound{Version: hi, Inclusive: upperInc}
	} else if upperInc {
		return Interval{}, fmt.Errorf("unbounded upper end of %q must be exclusive", s)
	}
	if iv.Lower != nil && iv.Upper != nil {
		c := Compare(iv.Lower.Version, iv.Upper.Version)
		if c > 0 || (c == 0 && !(iv.Lower.Inclusive && iv.Upper.Inclusive)) {
			return Interval{}, fmt.Errorf("empty interval %q", s)
		}
	}
	return iv, nil
}

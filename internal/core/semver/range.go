package semver

import (
	"strings"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
	modsemver "golang.org/x/mod/semver"
)

type operator int

const (
	opEQ operator = iota
	opGT
	opGTE
	opLT
	opLTE
)

func (o operator) String() string {
	switch o {
	case opGT:
		return ">"
	case opGTE:
		return ">="
	case opLT:
		return "<"
	case opLTE:
		return "<="
	default:
		return "="
	}
}

type comparator struct {
	op      operator
	version Version
}

func (c comparator) matches(v Version) bool {
	n := Compare(v, c.version)
	switch c.op {
	case opGT:
		return n > 0
	case opGTE:
		return n >= 0
	case opLT:
		return n < 0
	case opLTE:
		return n <= 0
	default:
		return n == 0
	}
}

func (c comparator) String() string {
	return c.op.String() + c.version.String()
}

// Range is a parsed range expression: a union of comparator sets. A version
// satisfies the range when it satisfies every comparator of at least one set.
type Range struct {
	raw  string
	sets [][]comparator
}

// ParseRange parses an npm style range expression. Supported forms are
// exact versions, the comparison operators > >= < <= =, caret and tilde
// ranges, X-ranges and partial versions (1.x, 1.2.*, *, ""), hyphen ranges
// (1.2.3 - 2.3.4), and unions joined by "||". Distribution tags are not
// ranges and fail like any other malformed input.
func ParseRange(raw string) (Range, error) {
	r := Range{raw: raw}
	for _, part := range strings.Split(raw, "||") {
		set, err := parseSet(strings.TrimSpace(part))
		if err != nil {
			return Range{}, zerr.With(err, "range", raw)
		}
		r.sets = append(r.sets, set)
	}
	return r, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(raw string) Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the expression the range was parsed from.
func (r Range) String() string {
	return r.raw
}

// Normalized renders the desugared comparator sets, for diagnostics.
func (r Range) Normalized() string {
	sets := make([]string, 0, len(r.sets))
	for _, set := range r.sets {
		parts := make([]string, 0, len(set))
		for _, c := range set {
			parts = append(parts, c.String())
		}
		sets = append(sets, strings.Join(parts, " "))
	}
	return strings.Join(sets, " || ")
}

// Satisfies reports whether v lies within r. A prerelease version only
// satisfies a comparator set that names a prerelease of the same
// major.minor.patch tuple.
func (r Range) Satisfies(v Version) bool {
	for _, set := range r.sets {
		if setSatisfies(set, v) {
			return true
		}
	}
	return false
}

// NamesPrerelease reports whether any comparator of r carries a prerelease.
func (r Range) NamesPrerelease() bool {
	for _, set := range r.sets {
		for _, c := range set {
			if c.version.IsPrerelease() {
				return true
			}
		}
	}
	return false
}

func setSatisfies(set []comparator, v Version) bool {
	for _, c := range set {
		if !c.matches(v) {
			return false
		}
	}
	if !v.IsPrerelease() {
		return true
	}
	for _, c := range set {
		if c.version.IsPrerelease() && sameTuple(c.version, v) {
			return true
		}
	}
	return false
}

// Satisfies parses version and rng and reports whether the version lies
// within the range.
func Satisfies(version, rng string) (bool, error) {
	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	r, err := ParseRange(rng)
	if err != nil {
		return false, err
	}
	return r.Satisfies(v), nil
}

// MaxSatisfying returns the greatest version in versions that satisfies r.
func MaxSatisfying(versions []Version, r Range) (Version, bool) {
	var (
		best  Version
		found bool
	)
	for _, v := range versions {
		if !r.Satisfies(v) {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}

func parseSet(s string) ([]comparator, error) {
	if s == "" {
		return []comparator{anyComparator()}, nil
	}

	tokens := tokenize(s)
	if len(tokens) == 3 && tokens[1] == "-" {
		return parseHyphen(tokens[0], tokens[2])
	}

	var set []comparator
	for _, tok := range tokens {
		if tok == "-" {
			return nil, zerr.Wrap(domain.ErrInvalidRangeSyntax, "misplaced hyphen")
		}
		cs, err := parseComparator(tok)
		if err != nil {
			return nil, err
		}
		set = append(set, cs...)
	}
	return set, nil
}

// tokenize splits on whitespace and glues a bare operator to the version
// that follows it, so ">= 1.2.3" and ">=1.2.3" read the same.
func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isBareOperator(f) && i+1 < len(fields) {
			f += fields[i+1]
			i++
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isBareOperator(s string) bool {
	switch s {
	case ">", ">=", "<", "<=", "=", "~", "~>", "^":
		return true
	default:
		return false
	}
}

func parseComparator(tok string) ([]comparator, error) {
	var prefix string
	for _, p := range []string{">=", "<=", "~>", ">", "<", "=", "~", "^"} {
		if strings.HasPrefix(tok, p) {
			prefix = p
			break
		}
	}

	p, err := parsePartial(tok[len(prefix):])
	if err != nil {
		return nil, err
	}

	switch prefix {
	case "", "=":
		return xRange(p), nil
	case "~", "~>":
		return tildeRange(p), nil
	case "^":
		return caretRange(p), nil
	case ">":
		return []comparator{greaterThan(p)}, nil
	case ">=":
		return []comparator{{op: opGTE, version: p.floor()}}, nil
	case "<":
		return []comparator{lessThan(p)}, nil
	default:
		return []comparator{lessOrEqual(p)}, nil
	}
}

func parseHyphen(from, to string) ([]comparator, error) {
	lo, err := parsePartial(from)
	if err != nil {
		return nil, err
	}
	hi, err := parsePartial(to)
	if err != nil {
		return nil, err
	}

	set := []comparator{{op: opGTE, version: lo.floor()}}
	switch {
	case hi.anyMajor:
	case !hi.hasMinor:
		set = append(set, comparator{op: opLT, version: Version{Major: hi.major + 1}})
	case !hi.hasPatch:
		set = append(set, comparator{op: opLT, version: Version{Major: hi.major, Minor: hi.minor + 1}})
	default:
		set = append(set, comparator{op: opLTE, version: hi.full()})
	}
	return set, nil
}

func anyComparator() comparator {
	return comparator{op: opGTE, version: Version{}}
}

// never matches no version at all; 0.0.0-0 is the lowest possible version.
func never() comparator {
	return comparator{op: opLT, version: Version{Prerelease: []string{"0"}}}
}

func xRange(p partial) []comparator {
	switch {
	case p.anyMajor:
		return []comparator{anyComparator()}
	case !p.hasMinor:
		return []comparator{
			{op: opGTE, version: Version{Major: p.major}},
			{op: opLT, version: Version{Major: p.major + 1}},
		}
	case !p.hasPatch:
		return []comparator{
			{op: opGTE, version: Version{Major: p.major, Minor: p.minor}},
			{op: opLT, version: Version{Major: p.major, Minor: p.minor + 1}},
		}
	default:
		return []comparator{{op: opEQ, version: p.full()}}
	}
}

func tildeRange(p partial) []comparator {
	switch {
	case p.anyMajor:
		return []comparator{anyComparator()}
	case !p.hasMinor:
		return []comparator{
			{op: opGTE, version: Version{Major: p.major}},
			{op: opLT, version: Version{Major: p.major + 1}},
		}
	default:
		return []comparator{
			{op: opGTE, version: p.floor()},
			{op: opLT, version: Version{Major: p.major, Minor: p.minor + 1}},
		}
	}
}

func caretRange(p partial) []comparator {
	if p.anyMajor {
		return []comparator{anyComparator()}
	}

	lower := comparator{op: opGTE, version: p.floor()}
	var upper Version
	switch {
	case !p.hasMinor || p.major > 0:
		upper = Version{Major: p.major + 1}
	case !p.hasPatch || p.minor > 0:
		upper = Version{Major: 0, Minor: p.minor + 1}
	default:
		upper = Version{Major: 0, Minor: 0, Patch: p.patch + 1}
	}
	return []comparator{lower, {op: opLT, version: upper}}
}

func greaterThan(p partial) comparator {
	switch {
	case p.anyMajor:
		return never()
	case !p.hasMinor:
		return comparator{op: opGTE, version: Version{Major: p.major + 1}}
	case !p.hasPatch:
		return comparator{op: opGTE, version: Version{Major: p.major, Minor: p.minor + 1}}
	default:
		return comparator{op: opGT, version: p.full()}
	}
}

func lessThan(p partial) comparator {
	if p.anyMajor {
		return never()
	}
	if !p.hasPatch {
		return comparator{op: opLT, version: p.floor()}
	}
	return comparator{op: opLT, version: p.full()}
}

func lessOrEqual(p partial) comparator {
	switch {
	case p.anyMajor:
		return anyComparator()
	case !p.hasMinor:
		return comparator{op: opLT, version: Version{Major: p.major + 1}}
	case !p.hasPatch:
		return comparator{op: opLT, version: Version{Major: p.major, Minor: p.minor + 1}}
	default:
		return comparator{op: opLTE, version: p.full()}
	}
}

// partial is a possibly incomplete version such as "1", "1.2", "1.x" or "*".
type partial struct {
	major, minor, patch uint64
	anyMajor            bool
	hasMinor, hasPatch  bool
	prerelease          []string
}

func (p partial) floor() Version {
	if p.anyMajor {
		return Version{}
	}
	v := Version{Major: p.major, Minor: p.minor, Patch: p.patch}
	if p.hasPatch {
		v.Prerelease = p.prerelease
	}
	return v
}

func (p partial) full() Version {
	return Version{Major: p.major, Minor: p.minor, Patch: p.patch, Prerelease: p.prerelease}
}

func parsePartial(s string) (partial, error) {
	s = strings.TrimPrefix(s, "=")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	if s == "" {
		return partial{}, zerr.Wrap(domain.ErrInvalidRangeSyntax, "missing version")
	}

	var p partial
	core, suffix := splitCore(s)
	if suffix != "" {
		tagged := "v0.0.0" + suffix
		if !modsemver.IsValid(tagged) {
			return partial{}, zerr.With(zerr.Wrap(domain.ErrInvalidRangeSyntax, "invalid prerelease or build"), "version", s)
		}
		p.prerelease, _ = splitTags(tagged)
	}

	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return partial{}, zerr.With(zerr.Wrap(domain.ErrInvalidRangeSyntax, "too many version components"), "version", s)
	}

	wildcard := false
	for i, part := range parts {
		if wildcard || isWildcard(part) {
			wildcard = true
			if i == 0 {
				p.anyMajor = true
			}
			continue
		}
		n, err := parseNumeric(part)
		if err != nil {
			return partial{}, domain.WithCause(domain.ErrInvalidRangeSyntax, err)
		}
		switch i {
		case 0:
			p.major = n
		case 1:
			p.minor, p.hasMinor = n, true
		case 2:
			p.patch, p.hasPatch = n, true
		}
	}

	if p.prerelease != nil && !p.hasPatch {
		return partial{}, zerr.With(zerr.Wrap(domain.ErrInvalidRangeSyntax, "prerelease on a partial version"), "version", s)
	}
	return p, nil
}

func isWildcard(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

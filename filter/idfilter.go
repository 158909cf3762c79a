package filter

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// IDSet is an identifier allow- or deny-list.
type IDSet struct {
	ids     map[string]struct{}
	exclude bool
}

// LoadIDSet reads a line-oriented id list: '#' lines are comments, the
// first whitespace- or comma-delimited field of each line is the id.
// With exclude set, listed ids are dropped instead of kept.
func LoadIDSet(r io.Reader, exclude bool) (*IDSet, error) {
	s := &IDSet{ids: make(map[string]struct{}), exclude: exclude}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if i := strings.IndexAny(line, " \t,"); i >= 0 {
			line = line[:i]
		}
		s.ids[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "id list")
	}
	return s, nil
}

// Keep reports whether a record with the given id passes the filter.
func (s *IDSet) Keep(id string) bool {
	_, listed := s.ids[id]
	return listed != s.exclude
}

// Len returns the number of listed ids.
func (s *IDSet) Len() int { return len(s.ids) }

// PatternFilter keeps records whose id matches a regular expression.
// When the expression carries a capture group, the first group's match
// additionally names the split output a record routes to.
type PatternFilter struct {
	re *regexp.Regexp
}

// NewPatternFilter compiles the pattern.
func NewPatternFilter(pattern string) (*PatternFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "id pattern %q", pattern)
	}
	return &PatternFilter{re: re}, nil
}

// Match reports whether id matches.
func (p *PatternFilter) Match(id string) bool { return p.re.MatchString(id) }

// NumGroups returns the number of capture groups in the pattern. Split
// routing needs at least one.
func (p *PatternFilter) NumGroups() int { return p.re.NumSubexp() }

// Group returns the first capture group of the match against id, for
// split routing. ok is false when id does not match or the pattern has
// no capture group.
func (p *PatternFilter) Group(id string) (group string, ok bool) {
	if p.re.NumSubexp() == 0 {
		return "", false
	}
	m := p.re.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return m[1], true
}

package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Renamer rewrites record identifiers. Rules are a closed set of typed
// templates resolved at configuration time; there is no free-form
// expression evaluation. Two forms are supported:
//
//   - counter substitution: a template containing "{COUNT}" or
//     "{COUNT:start[,step]}", replaced by a per-run counter;
//   - regex replacement: "pattern" and a replacement template in which
//     %1..%9 refer to capture groups and %0 to the whole match. The
//     replacement may itself contain a counter token.
//
// A pattern rule that does not match a record's identifier is a rewrite
// evaluation failure: the pipeline aborts before writing that record.
type Renamer struct {
	pattern  *regexp.Regexp // nil for pure counter rules
	template string
	ruleText string

	counter     int
	counterStep int
	hasCounter  bool
}

var counterToken = regexp.MustCompile(`\{COUNT(?::(-?\d+)(?:,(-?\d+))?)?\}`)

// NewRenamer resolves a rename rule of the form "template" or
// "pattern<TAB or space>template". Invalid rules are configuration
// errors reported before any record is processed.
func NewRenamer(rule string) (*Renamer, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, errors.New("empty rename rule")
	}
	r := &Renamer{ruleText: rule, counterStep: 1}
	template := rule
	if i := strings.IndexAny(rule, " \t"); i >= 0 {
		pat, err := regexp.Compile(rule[:i])
		if err != nil {
			return nil, errors.Wrapf(err, "rename rule %q", rule)
		}
		r.pattern = pat
		template = strings.TrimLeft(rule[i:], " \t")
		for j := 0; j+1 < len(template); j++ {
			if template[j] == '%' && template[j+1] >= '0' && template[j+1] <= '9' {
				if int(template[j+1]-'0') > pat.NumSubexp() {
					return nil, errors.Errorf("rename rule %q: %%%c exceeds %d capture groups",
						rule, template[j+1], pat.NumSubexp())
				}
			}
		}
	}
	if m := counterToken.FindStringSubmatch(template); m != nil {
		r.hasCounter = true
		r.counter = 1
		if m[1] != "" {
			r.counter, _ = strconv.Atoi(m[1])
		}
		if m[2] != "" {
			r.counterStep, _ = strconv.Atoi(m[2])
			if r.counterStep == 0 {
				return nil, errors.Errorf("rename rule %q: zero counter step", rule)
			}
		}
	} else if r.pattern == nil {
		return nil, errors.Errorf("rename rule %q: plain template without {COUNT} would collapse all ids", rule)
	}
	r.template = template
	return r, nil
}

// Rename rewrites id according to the rule, advancing the counter when
// the rule carries one. An error identifies the rule and the failing id.
func (r *Renamer) Rename(id string) (string, error) {
	out := r.template
	if r.pattern != nil {
		m := r.pattern.FindStringSubmatch(id)
		if m == nil {
			return "", errors.Errorf("rename rule %q does not match id %q", r.ruleText, id)
		}
		var b strings.Builder
		for i := 0; i < len(out); i++ {
			if out[i] == '%' && i+1 < len(out) && out[i+1] >= '0' && out[i+1] <= '9' {
				b.WriteString(m[out[i+1]-'0'])
				i++
				continue
			}
			b.WriteByte(out[i])
		}
		// s/pattern/template/ semantics: only the first match is
		// replaced, the rest of the id stays.
		loc := r.pattern.FindStringIndex(id)
		out = id[:loc[0]] + b.String() + id[loc[1]:]
	}
	if r.hasCounter {
		out = counterToken.ReplaceAllString(out, strconv.Itoa(r.counter))
		r.counter += r.counterStep
	}
	return out, nil
}

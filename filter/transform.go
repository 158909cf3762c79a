package filter

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Wildcard is the directive table key whose directives apply to every
// record, independently of any id-specific directives.
const Wildcard = "*"

// A Directive is one coordinate-based extraction or replacement
// operation. Off may be negative, meaning relative to the sequence end.
// Without HasLen the operation covers from Off to the end of the
// sequence. With Replace set, the resolved range is deleted and Seq
// (plus Qual for quality-bearing records) is spliced in at that
// position; a resolved length of 0 makes that a pure insertion. Reverse
// causes the resulting fragment to be reverse-complemented after the
// operation.
type Directive struct {
	Off, Len int
	HasLen   bool
	Replace  bool
	Seq      []byte
	Qual     []byte
	Reverse  bool
}

// DirectiveTable maps a record identifier (or Wildcard) to its ordered
// directives. It is loaded once per run.
type DirectiveTable map[string][]Directive

// LoadDirectives reads a line-oriented directive file. Lines starting
// with '#' are ignored; fields are whitespace or comma delimited; the
// first field is the record id or "*".
//
// With perlStyle false, the remaining fields are (from, to) pairs of
// 1-based inclusive coordinates; from > to extracts [to, from] and
// reverse-complements the fragment. With perlStyle true, each line
// holds a single (offset[, length[, replacement-seq[, replacement-
// qual]]]) tuple with a 0-based, possibly negative offset. Exactly one
// representation is active per run. With requireQual set, a
// replacement sequence without a replacement quality column is
// rejected: quality-bearing runs must spell out the spliced scores.
func LoadDirectives(r io.Reader, perlStyle, requireQual bool) (DirectiveTable, error) {
	table := make(DirectiveTable)
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(fields) < 2 {
			return nil, errors.Errorf("substr directives: line %d: id without coordinates", lineno)
		}
		id := fields[0]
		var (
			d   Directive
			err error
		)
		if perlStyle {
			d, err = parsePerlDirective(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "substr directives: line %d", lineno)
			}
			if requireQual && d.Replace && d.Qual == nil && len(d.Seq) > 0 {
				return nil, errors.Errorf("substr directives: line %d: replacement without quality on quality-bearing input", lineno)
			}
			table[id] = append(table[id], d)
			continue
		}
		if (len(fields)-1)%2 != 0 {
			return nil, errors.Errorf("substr directives: line %d: odd number of coordinates", lineno)
		}
		for i := 1; i < len(fields); i += 2 {
			d, err = parsePairDirective(fields[i], fields[i+1])
			if err != nil {
				return nil, errors.Wrapf(err, "substr directives: line %d", lineno)
			}
			table[id] = append(table[id], d)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "substr directives")
	}
	return table, nil
}

func parsePairDirective(fromField, toField string) (Directive, error) {
	from, err := strconv.Atoi(fromField)
	if err != nil {
		return Directive{}, errors.Errorf("bad coordinate %q", fromField)
	}
	to, err := strconv.Atoi(toField)
	if err != nil {
		return Directive{}, errors.Errorf("bad coordinate %q", toField)
	}
	if from < 1 || to < 1 {
		return Directive{}, errors.Errorf("coordinates are 1-based, got %d-%d", from, to)
	}
	d := Directive{HasLen: true}
	if from > to {
		from, to = to, from
		d.Reverse = true
	}
	d.Off = from - 1
	d.Len = to - from + 1
	return d, nil
}

func parsePerlDirective(fields []string) (Directive, error) {
	off, err := strconv.Atoi(fields[0])
	if err != nil {
		return Directive{}, errors.Errorf("bad offset %q", fields[0])
	}
	d := Directive{Off: off}
	if len(fields) > 1 {
		d.Len, err = strconv.Atoi(fields[1])
		if err != nil {
			return Directive{}, errors.Errorf("bad length %q", fields[1])
		}
		d.HasLen = true
	}
	if len(fields) > 2 {
		d.Replace = true
		d.Seq = []byte(fields[2])
	}
	if len(fields) > 3 {
		d.Qual = []byte(fields[3])
		if len(d.Qual) != len(d.Seq) {
			return Directive{}, errors.Errorf("replacement seq/qual length mismatch (%d vs %d)", len(d.Seq), len(d.Qual))
		}
	}
	if len(fields) > 4 {
		return Directive{}, errors.Errorf("too many fields (%d)", len(fields)+1)
	}
	return d, nil
}

// ForRecord returns the directives to apply to the given id: the
// wildcard directives first, then the id-specific ones. Both sets
// operate on the original record independently.
func (t DirectiveTable) ForRecord(id string) []Directive {
	if t == nil {
		return nil
	}
	wild := t[Wildcard]
	own := t[id]
	if len(wild) == 0 {
		return own
	}
	if len(own) == 0 {
		return wild
	}
	out := make([]Directive, 0, len(wild)+len(own))
	out = append(out, wild...)
	return append(out, own...)
}

// ApplyDirectives resolves each directive against rec and returns the
// derived fragments, zero or more, each independent of rec and of each
// other. Out-of-bounds coordinates clamp to [0, len]; a clamped range
// that resolves empty without a replacement yields no fragment.
func ApplyDirectives(rec *Record, dirs []Directive) []*Record {
	out := make([]*Record, 0, len(dirs))
	for _, d := range dirs {
		if frag := applyDirective(rec, d); frag != nil {
			out = append(out, frag)
		}
	}
	return out
}

func applyDirective(rec *Record, d Directive) *Record {
	n := len(rec.Seq)
	off := d.Off
	if off < 0 {
		off = n + off
	}
	end := n
	if d.HasLen {
		end = off + d.Len
	}
	off = clamp(off, 0, n)
	end = clamp(end, off, n)

	frag := &Record{ID: rec.ID, Desc: rec.Desc}
	if d.Replace {
		frag.Seq = splice(rec.Seq, off, end, d.Seq)
		if rec.Qual != nil {
			repl := d.Qual
			if repl == nil {
				// No quality column: repeat the original quality value
				// nearest to the splice point.
				fill := byte('I')
				switch {
				case off > 0:
					fill = rec.Qual[off-1]
				case end < len(rec.Qual):
					fill = rec.Qual[end]
				case len(rec.Qual) > 0:
					fill = rec.Qual[0]
				}
				repl = bytes.Repeat([]byte{fill}, len(d.Seq))
			}
			frag.Qual = splice(rec.Qual, off, end, repl)
		}
	} else {
		if end == off {
			return nil
		}
		frag.Seq = append([]byte(nil), rec.Seq[off:end]...)
		if rec.Qual != nil {
			frag.Qual = append([]byte(nil), rec.Qual[off:end]...)
		}
	}
	if d.Reverse {
		frag.ReverseComplement()
	}
	return frag
}

func splice(s []byte, off, end int, repl []byte) []byte {
	out := make([]byte, 0, len(s)-(end-off)+len(repl))
	out = append(out, s[:off]...)
	out = append(out, repl...)
	return append(out, s[end:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

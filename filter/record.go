// Package filter implements the per-record engine of SeqFilter: quality
// region finding, region merging for masking decisions, coordinate
// transforms, and the record pipeline that ties them together.
package filter

import (
	"strconv"
	"strings"
)

// MaskSymbol replaces masked sequence positions.
const MaskSymbol = 'N'

// A Record is one sequence unit from an input source: identifier,
// optional free-text description, sequence, and, for quality-bearing
// formats, encoded per-base quality of the same length as the sequence.
type Record struct {
	ID   string
	Desc string
	Seq  []byte
	Qual []byte // encoded phred characters; nil for FASTA input
}

// Clone returns a deep copy of r. Pipeline stages mutate records in
// place, so fan-out works on copies.
func (r *Record) Clone() *Record {
	c := &Record{ID: r.ID, Desc: r.Desc, Seq: append([]byte(nil), r.Seq...)}
	if r.Qual != nil {
		c.Qual = append([]byte(nil), r.Qual...)
	}
	return c
}

// MateNumber derives the mate-pair number from an identifier suffix of
// the form "/1" or "/2". It returns 0 when the identifier carries none.
func (r *Record) MateNumber() int {
	if i := strings.LastIndexByte(r.ID, '/'); i >= 0 && i < len(r.ID)-1 {
		if n, err := strconv.Atoi(r.ID[i+1:]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// Scores decodes the record's quality into phred scores using the given
// numeric offset. It returns nil when the record carries no quality.
func (r *Record) Scores(offset int) []int {
	if r.Qual == nil {
		return nil
	}
	scores := make([]int, len(r.Qual))
	for i, c := range r.Qual {
		scores[i] = int(c) - offset
	}
	return scores
}

// complement maps a nucleotide (including IUPAC ambiguity codes) to its
// complement, preserving case. Unknown characters map to themselves.
var complement [256]byte

func init() {
	for i := range complement {
		complement[i] = byte(i)
	}
	pairs := []byte("ATCGRYKMBVDH")
	comp := []byte("TAGCYRMKVBHD")
	for i, c := range pairs {
		complement[c] = comp[i]
		complement[c+'a'-'A'] = comp[i] + 'a' - 'A'
	}
}

// ReverseComplement reverse-complements the record's sequence in place
// and reverses its quality alongside.
func (r *Record) ReverseComplement() {
	s := r.Seq
	for i, j := 0, len(s)-1; i <= j; i, j = i+1, j-1 {
		s[i], s[j] = complement[s[j]], complement[s[i]]
	}
	q := r.Qual
	for i, j := 0, len(q)-1; i < j; i, j = i+1, j-1 {
		q[i], q[j] = q[j], q[i]
	}
}

// isStandard reports whether c is one of acgtnACGTN.
var isStandard [256]bool

func init() {
	for _, c := range []byte("ACGTN") {
		isStandard[c] = true
		isStandard[c+'a'-'A'] = true
	}
}

// NormalizeSymbols replaces every non-ACGTN character (IUPAC ambiguity
// codes and anything else) with the unknown symbol, preserving case.
func (r *Record) NormalizeSymbols() {
	for i, c := range r.Seq {
		if !isStandard[c] {
			if c >= 'a' && c <= 'z' {
				r.Seq[i] = MaskSymbol + 'a' - 'A'
			} else {
				r.Seq[i] = MaskSymbol
			}
		}
	}
}

// Mask overwrites the given regions of the sequence with the unknown
// symbol and appends an annotation listing the masked coordinates
// (1-based, inclusive) to the description. Regions are assumed to be
// in ascending order and within bounds.
func (r *Record) Mask(regions []Region) {
	if len(regions) == 0 {
		return
	}
	var ann strings.Builder
	ann.WriteString("masked:")
	for i, reg := range regions {
		for j := reg.Off; j < reg.End(); j++ {
			r.Seq[j] = MaskSymbol
		}
		if i > 0 {
			ann.WriteByte(',')
		}
		ann.WriteString(strconv.Itoa(reg.Off + 1))
		ann.WriteByte('-')
		ann.WriteString(strconv.Itoa(reg.End()))
	}
	if r.Desc != "" {
		r.Desc += " "
	}
	r.Desc += ann.String()
}

// Trim cuts the record down to the half-open range [off, end).
func (r *Record) Trim(off, end int) {
	r.Seq = r.Seq[off:end]
	if r.Qual != nil {
		r.Qual = r.Qual[off:end]
	}
}

// ToUpper converts the sequence to upper case in place.
func (r *Record) ToUpper() {
	for i, c := range r.Seq {
		if c >= 'a' && c <= 'z' {
			r.Seq[i] = c - 'a' + 'A'
		}
	}
}

// ToLower converts the sequence to lower case in place.
func (r *Record) ToLower() {
	for i, c := range r.Seq {
		if c >= 'A' && c <= 'Z' {
			r.Seq[i] = c - 'A' + 'a'
		}
	}
}

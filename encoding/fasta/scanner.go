// Package fasta contains code for streaming FASTA records. Briefly,
// FASTA files consist of a number of named sequences whose data may be
// interrupted by newlines. For example:
//
// >chr7 optional free text
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// The record name is the stretch of characters excluding whitespace
// immediately after '>'; any text after the first whitespace is kept as
// the record's description.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// A Record is a single named FASTA sequence.
type Record struct {
	ID, Desc, Seq string
}

// Scanner reads FASTA records one at a time. Unlike an index-based
// reader it holds at most one record in memory, so arbitrarily large
// files stream in constant space. Scanners are not threadsafe.
type Scanner struct {
	b      *bufio.Scanner
	err    error
	header string // header line of the next record, without '>'
	line   int
	done   bool
}

// NewScanner constructs a new Scanner reading raw FASTA data from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan reads the next record into rec, returning a boolean indicating
// whether the scan succeeded. Once Scan returns false, it never returns
// true again. Upon completion the user should check Err to distinguish
// end of input from a read error.
func (f *Scanner) Scan(rec *Record) bool {
	if f.err != nil || f.done {
		return false
	}
	if f.header == "" {
		// Find the first header line.
		for f.scan() {
			line := f.b.Text()
			if len(line) == 0 {
				continue
			}
			if line[0] != '>' {
				f.err = errors.Errorf("malformed FASTA file: line %d: sequence data before first header", f.line)
				return false
			}
			f.header = line[1:]
			break
		}
		if f.header == "" {
			f.done = true
			return false
		}
	}
	rec.ID, rec.Desc = splitHeader(f.header)
	f.header = ""
	var seq strings.Builder
	for f.scan() {
		line := f.b.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			f.header = line[1:]
			break
		}
		seq.WriteString(line)
	}
	if f.err != nil {
		return false
	}
	if f.header == "" {
		f.done = true
	}
	rec.Seq = seq.String()
	return true
}

func (f *Scanner) scan() bool {
	if f.err != nil {
		return false
	}
	ok := f.b.Scan()
	if !ok {
		f.err = errors.Wrap(f.b.Err(), "couldn't read FASTA data")
		if f.b.Err() == nil {
			f.err = nil
		}
	} else {
		f.line++
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error { return f.err }

// Line returns the number of input lines consumed so far. It is used to
// report the position of a malformed record.
func (f *Scanner) Line() int { return f.line }

func splitHeader(h string) (id, desc string) {
	if i := strings.IndexAny(h, " \t"); i >= 0 {
		return h[:i], strings.TrimLeft(h[i:], " \t")
	}
	return h, ""
}

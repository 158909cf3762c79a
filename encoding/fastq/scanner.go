// Package fastq contains code for reading and writing four-line FASTQ
// records. Quality strings are kept in their encoded form; the numeric
// phred offset (typically 33 or 64) is resolved by the caller, either
// explicitly or via GuessOffset.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// A Read is a FASTQ read. ID is the first whitespace-delimited token of
// the header line, without the leading "@"; Desc is the remainder of the
// header line, possibly empty. Qual holds the encoded quality characters.
type Read struct {
	ID, Desc, Seq, Qual string
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner requires ID lines to begin with "@" and line 3 to begin with
// "+". It does not require seq and qual to be of equal length; callers
// that care run that check themselves.
type Scanner struct {
	b    *bufio.Scanner
	err  error
	line int
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	f.line++
	header := f.b.Text()
	if len(header) == 0 || header[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID, read.Desc = splitHeader(header[1:])
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	if plus := f.b.Bytes(); len(plus) == 0 || plus[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	} else {
		f.line++
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// Line returns the number of input lines consumed so far. It is used to
// report the position of a malformed record.
func (f *Scanner) Line() int { return f.line }

func splitHeader(h string) (id, desc string) {
	if i := strings.IndexAny(h, " \t"); i >= 0 {
		return h[:i], strings.TrimLeft(h[i:], " \t")
	}
	return h, ""
}

// GuessOffset inspects the encoded quality characters of up to maxReads
// reads and resolves the phred offset. A character below '@' (64) can
// only occur in offset-33 data; data whose characters all sit in the
// high range is reported as offset 64. An error is returned when the
// sample does not decide the question.
func GuessOffset(r io.Reader, maxReads int) (int, error) {
	sc := NewScanner(r)
	var read Read
	min, max := byte(255), byte(0)
	for n := 0; n < maxReads && sc.Scan(&read); n++ {
		for i := 0; i < len(read.Qual); i++ {
			c := read.Qual[i]
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	switch {
	case min == 255:
		return 0, errors.New("no quality data to guess phred offset from")
	case min < 64:
		return 33, nil
	case max > 33+45:
		return 64, nil
	}
	return 0, errors.New("ambiguous quality range, specify the phred offset explicitly")
}

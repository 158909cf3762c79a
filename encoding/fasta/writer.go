package fasta

import "io"

var newline = []byte{'\n'}

// Writer is a FASTA file writer that wraps sequence data at a fixed
// line width. A width of 0 writes each sequence on a single line.
type Writer struct {
	w     io.Writer
	width int
	err   error
}

// NewWriter constructs a new FASTA writer that writes records to the
// underlying writer w, wrapping sequence lines at width characters.
func NewWriter(w io.Writer, width int) *Writer {
	return &Writer{w: w, width: width}
}

// Write writes the record r in FASTA format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Record) error {
	if r.Desc != "" {
		w.writeln(">" + r.ID + " " + r.Desc)
	} else {
		w.writeln(">" + r.ID)
	}
	if w.width <= 0 {
		w.writeln(r.Seq)
		return w.err
	}
	for off := 0; off < len(r.Seq); off += w.width {
		end := off + w.width
		if end > len(r.Seq) {
			end = len(r.Seq)
		}
		w.writeln(r.Seq[off:end])
	}
	if len(r.Seq) == 0 {
		w.writeln("")
	}
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

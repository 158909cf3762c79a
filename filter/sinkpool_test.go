package filter

import (
	"bytes"
	"testing"

	"github.com/grailbio/testutil/expect"
)

// bufSink appends record ids to a shared buffer, so a reopened sink
// continues the same byte stream like an append-mode file would.
type bufSink struct {
	buf  *bytes.Buffer
	open *bool
}

func (s *bufSink) Write(r *Record) error {
	s.buf.WriteString(r.ID)
	s.buf.WriteByte('\n')
	return nil
}

type fakeFS struct {
	bufs    map[string]*bytes.Buffer
	opens   []string // every open call, in order
	reopens []string
}

func newFakeFS() *fakeFS { return &fakeFS{bufs: make(map[string]*bytes.Buffer)} }

func (f *fakeFS) factory(group string, reopen bool) (Sink, func() error, error) {
	f.opens = append(f.opens, group)
	if reopen {
		f.reopens = append(f.reopens, group)
	} else {
		f.bufs[group] = &bytes.Buffer{}
	}
	return &bufSink{buf: f.bufs[group]}, func() error { return nil }, nil
}

func write(t *testing.T, p *SinkPool, group, id string) {
	t.Helper()
	s, err := p.Sink(group)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(&Record{ID: id}); err != nil {
		t.Fatal(err)
	}
}

func TestSinkPoolEviction(t *testing.T) {
	fs := newFakeFS()
	p := NewSinkPool(2, fs.factory)

	write(t, p, "a", "r1")
	write(t, p, "b", "r2")
	// Opening c evicts a, the least-recently-opened handle.
	write(t, p, "c", "r3")
	// a reopens in append mode; this evicts b.
	write(t, p, "a", "r4")
	write(t, p, "a", "r5")

	expect.EQ(t, fs.opens, []string{"a", "b", "c", "a"})
	expect.EQ(t, fs.reopens, []string{"a"})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	// The reopened stream reads as if the handle had stayed open.
	expect.EQ(t, fs.bufs["a"].String(), "r1\nr4\nr5\n")
	expect.EQ(t, fs.bufs["b"].String(), "r2\n")
	expect.EQ(t, fs.bufs["c"].String(), "r3\n")
}

func TestSinkPoolGroups(t *testing.T) {
	fs := newFakeFS()
	p := NewSinkPool(1, fs.factory)
	write(t, p, "x", "r1")
	write(t, p, "y", "r2")
	write(t, p, "x", "r3")
	expect.EQ(t, p.Groups(), []string{"x", "y"})
}

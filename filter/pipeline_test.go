package filter

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

type captureSink struct {
	recs []*Record
}

func (s *captureSink) Write(r *Record) error {
	s.recs = append(s.recs, r.Clone())
	return nil
}

func newTestPipeline(opts *Opts) (*Pipeline, *captureSink) {
	out := &captureSink{}
	return &Pipeline{
		Opts:     opts,
		Out:      out,
		Raw:      NewStatTable([]string{"N"}),
		Filtered: NewStatTable([]string{"N"}),
	}, out
}

func encodeQual(scores []int, offset int) []byte {
	q := make([]byte, len(scores))
	for i, s := range scores {
		q[i] = byte(s + offset)
	}
	return q
}

func TestPipelineMasking(t *testing.T) {
	opts := DefaultOpts
	opts.PhredOffset = 33
	opts.Mask = &MaskOpts{LCSParams: LCSParams{Low: 0, High: 5, MinLength: 2}}
	p, out := newTestPipeline(&opts)

	rec := &Record{
		ID:   "r1",
		Seq:  []byte("ACGTACGTAC"),
		Qual: encodeQual([]int{2, 2, 2, 8, 8, 8, 8, 2, 2, 2}, 33),
	}
	if err := p.Process(rec); err != nil {
		t.Fatal(err)
	}
	if len(out.recs) != 1 {
		t.Fatalf("got %d records, want 1", len(out.recs))
	}
	expect.EQ(t, string(out.recs[0].Seq), "NNNTACGNNN")
	expect.EQ(t, out.recs[0].Desc, "masked:1-3,8-10")

	// Masked symbols count as the mask symbol in filtered statistics
	// but not in raw statistics.
	expect.EQ(t, p.Raw.Content["N"], int64(0))
	expect.EQ(t, p.Filtered.Content["N"], int64(6))
}

func TestPipelineTrimOrder(t *testing.T) {
	opts := DefaultOpts
	opts.PhredOffset = 33
	opts.TrimLCS = &LCSParams{Low: 10, High: 60, MinLength: 2}
	p, out := newTestPipeline(&opts)

	// Two qualifying runs; the longer one wins, ties go to the earlier.
	scores := []int{2, 20, 20, 2, 20, 20, 20, 2}
	rec := &Record{ID: "r1", Seq: []byte("AACCGGTT"), Qual: encodeQual(scores, 33)}
	if err := p.Process(rec); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, string(out.recs[0].Seq), "GGT")

	// No qualifying region drops the fragment.
	rec = &Record{ID: "r2", Seq: []byte("ACGT"), Qual: encodeQual([]int{2, 2, 2, 2}, 33)}
	if err := p.Process(rec); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, len(out.recs), 1)
	expect.EQ(t, p.Raw.Records, 2)
	expect.EQ(t, p.Filtered.Records, 1)
}

func TestPipelineFanOut(t *testing.T) {
	opts := DefaultOpts
	p, out := newTestPipeline(&opts)
	p.Directives = DirectiveTable{
		Wildcard: {{Off: 0, Len: 4, HasLen: true}},
		"r1":     {{Off: -4}},
	}

	if err := p.Process(&Record{ID: "r1", Seq: []byte("AAAACCCCGGGG")}); err != nil {
		t.Fatal(err)
	}
	// Wildcard and specific directives both apply to the original.
	expect.EQ(t, len(out.recs), 2)
	expect.EQ(t, string(out.recs[0].Seq), "AAAA")
	expect.EQ(t, string(out.recs[1].Seq), "GGGG")

	if err := p.Process(&Record{ID: "r2", Seq: []byte("TTTTAAAA")}); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, len(out.recs), 3)
	expect.EQ(t, string(out.recs[2].Seq), "TTTT")
}

func TestPipelineLengthAndIDFilters(t *testing.T) {
	opts := DefaultOpts
	opts.MinLength = 3
	opts.MaxLength = 5
	p, out := newTestPipeline(&opts)
	ids, err := LoadIDSet(strings.NewReader("bad\n"), true)
	if err != nil {
		t.Fatal(err)
	}
	p.IDs = ids

	for _, rec := range []*Record{
		{ID: "short", Seq: []byte("AC")},
		{ID: "ok", Seq: []byte("ACGT")},
		{ID: "long", Seq: []byte("ACGTACGT")},
		{ID: "bad", Seq: []byte("ACGT")},
	} {
		if err := p.Process(rec); err != nil {
			t.Fatal(err)
		}
	}
	expect.EQ(t, len(out.recs), 1)
	expect.EQ(t, out.recs[0].ID, "ok")
	expect.EQ(t, p.Raw.Records, 4)
}

func TestPipelineSplitRouting(t *testing.T) {
	run := func(requireMatch bool) (*fakeFS, *captureSink, *SinkPool) {
		opts := DefaultOpts
		opts.SplitRequireMatch = requireMatch
		p, out := newTestPipeline(&opts)
		pat, err := NewPatternFilter(`\w+?(\d+)_`)
		if err != nil {
			t.Fatal(err)
		}
		fs := newFakeFS()
		pool := NewSinkPool(opts.MaxOpenSinks, fs.factory)
		p.Pattern = pat
		p.Split = pool
		for _, id := range []string{"lib1_x", "lib2_y", "other"} {
			if err := p.Process(&Record{ID: id, Seq: []byte("ACGT")}); err != nil {
				t.Fatal(err)
			}
		}
		return fs, out, pool
	}

	// Matching records route to distinct outputs named by the capture
	// group; the unmatched record goes to the default sink.
	fs, out, pool := run(false)
	expect.EQ(t, pool.Groups(), []string{"1", "2"})
	expect.EQ(t, fs.bufs["1"].String(), "lib1_x\n")
	expect.EQ(t, fs.bufs["2"].String(), "lib2_y\n")
	expect.EQ(t, len(out.recs), 1)
	expect.EQ(t, out.recs[0].ID, "other")

	// With SplitRequireMatch the unmatched record is dropped instead.
	_, out, _ = run(true)
	expect.EQ(t, len(out.recs), 0)
}

func TestPipelineStrictValidation(t *testing.T) {
	opts := DefaultOpts
	opts.Strict = true
	p, _ := newTestPipeline(&opts)
	err := p.Process(&Record{ID: "r1", Seq: []byte("ACGT"), Qual: []byte("II")})
	if err == nil {
		t.Fatal("expected error for seq/qual length mismatch")
	}

	opts.Strict = false
	p, out := newTestPipeline(&opts)
	if err := p.Process(&Record{ID: "r1", Seq: []byte("ACGT"), Qual: []byte("II")}); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, len(out.recs), 1)
}

func TestPipelineRenameFailureAborts(t *testing.T) {
	opts := DefaultOpts
	p, out := newTestPipeline(&opts)
	r, err := NewRenamer(`^lib frag{COUNT}`)
	if err != nil {
		t.Fatal(err)
	}
	p.Renamer = r

	if err := p.Process(&Record{ID: "lib_1", Seq: []byte("ACGT")}); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, out.recs[0].ID, "frag1_1")

	// The failing record aborts before anything is written for it.
	if err := p.Process(&Record{ID: "oops", Seq: []byte("ACGT")}); err == nil {
		t.Fatal("expected rewrite failure")
	}
	expect.EQ(t, len(out.recs), 1)
	expect.EQ(t, p.Filtered.Records, 1)
}

func TestPipelineRevComp(t *testing.T) {
	opts := DefaultOpts
	opts.RevComp = true
	p, out := newTestPipeline(&opts)
	if err := p.Process(&Record{ID: "r1", Seq: []byte("AACCGT")}); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, string(out.recs[0].Seq), "ACGGTT")

	p.RevCompWhen = func(r *Record) bool { return r.ID == "yes" }
	if err := p.Process(&Record{ID: "no", Seq: []byte("AACC")}); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, string(out.recs[1].Seq), "AACC")
}

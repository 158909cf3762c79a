package filter

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func rec(seq string) *Record {
	return &Record{ID: "r1", Seq: []byte(seq)}
}

func TestApplyDirectivesExtract(t *testing.T) {
	seq := strings.Repeat("ACGTA", 10) // 50 symbols
	frags := ApplyDirectives(rec(seq), []Directive{{Off: 10}})
	expect.EQ(t, len(frags), 1)
	expect.EQ(t, string(frags[0].Seq), seq[10:])
	expect.EQ(t, len(frags[0].Seq), 40)

	frags = ApplyDirectives(rec(seq), []Directive{{Off: -5}})
	expect.EQ(t, len(frags), 1)
	expect.EQ(t, string(frags[0].Seq), seq[45:])
}

func TestApplyDirectivesReplace(t *testing.T) {
	frags := ApplyDirectives(rec("ACGTACGT"),
		[]Directive{{Off: 3, Len: 1, HasLen: true, Replace: true, Seq: []byte("N")}})
	expect.EQ(t, len(frags), 1)
	expect.EQ(t, string(frags[0].Seq), "ACNTACGT")

	// Length 0 is a pure insertion.
	frags = ApplyDirectives(rec("ACGT"),
		[]Directive{{Off: 2, Len: 0, HasLen: true, Replace: true, Seq: []byte("TT")}})
	expect.EQ(t, string(frags[0].Seq), "ACTTGT")

	// Replacement in a quality-bearing record splices the quality too.
	r := &Record{ID: "q", Seq: []byte("ACGT"), Qual: []byte("HIJK")}
	frags = ApplyDirectives(r, []Directive{{Off: 1, Len: 2, HasLen: true, Replace: true,
		Seq: []byte("GG"), Qual: []byte("!!")}})
	expect.EQ(t, string(frags[0].Seq), "AGGT")
	expect.EQ(t, string(frags[0].Qual), "H!!K")
}

func TestApplyDirectivesReplaceWithoutQual(t *testing.T) {
	// A replacement lacking a quality column repeats the original
	// quality value nearest the splice point, never the sequence bytes.
	r := &Record{ID: "q", Seq: []byte("ACGT"), Qual: []byte("HIJK")}
	frags := ApplyDirectives(r, []Directive{{Off: 1, Len: 2, HasLen: true, Replace: true,
		Seq: []byte("NN")}})
	expect.EQ(t, string(frags[0].Seq), "ANNT")
	expect.EQ(t, string(frags[0].Qual), "HHHK")

	// Splicing at the start borrows from the base after the range.
	frags = ApplyDirectives(r, []Directive{{Off: 0, Len: 1, HasLen: true, Replace: true,
		Seq: []byte("G")}})
	expect.EQ(t, string(frags[0].Qual), "IIJK")
}

func TestApplyDirectivesClamp(t *testing.T) {
	// Out-of-bounds coordinates clamp to [0, len] rather than abort.
	frags := ApplyDirectives(rec("ACGT"), []Directive{{Off: 2, Len: 99, HasLen: true}})
	expect.EQ(t, string(frags[0].Seq), "GT")
	frags = ApplyDirectives(rec("ACGT"), []Directive{{Off: -99}})
	expect.EQ(t, string(frags[0].Seq), "ACGT")
	// An empty resolved range yields no fragment.
	frags = ApplyDirectives(rec("ACGT"), []Directive{{Off: 99}})
	expect.EQ(t, len(frags), 0)
}

func TestApplyDirectivesReverse(t *testing.T) {
	frags := ApplyDirectives(rec("AACCGT"), []Directive{{Off: 2, Len: 4, HasLen: true, Reverse: true}})
	expect.EQ(t, string(frags[0].Seq), "ACGG")

	r := &Record{ID: "q", Seq: []byte("AACCGT"), Qual: []byte("123456")}
	frags = ApplyDirectives(r, []Directive{{Off: 0, Reverse: true}})
	expect.EQ(t, string(frags[0].Seq), "ACGGTT")
	expect.EQ(t, string(frags[0].Qual), "654321")
}

func TestDirectiveTableForRecord(t *testing.T) {
	table := DirectiveTable{
		Wildcard: {{Off: 0, Len: 2, HasLen: true}},
		"r1":     {{Off: 2}},
	}
	// Wildcard and specific directives both apply, wildcard first, each
	// against the original record.
	dirs := table.ForRecord("r1")
	expect.EQ(t, len(dirs), 2)
	frags := ApplyDirectives(rec("AACCGGTT"), dirs)
	expect.EQ(t, string(frags[0].Seq), "AA")
	expect.EQ(t, string(frags[1].Seq), "CCGGTT")

	expect.EQ(t, len(table.ForRecord("other")), 1)
	var none DirectiveTable
	expect.EQ(t, len(none.ForRecord("r1")), 0)
}

func TestLoadDirectivesPairs(t *testing.T) {
	in := "# comment\nr1 3 6\nr2 6,3 1 2\n\n"
	table, err := LoadDirectives(strings.NewReader(in), false, false)
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, table["r1"], []Directive{{Off: 2, Len: 4, HasLen: true}})
	expect.EQ(t, table["r2"], []Directive{
		{Off: 2, Len: 4, HasLen: true, Reverse: true},
		{Off: 0, Len: 2, HasLen: true},
	})

	if _, err := LoadDirectives(strings.NewReader("r1 3\n"), false, false); err == nil {
		t.Error("expected error for odd coordinate count")
	}
	if _, err := LoadDirectives(strings.NewReader("r1 0 5\n"), false, false); err == nil {
		t.Error("expected error for 0-based coordinate")
	}
}

func TestLoadDirectivesPerlStyle(t *testing.T) {
	in := "r1 5\nr2 3 2\nr3 3,1,N,I\n* -5\n"
	table, err := LoadDirectives(strings.NewReader(in), true, false)
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, table["r1"], []Directive{{Off: 5}})
	expect.EQ(t, table["r2"], []Directive{{Off: 3, Len: 2, HasLen: true}})
	expect.EQ(t, table["r3"], []Directive{{Off: 3, Len: 1, HasLen: true, Replace: true,
		Seq: []byte("N"), Qual: []byte("I")}})
	expect.EQ(t, table[Wildcard], []Directive{{Off: -5}})

	if _, err := LoadDirectives(strings.NewReader("r1 1 2 NN I\n"), true, false); err == nil {
		t.Error("expected error for seq/qual length mismatch")
	}
}

func TestLoadDirectivesRequireQual(t *testing.T) {
	// Replacements on quality-bearing input must carry a quality column.
	if _, err := LoadDirectives(strings.NewReader("r1 3 1 N\n"), true, true); err == nil {
		t.Error("expected error for replacement without quality")
	}
	// With the column, or without a replacement at all, the line is fine.
	if _, err := LoadDirectives(strings.NewReader("r1 3 1 N I\nr2 5\n"), true, true); err != nil {
		t.Error(err)
	}
}

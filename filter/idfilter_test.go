package filter

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestIDSet(t *testing.T) {
	in := "# allow these\nr1\nr2 extra columns ignored\nr3,commented\n\n"
	s, err := LoadIDSet(strings.NewReader(in), false)
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, s.Len(), 3)
	expect.True(t, s.Keep("r1"))
	expect.True(t, s.Keep("r2"))
	expect.True(t, s.Keep("r3"))
	expect.False(t, s.Keep("r4"))

	s, err = LoadIDSet(strings.NewReader(in), true)
	if err != nil {
		t.Fatal(err)
	}
	expect.False(t, s.Keep("r1"))
	expect.True(t, s.Keep("r4"))
}

func TestPatternFilter(t *testing.T) {
	p, err := NewPatternFilter(`\w+?(\d+)_`)
	if err != nil {
		t.Fatal(err)
	}
	expect.True(t, p.Match("lib1_x"))
	expect.False(t, p.Match("other"))
	expect.EQ(t, p.NumGroups(), 1)

	group, ok := p.Group("lib1_x")
	expect.True(t, ok)
	expect.EQ(t, group, "1")
	group, ok = p.Group("lib2_y")
	expect.True(t, ok)
	expect.EQ(t, group, "2")
	_, ok = p.Group("other")
	expect.False(t, ok)

	// No capture group: no routing. Split mode rejects such a pattern
	// up front via NumGroups.
	p, err = NewPatternFilter(`^lib`)
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, p.NumGroups(), 0)
	_, ok = p.Group("lib1_x")
	expect.False(t, ok)

	if _, err := NewPatternFilter(`(`); err == nil {
		t.Error("expected error for bad pattern")
	}
}

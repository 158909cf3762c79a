package filter

import "sort"

// StatTable accumulates per-source observations: a histogram of
// sequence lengths and cumulative counts per configured base group.
// One table each exists for raw (pre-filter) and filtered (post-trim,
// post-mask) observations; per-source tables merge into a grand total
// after all sources complete.
type StatTable struct {
	Records int
	Bases   int64
	Lengths map[int]int
	Content map[string]int64

	groups []string
}

// NewStatTable creates an empty table counting the given base groups,
// e.g. "GC" or "N". Group matching is case-insensitive.
func NewStatTable(groups []string) *StatTable {
	t := &StatTable{
		Lengths: make(map[int]int),
		Content: make(map[string]int64),
		groups:  groups,
	}
	for _, g := range groups {
		t.Content[g] = 0
	}
	return t
}

// Add records one sequence observation.
func (t *StatTable) Add(seq []byte) {
	t.Records++
	t.Bases += int64(len(seq))
	t.Lengths[len(seq)]++
	for _, g := range t.groups {
		n := int64(0)
		for _, c := range seq {
			for i := 0; i < len(g); i++ {
				if c == g[i] || c == g[i]|0x20 || c == g[i]&^0x20 {
					n++
					break
				}
			}
		}
		t.Content[g] += n
	}
}

// Merge folds o into t. Both tables must count the same base groups.
func (t *StatTable) Merge(o *StatTable) {
	t.Records += o.Records
	t.Bases += o.Bases
	for l, n := range o.Lengths {
		t.Lengths[l] += n
	}
	for g, n := range o.Content {
		t.Content[g] += n
	}
}

// Nx returns the Nx length for the given percentage x in (0, 100]: the
// largest length L such that sequences of length >= L cover at least
// x% of all bases. The conventional N50 is Nx(50). Zero on an empty
// table.
func (t *StatTable) Nx(x float64) int {
	if t.Bases == 0 {
		return 0
	}
	lengths := make([]int, 0, len(t.Lengths))
	for l := range t.Lengths {
		lengths = append(lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
	threshold := x / 100 * float64(t.Bases)
	cum := int64(0)
	for _, l := range lengths {
		cum += int64(l) * int64(t.Lengths[l])
		if float64(cum) >= threshold {
			return l
		}
	}
	return lengths[len(lengths)-1]
}

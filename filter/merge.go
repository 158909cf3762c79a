package filter

// MergeParams constrain how mask regions are reconciled against the
// unmasked stretches separating them. MinMaskLen is the minimum length
// a mask region must keep to survive; MinUnmaskLen is the minimum
// length of any unmasked stretch (head, tail, or gap between regions);
// EdgeTrim shrinks every region inward on both sides before any other
// processing; EndRatio decides whether a too-short head or tail stretch
// is resolved by trimming the neighboring region or by masking the
// stretch outright.
type MergeParams struct {
	MinMaskLen   int
	MinUnmaskLen int
	EdgeTrim     int
	EndRatio     float64
}

// maxMergePasses bounds the convergence loop. Each pass strictly
// shrinks or removes regions, so n regions settle in at most n passes;
// the bound only guards against a logic error turning into a hang.
const maxMergePasses = 1 << 20

// MergeRegions post-processes an ascending, non-overlapping region list
// over a sequence of length seqLen into a final, internally consistent
// list of mask regions. The complement of the result is the unmasked
// portion; an empty result means nothing is masked.
//
// The passes, applied once per sequence:
//  1. shrink every region by EdgeTrim on both sides, dropping regions
//     whose length becomes <= 0;
//  2. resolve a too-short unmasked head: a head stretch shorter than
//     EndRatio*MinUnmaskLen widens to exactly MinUnmaskLen by trimming
//     the first region inward from its start (dropping it when it
//     falls below MinMaskLen), a longer one extends the first region
//     to position 0;
//  3. the same, mirrored, for the tail against the last region;
//  4. repeatedly widen every internal gap shorter than MinUnmaskLen to
//     exactly MinUnmaskLen by shrinking the two neighbors, the earlier
//     one by the smaller half on odd amounts, then drop regions that
//     fell below MinMaskLen; among adjacent regions flagged in the
//     same pass only the shorter is dropped, so a single bad gap does
//     not cascade into over-removal. The scan repeats until a full
//     pass removes nothing.
//
// With EdgeTrim 0 the function is idempotent on its own output.
func MergeRegions(regions []Region, seqLen int, p MergeParams) []Region {
	work := make([]Region, 0, len(regions))
	for _, r := range regions {
		r.Off += p.EdgeTrim
		r.Len -= 2 * p.EdgeTrim
		if r.Len > 0 {
			work = append(work, r)
		}
	}
	if len(work) == 0 {
		return work
	}

	// Head stretch against the first region. The trim branch widens the
	// stretch to exactly MinUnmaskLen, like the internal-gap pass below,
	// so re-merging the output leaves it unchanged.
	if gap := work[0].Off; gap > 0 && gap < p.MinUnmaskLen {
		if float64(gap) < p.EndRatio*float64(p.MinUnmaskLen) {
			need := p.MinUnmaskLen - gap
			work[0].Off += need
			work[0].Len -= need
			if work[0].Len < p.MinMaskLen || work[0].Len <= 0 {
				work = work[1:]
			}
		} else {
			work[0].Len += work[0].Off
			work[0].Off = 0
		}
	}
	if len(work) == 0 {
		return work
	}
	// Tail stretch against the last region.
	last := len(work) - 1
	if gap := seqLen - work[last].End(); gap > 0 && gap < p.MinUnmaskLen {
		if float64(gap) < p.EndRatio*float64(p.MinUnmaskLen) {
			work[last].Len -= p.MinUnmaskLen - gap
			if work[last].Len < p.MinMaskLen || work[last].Len <= 0 {
				work = work[:last]
			}
		} else {
			work[last].Len = seqLen - work[last].Off
		}
	}

	for pass := 0; pass < maxMergePasses && len(work) > 0; pass++ {
		for i := 0; i+1 < len(work); i++ {
			gap := work[i+1].Off - work[i].End()
			if gap >= p.MinUnmaskLen {
				continue
			}
			need := p.MinUnmaskLen - gap
			a := need / 2 // smaller half to the earlier region
			b := need - a
			work[i].Len -= a
			work[i+1].Off += b
			work[i+1].Len -= b
		}
		flagged := make([]bool, len(work))
		removed := false
		for i := range work {
			flagged[i] = work[i].Len < p.MinMaskLen
		}
		// Adjacent flagged regions: keep only the shorter one flagged.
		for i := 0; i+1 < len(work); i++ {
			if flagged[i] && flagged[i+1] {
				if work[i].Len <= work[i+1].Len {
					flagged[i+1] = false
				} else {
					flagged[i] = false
				}
			}
		}
		next := work[:0]
		for i := range work {
			if flagged[i] {
				removed = true
				continue
			}
			next = append(next, work[i])
		}
		work = next
		if !removed {
			break
		}
	}
	return work
}

package filter

// Region is a half-open interval [Off, Off+Len) over a sequence's index
// space. The finder emits regions in ascending offset order, non
// overlapping and never of zero length.
type Region struct {
	Off, Len int
}

// End returns the exclusive end of the region.
func (r Region) End() int { return r.Off + r.Len }

// LCSParams configure longest-contiguous-run region finding: a region
// is a maximal run of positions whose score falls within [Low, High];
// runs shorter than MinLength are discarded.
type LCSParams struct {
	Low, High int
	MinLength int
}

// WindowParams configure mean-based sliding-window region finding. A
// stretch extends while every position scores at least Hard and every
// non-overlapping window of Size positions has a round-half-up mean of
// at least Soft. Stretches shorter than MinLength are discarded.
type WindowParams struct {
	Soft, Hard int
	Size       int
	MinLength  int
}

// FindLCSRegions scans scores left to right and returns the maximal
// runs of positions individually within [p.Low, p.High], dropping runs
// shorter than p.MinLength. Single linear pass.
func FindLCSRegions(scores []int, p LCSParams) []Region {
	var out []Region
	run := -1
	for i, s := range scores {
		if s >= p.Low && s <= p.High {
			if run < 0 {
				run = i
			}
			continue
		}
		if run >= 0 {
			appendRegion(&out, run, i, p.MinLength)
			run = -1
		}
	}
	if run >= 0 {
		appendRegion(&out, run, len(scores), p.MinLength)
	}
	return out
}

// FindWindowRegions returns the maximal stretches where every position
// scores at least p.Hard and every complete window of p.Size positions,
// tiled without overlap from the stretch start, has a mean of at least
// p.Soft. A position below Hard terminates the current stretch
// immediately; a window mean below Soft ends the stretch at the
// boundary of the last compliant window. Stretch edges are then pulled
// inward to the first and last position scoring at least Soft, so a
// region never begins or ends below the soft bound except at the
// sequence boundaries. Stretches shorter than p.MinLength are dropped.
func FindWindowRegions(scores []int, p WindowParams) []Region {
	size := p.Size
	if size <= 0 {
		size = 1
	}
	var out []Region
	n := len(scores)
	i := 0
	for i < n {
		if scores[i] < p.Hard {
			i++
			continue
		}
		start := i
		end := -1
		winStart := start
		sum := 0
		for i < n && scores[i] >= p.Hard {
			sum += scores[i]
			i++
			if i-winStart == size {
				if meanHalfUp(sum, size) < p.Soft {
					// The stretch ends at the boundary of the last
					// compliant window; scanning resumes past the
					// failing one.
					end = winStart
					break
				}
				winStart = i
				sum = 0
			}
		}
		if end < 0 {
			// Ended on a sub-hard position or the end of input. A
			// trailing partial window is never evaluated, so a stretch
			// reaching the last index includes it.
			end = i
			if i < n && scores[i] < p.Hard {
				i++
			}
		}
		// Pull the edges inward to the first and last position meeting
		// the soft bound. The sequence boundaries themselves are exempt:
		// a stretch reaching the first or last index keeps it.
		if start > 0 {
			for start < end && scores[start] < p.Soft {
				start++
			}
		}
		if end < n {
			for end > start && scores[end-1] < p.Soft {
				end--
			}
		}
		appendRegion(&out, start, end, p.MinLength)
	}
	return out
}

func appendRegion(out *[]Region, start, end, minLength int) {
	if end-start <= 0 || end-start < minLength {
		return
	}
	*out = append(*out, Region{Off: start, Len: end - start})
}

// meanHalfUp returns sum/n rounded half-up. Both arguments must be
// non-negative, n positive.
func meanHalfUp(sum, n int) int {
	return (2*sum + n) / (2 * n)
}

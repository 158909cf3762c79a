package filter

import (
	"github.com/grailbio/base/errors"
)

// Sink consumes surviving, possibly modified records.
type Sink interface {
	Write(*Record) error
}

// Pipeline applies the per-record stages in fixed order: raw statistics
// capture, id filter, pattern filter (with optional split routing),
// coordinate-transform fan-out, LCS then window quality trimming,
// length filter, identifier rewrite, reverse-complement, quality
// masking, case and symbol normalization, output write, and filtered
// statistics capture. Every stage may drop a record or fragment from
// further processing but never reorders with respect to later stages.
type Pipeline struct {
	Opts *Opts

	IDs        *IDSet         // optional id allow/deny list
	Pattern    *PatternFilter // optional id pattern filter
	Split      *SinkPool      // optional split routing, keyed by the pattern's capture group
	Directives DirectiveTable // optional coordinate transforms
	Renamer    *Renamer       // optional identifier rewrite

	// RevCompWhen decides reverse-complementation per record; when nil,
	// Opts.RevComp applies to all records.
	RevCompWhen func(*Record) bool

	// Out is the default sink. In split mode it receives records whose
	// id yields no routing group, unless Opts.SplitRequireMatch drops
	// them instead.
	Out Sink

	Raw, Filtered *StatTable
}

// Process runs one record through all stages. A returned error is fatal
// for the run; per-record soft-filter drops are not errors.
func (p *Pipeline) Process(rec *Record) error {
	if p.Opts.Strict && rec.Qual != nil && len(rec.Qual) != len(rec.Seq) {
		return errors.E("malformed record", rec.ID,
			errors.New("sequence/quality length mismatch"))
	}
	p.Raw.Add(rec.Seq)
	if p.IDs != nil && !p.IDs.Keep(rec.ID) {
		return nil
	}
	sink := p.Out
	if p.Pattern != nil {
		if p.Split != nil {
			group, ok := p.Pattern.Group(rec.ID)
			if !ok {
				if p.Opts.SplitRequireMatch || p.Out == nil {
					return nil
				}
			} else {
				s, err := p.Split.Sink(group)
				if err != nil {
					return err
				}
				sink = s
			}
		} else if !p.Pattern.Match(rec.ID) {
			return nil
		}
	}
	frags := []*Record{rec}
	if dirs := p.Directives.ForRecord(rec.ID); len(dirs) > 0 {
		frags = ApplyDirectives(rec, dirs)
	}
	for _, frag := range frags {
		if err := p.emit(frag, sink); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) emit(rec *Record, sink Sink) error {
	o := p.Opts
	if o.TrimLCS != nil {
		if !trimBest(rec, FindLCSRegions(rec.Scores(o.PhredOffset), *o.TrimLCS)) {
			return nil
		}
	}
	if o.TrimWindow != nil {
		if !trimBest(rec, FindWindowRegions(rec.Scores(o.PhredOffset), *o.TrimWindow)) {
			return nil
		}
	}
	if o.MinLength > 0 && len(rec.Seq) < o.MinLength {
		return nil
	}
	if o.MaxLength > 0 && len(rec.Seq) > o.MaxLength {
		return nil
	}
	if p.Renamer != nil {
		// A failing rewrite aborts before anything is written for this
		// record.
		id, err := p.Renamer.Rename(rec.ID)
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if p.revComp(rec) {
		rec.ReverseComplement()
	}
	if o.Mask != nil {
		regions := FindLCSRegions(rec.Scores(o.PhredOffset), o.Mask.LCSParams)
		if o.Mask.Advanced {
			regions = MergeRegions(regions, len(rec.Seq), o.Mask.Merge)
		}
		rec.Mask(regions)
	}
	if o.UpperCase {
		rec.ToUpper()
	} else if o.LowerCase {
		rec.ToLower()
	}
	if o.IupacToN {
		rec.NormalizeSymbols()
	}
	if sink == nil {
		return nil
	}
	if err := sink.Write(rec); err != nil {
		return errors.E(err, "writing record", rec.ID)
	}
	p.Filtered.Add(rec.Seq)
	return nil
}

func (p *Pipeline) revComp(rec *Record) bool {
	if p.RevCompWhen != nil {
		return p.RevCompWhen(rec)
	}
	return p.Opts.RevComp
}

// trimBest cuts rec down to its longest region, earliest on ties. It
// reports false, leaving rec untouched, when no region qualifies.
func trimBest(rec *Record, regions []Region) bool {
	if len(regions) == 0 {
		return false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Len > best.Len {
			best = r
		}
	}
	rec.Trim(best.Off, best.End())
	return true
}

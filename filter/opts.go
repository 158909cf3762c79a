package filter

import "github.com/grailbio/base/errors"

// MaskOpts configure quality masking. The LCS band selects the mask
// candidate regions (positions whose score falls within it); with
// Advanced set the candidates are additionally reconciled through
// MergeRegions using Merge.
type MaskOpts struct {
	LCSParams
	Advanced bool
	Merge    MergeParams
}

// Opts is the run-scoped configuration, resolved once and passed by
// reference into each pipeline stage.
type Opts struct {
	// PhredOffset maps encoded quality characters to phred scores,
	// typically 33 or 64. 0 means unresolved, which is a configuration
	// error when masking or trimming is requested.
	PhredOffset int

	// MinLength and MaxLength bound surviving fragment lengths.
	// 0 disables the respective bound.
	MinLength, MaxLength int

	// RevComp reverse-complements every record. A Pipeline.RevCompWhen
	// predicate takes precedence when set.
	RevComp bool

	// LowerCase/UpperCase normalize the sequence case on output.
	LowerCase, UpperCase bool

	// IupacToN replaces IUPAC ambiguity codes with the unknown symbol.
	IupacToN bool

	// Strict makes per-record structural violations (unequal seq/qual
	// length) fatal instead of skipping the offending check.
	Strict bool

	// LineWidth wraps FASTA output sequence lines; 0 disables wrapping.
	LineWidth int

	// SplitRequireMatch drops records whose id yields no routing group
	// in split mode instead of writing them to the default sink.
	SplitRequireMatch bool

	// MaxOpenSinks bounds the number of simultaneously open split
	// output handles.
	MaxOpenSinks int

	// NxValues are the Nx percentages reported per statistics table.
	NxValues []float64

	// BaseContents are the base groups counted in statistics tables,
	// e.g. "GC" or "N".
	BaseContents []string

	// TrimLCS and TrimWindow, when non-nil, trim every fragment to its
	// best quality region; LCS runs first when both are set.
	TrimLCS    *LCSParams
	TrimWindow *WindowParams

	// Mask, when non-nil, masks low-quality regions instead of (or in
	// addition to) trimming.
	Mask *MaskOpts
}

// DefaultOpts sets the default values of Opts.
var DefaultOpts = Opts{
	LineWidth:    80,
	MaxOpenSinks: 100,
	NxValues:     []float64{90, 50},
}

// Validate reports contradictory or missing required parameters. It
// runs before the first record is processed.
func (o *Opts) Validate(qualityBearing bool) error {
	if o.LowerCase && o.UpperCase {
		return errors.E("both lower-case and upper-case requested")
	}
	if o.MaxLength > 0 && o.MinLength > o.MaxLength {
		return errors.E("min-length exceeds max-length")
	}
	if o.MaxOpenSinks < 1 {
		return errors.E("max open split outputs must be at least 1")
	}
	needQual := o.Mask != nil || o.TrimLCS != nil || o.TrimWindow != nil
	if needQual && !qualityBearing {
		return errors.E("quality trimming/masking requested on input without quality data")
	}
	if needQual && o.PhredOffset == 0 {
		return errors.E("quality trimming/masking requires a resolved phred offset")
	}
	for _, x := range o.NxValues {
		if x <= 0 || x > 100 {
			return errors.E("Nx percentages must be in (0,100]")
		}
	}
	return nil
}

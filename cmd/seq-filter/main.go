package main

/*
seq-filter streams FASTA/FASTQ records from one or more inputs, applies
identity, content, and quality-based transformations per record, and
writes the surviving records plus aggregate statistics.

Example 1: keep reads of at least 75bp, trimmed to their best quality
stretch.

    seq-filter -min-length 75 -trim-window 20,3,10 reads.fq.gz

Example 2: mask low-quality regions and report N50/N90 and GC content.

    seq-filter -phred-mask 0,5,10 -n 50,90 -base-content GC reads.fq

Example 3: split by library id into per-library FASTQ files.

    seq-filter -ids-pattern '\w+?(\d+)_' -split -split-template 'lib{GROUP}.fq' reads.fq
*/

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"

	"github.com/nterhoeven/SeqFilter/encoding/fasta"
	"github.com/nterhoeven/SeqFilter/encoding/fastq"
	"github.com/nterhoeven/SeqFilter/filter"
)

var (
	outPath        = flag.String("out", "-", "Output path; '-' is stdout. A .gz suffix gzips the output")
	outFormat      = flag.String("out-format", "", "Output format, 'fasta' or 'fastq'; default follows the input")
	fastaQual      = flag.Int("fasta-qual", 40, "Phred score assigned to every base when converting FASTA input to FASTQ output")
	lineWidth      = flag.Int("line-width", filter.DefaultOpts.LineWidth, "FASTA output line width; 0 disables wrapping")
	minLength      = flag.Int("min-length", 0, "Drop fragments shorter than this; 0 disables the bound")
	maxLength      = flag.Int("max-length", 0, "Drop fragments longer than this; 0 disables the bound")
	idsPath        = flag.String("ids", "", "File listing record ids to keep")
	idsExclude     = flag.Bool("ids-exclude", false, "Treat -ids as a deny list instead")
	idsPattern     = flag.String("ids-pattern", "", "Keep records whose id matches this regular expression")
	split          = flag.Bool("split", false, "Route records to per-group outputs named by the pattern's first capture group")
	splitTemplate  = flag.String("split-template", "", "Split output path template; {GROUP} is replaced by the capture group")
	splitRequire   = flag.Bool("split-require-match", false, "Drop records without a routing group instead of writing them to -out")
	maxOpenFiles   = flag.Int("max-open-files", filter.DefaultOpts.MaxOpenSinks, "Upper bound on simultaneously open split outputs")
	idsRename      = flag.String("ids-rename", "", "Rename rule: 'template' with {COUNT}, or 'pattern template' with %1..%9 backrefs")
	substrPath     = flag.String("substr", "", "File of per-id substring directives: 'id from to [from to ...]', 1-based")
	substrPerl     = flag.Bool("substr-perl-style", false, "Directives are 'id offset [length [replacement-seq [replacement-qual]]]', 0-based")
	trimLCS        = flag.String("trim-lcs", "", "Trim to the longest contiguous stretch of phred scores in [low,high]: 'low,high,min-length'")
	trimWindow     = flag.String("trim-window", "", "Trim to the best sliding-window stretch: 'soft[,hard[,size[,min-length]]]'")
	phredMask      = flag.String("phred-mask", "", "Mask regions of phred scores in [low,high]: 'low,high,min-length[,min-mask,min-unmask,edge-trim,end-ratio]'")
	phredOffset    = flag.Int("phred-offset", 0, "Quality encoding offset, 33 or 64; 0 guesses from the first reads")
	revComp        = flag.Bool("rev-comp", false, "Reverse-complement every record")
	revCompIDsPath = flag.String("rev-comp-ids", "", "Reverse-complement only the records listed in this file")
	lowerCase      = flag.Bool("lower-case", false, "Write sequences in lower case")
	upperCase      = flag.Bool("upper-case", false, "Write sequences in upper case")
	iupacToN       = flag.Bool("iupac-to-n", false, "Replace IUPAC ambiguity codes with N")
	strict         = flag.Bool("strict", false, "Fail on structurally malformed records instead of skipping the check")
	nxList         = flag.String("n", "90,50", "Comma-separated Nx percentages to report")
	baseContent    = flag.String("base-content", "", "Comma-separated base groups to count, e.g. 'GC,N'")
	statsPath      = flag.String("stats", "", "Statistics TSV path; default stderr")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [input ...]\n\nInputs may be FASTA or FASTQ, optionally gzipped; '-' or no input reads stdin.\nOptions:\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	ctx := vcontext.Background()

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	opts, err := parseOpts()
	if err != nil {
		log.Fatalf("seq-filter: %v", err)
	}
	if err := run(ctx, opts, inputs); err != nil {
		log.Fatalf("seq-filter: %v", err)
	}
}

func parseOpts() (*filter.Opts, error) {
	opts := filter.DefaultOpts
	opts.PhredOffset = *phredOffset
	opts.MinLength = *minLength
	opts.MaxLength = *maxLength
	opts.RevComp = *revComp
	opts.LowerCase = *lowerCase
	opts.UpperCase = *upperCase
	opts.IupacToN = *iupacToN
	opts.Strict = *strict
	opts.LineWidth = *lineWidth
	opts.SplitRequireMatch = *splitRequire
	opts.MaxOpenSinks = *maxOpenFiles

	if *nxList != "" {
		opts.NxValues = nil
		for _, f := range strings.Split(*nxList, ",") {
			x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, errors.E("bad -n value", f)
			}
			opts.NxValues = append(opts.NxValues, x)
		}
	}
	if *baseContent != "" {
		for _, g := range strings.Split(*baseContent, ",") {
			if g = strings.TrimSpace(g); g != "" {
				opts.BaseContents = append(opts.BaseContents, g)
			}
		}
	}
	if *trimLCS != "" {
		v, err := parseInts(*trimLCS, 3, 3)
		if err != nil {
			return nil, errors.E(err, "bad -trim-lcs")
		}
		opts.TrimLCS = &filter.LCSParams{Low: v[0], High: v[1], MinLength: v[2]}
	}
	if *trimWindow != "" {
		v, err := parseInts(*trimWindow, 1, 4)
		if err != nil {
			return nil, errors.E(err, "bad -trim-window")
		}
		p := filter.WindowParams{Soft: v[0], Size: 10, MinLength: 10}
		if len(v) > 1 {
			p.Hard = v[1]
		}
		if len(v) > 2 {
			p.Size = v[2]
		}
		if len(v) > 3 {
			p.MinLength = v[3]
		}
		opts.TrimWindow = &p
	}
	if *phredMask != "" {
		fields := strings.Split(*phredMask, ",")
		if len(fields) != 3 && len(fields) != 7 {
			return nil, errors.E("bad -phred-mask: want 3 or 7 fields")
		}
		v, err := parseInts(strings.Join(fields[:min(len(fields), 6)], ","), 3, 6)
		if err != nil {
			return nil, errors.E(err, "bad -phred-mask")
		}
		m := filter.MaskOpts{LCSParams: filter.LCSParams{Low: v[0], High: v[1], MinLength: v[2]}}
		if len(fields) == 7 {
			ratio, err := strconv.ParseFloat(fields[6], 64)
			if err != nil {
				return nil, errors.E("bad -phred-mask end-ratio", fields[6])
			}
			m.Advanced = true
			m.Merge = filter.MergeParams{
				MinMaskLen:   v[3],
				MinUnmaskLen: v[4],
				EdgeTrim:     v[5],
				EndRatio:     ratio,
			}
		}
		opts.Mask = &m
	}
	return &opts, nil
}

func parseInts(s string, minN, maxN int) ([]int, error) {
	fields := strings.Split(s, ",")
	if len(fields) < minN || len(fields) > maxN {
		return nil, errors.E("want", minN, "to", maxN, "comma-separated integers, got", len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.E("bad integer", f)
		}
		out[i] = v
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func run(ctx context.Context, opts *filter.Opts, inputs []string) (err error) {
	pipe := &filter.Pipeline{Opts: opts}
	if *idsPath != "" {
		if pipe.IDs, err = loadIDSet(ctx, *idsPath, *idsExclude); err != nil {
			return err
		}
	}
	if *idsPattern != "" {
		if pipe.Pattern, err = filter.NewPatternFilter(*idsPattern); err != nil {
			return err
		}
	}
	if *split && (pipe.Pattern == nil || pipe.Pattern.NumGroups() == 0) {
		return errors.E("-split requires -ids-pattern with a capture group")
	}
	if *split && !strings.Contains(*splitTemplate, "{GROUP}") {
		return errors.E("-split requires -split-template containing {GROUP}")
	}
	format, err := resolveFormats(ctx, inputs)
	if err != nil {
		return err
	}
	if *substrPath != "" {
		in, closeIn, err := openInput(ctx, *substrPath)
		if err != nil {
			return err
		}
		pipe.Directives, err = filter.LoadDirectives(in, *substrPerl, format == "fastq")
		if e := closeIn(); err == nil {
			err = e
		}
		if err != nil {
			return err
		}
	}
	if *idsRename != "" {
		if pipe.Renamer, err = filter.NewRenamer(*idsRename); err != nil {
			return err
		}
	}
	if *revCompIDsPath != "" {
		ids, err := loadIDSet(ctx, *revCompIDsPath, false)
		if err != nil {
			return err
		}
		pipe.RevCompWhen = func(r *filter.Record) bool { return ids.Keep(r.ID) }
	}

	outFmt := format
	switch *outFormat {
	case "":
	case "fasta", "fastq":
		outFmt = *outFormat
	default:
		return errors.E("bad -out-format", *outFormat)
	}
	if outFmt == "fastq" && format == "fasta" && opts.PhredOffset == 0 {
		opts.PhredOffset = 33
	}
	if opts.PhredOffset == 0 && needsQuality(opts) {
		if opts.PhredOffset, err = guessOffset(ctx, inputs[0], format); err != nil {
			return err
		}
		log.Printf("Guessed phred offset %d from %s", opts.PhredOffset, inputs[0])
	}
	if err := opts.Validate(format == "fastq"); err != nil {
		return err
	}

	out, closeOut, err := createOutput(ctx, *outPath)
	if err != nil {
		return err
	}
	pipe.Out = newSink(out, outFmt, opts)
	if *split {
		pipe.Split = filter.NewSinkPool(opts.MaxOpenSinks, splitFactory(outFmt, opts))
		defer func() {
			if e := pipe.Split.Close(); e != nil && err == nil {
				err = e
			}
		}()
	}

	totalRaw := filter.NewStatTable(opts.BaseContents)
	totalFiltered := filter.NewStatTable(opts.BaseContents)
	report := newReporter(ctx, opts)
	for _, input := range inputs {
		raw := filter.NewStatTable(opts.BaseContents)
		filtered := filter.NewStatTable(opts.BaseContents)
		pipe.Raw, pipe.Filtered = raw, filtered
		if err := processSource(ctx, pipe, input, format); err != nil {
			closeOut() // flush what was already written
			return err
		}
		report.add(input, raw, filtered)
		totalRaw.Merge(raw)
		totalFiltered.Merge(filtered)
	}
	if len(inputs) > 1 {
		report.add("total", totalRaw, totalFiltered)
	}
	if err := closeOut(); err != nil {
		return err
	}
	return report.close()
}

func needsQuality(opts *filter.Opts) bool {
	return opts.Mask != nil || opts.TrimLCS != nil || opts.TrimWindow != nil
}

func loadIDSet(ctx context.Context, path string, exclude bool) (*filter.IDSet, error) {
	in, closeIn, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	ids, err := filter.LoadIDSet(in, exclude)
	if e := closeIn(); err == nil {
		err = e
	}
	return ids, err
}

// resolveFormats resolves the record format from the first source and
// verifies every further source agrees, before anything is written.
func resolveFormats(ctx context.Context, inputs []string) (string, error) {
	format, err := resolveFormat(ctx, inputs[0])
	if err != nil {
		return "", err
	}
	for _, input := range inputs[1:] {
		f, err := resolveFormat(ctx, input)
		if err != nil {
			return "", err
		}
		if f != format {
			return "", errors.E(input, "is", f, "but", inputs[0], "is", format)
		}
	}
	return format, nil
}

// resolveFormat peeks at the first byte of the (decompressed) input:
// '>' is FASTA, '@' is FASTQ.
func resolveFormat(ctx context.Context, path string) (string, error) {
	var first []byte
	if path == "-" {
		// The shared stdin reader keeps the peeked byte for the record
		// scanner.
		b, err := stdin.Peek(1)
		if err != nil {
			return "", errors.E(err, "reading stdin")
		}
		first = b
	} else {
		in, closeIn, err := openInput(ctx, path)
		if err != nil {
			return "", err
		}
		defer closeIn() // nolint: errcheck
		var buf [1]byte
		if _, err := io.ReadFull(in, buf[:]); err != nil {
			return "", errors.E(err, "reading", path)
		}
		first = buf[:]
	}
	switch first[0] {
	case '>':
		return "fasta", nil
	case '@':
		return "fastq", nil
	}
	return "", errors.E(path, "is neither FASTA nor FASTQ")
}

func guessOffset(ctx context.Context, path, format string) (int, error) {
	if format != "fastq" {
		return 0, errors.E("quality operations require FASTQ input or -phred-offset")
	}
	if path == "-" {
		return 0, errors.E("cannot guess the phred offset from stdin, use -phred-offset")
	}
	in, closeIn, err := openInput(ctx, path)
	if err != nil {
		return 0, err
	}
	defer closeIn() // nolint: errcheck
	return fastq.GuessOffset(in, 1000)
}

var stdin = bufio.NewReader(os.Stdin)

func openInput(ctx context.Context, path string) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "opening", path)
	}
	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, f.Name()); u != nil {
		r = u
	}
	return r, func() error { return f.Close(ctx) }, nil
}

func createOutput(ctx context.Context, path string) (io.Writer, func() error, error) {
	if path == "-" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "creating", path)
	}
	w := bufio.NewWriter(f.Writer(ctx))
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		return gz, func() error {
			err := errors.Once{}
			err.Set(gz.Close())
			err.Set(w.Flush())
			err.Set(f.Close(ctx))
			return err.Err()
		}, nil
	}
	return w, func() error {
		err := errors.Once{}
		err.Set(w.Flush())
		err.Set(f.Close(ctx))
		return err.Err()
	}, nil
}

func processSource(ctx context.Context, pipe *filter.Pipeline, path, format string) error {
	in, closeIn, err := openInput(ctx, path)
	if err != nil {
		return err
	}
	defer closeIn() // nolint: errcheck
	if format == "fastq" {
		sc := fastq.NewScanner(in)
		var read fastq.Read
		for sc.Scan(&read) {
			rec := &filter.Record{
				ID:   read.ID,
				Desc: read.Desc,
				Seq:  []byte(read.Seq),
				Qual: []byte(read.Qual),
			}
			if err := pipe.Process(rec); err != nil {
				return errors.E(err, path, "line", sc.Line())
			}
		}
		if err := sc.Err(); err != nil {
			return errors.E(err, path, "line", sc.Line())
		}
		return nil
	}
	sc := fasta.NewScanner(in)
	var rec fasta.Record
	for sc.Scan(&rec) {
		if err := pipe.Process(&filter.Record{ID: rec.ID, Desc: rec.Desc, Seq: []byte(rec.Seq)}); err != nil {
			return errors.E(err, path, "line", sc.Line())
		}
	}
	if err := sc.Err(); err != nil {
		return errors.E(err, path)
	}
	return nil
}

// fastaSink writes records as FASTA, dropping any quality.
type fastaSink struct {
	w *fasta.Writer
}

func (s fastaSink) Write(r *filter.Record) error {
	return s.w.Write(&fasta.Record{ID: r.ID, Desc: r.Desc, Seq: gunsafe.BytesToString(r.Seq)})
}

// fastqSink writes records as FASTQ, synthesizing a constant quality
// for quality-free records.
type fastqSink struct {
	w      *fastq.Writer
	offset int
	dummy  int
}

func (s fastqSink) Write(r *filter.Record) error {
	qual := r.Qual
	if qual == nil {
		qual = make([]byte, len(r.Seq))
		for i := range qual {
			qual[i] = byte(s.offset + s.dummy)
		}
	}
	return s.w.Write(&fastq.Read{
		ID:   r.ID,
		Desc: r.Desc,
		Seq:  gunsafe.BytesToString(r.Seq),
		Qual: gunsafe.BytesToString(qual),
	})
}

func newSink(w io.Writer, format string, opts *filter.Opts) filter.Sink {
	if format == "fastq" {
		return fastqSink{w: fastq.NewWriter(w), offset: opts.PhredOffset, dummy: *fastaQual}
	}
	return fastaSink{w: fasta.NewWriter(w, opts.LineWidth)}
}

// splitFactory opens split outputs through the plain os layer: reopened
// groups need append mode, which the file API does not expose.
func splitFactory(format string, opts *filter.Opts) filter.SinkFactory {
	return func(group string, reopen bool) (filter.Sink, func() error, error) {
		path := strings.Replace(*splitTemplate, "{GROUP}", group, -1)
		mode := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if reopen {
			mode = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(path, mode, 0666)
		if err != nil {
			return nil, nil, errors.E(err, "opening split output", path)
		}
		bw := bufio.NewWriter(f)
		var w io.Writer = bw
		closeFn := func() error {
			err := errors.Once{}
			err.Set(bw.Flush())
			err.Set(f.Close())
			return err.Err()
		}
		if strings.HasSuffix(path, ".gz") {
			// Each open appends a fresh gzip member; concatenated
			// members decompress as one stream.
			gz := gzip.NewWriter(bw)
			w = gz
			closeFn = func() error {
				err := errors.Once{}
				err.Set(gz.Close())
				err.Set(bw.Flush())
				err.Set(f.Close())
				return err.Err()
			}
		}
		return newSink(w, format, opts), closeFn, nil
	}
}

// reporter accumulates the per-source statistics rows and writes the
// TSV report at the end of the run.
type reporter struct {
	opts    *filter.Opts
	w       *tsv.Writer
	closeFn func() error
	err     error
}

func newReporter(ctx context.Context, opts *filter.Opts) *reporter {
	r := &reporter{opts: opts, closeFn: func() error { return nil }}
	if *statsPath == "" {
		r.w = tsv.NewWriter(os.Stderr)
	} else {
		f, err := file.Create(ctx, *statsPath)
		if err != nil {
			r.err = errors.E(err, "creating", *statsPath)
			return r
		}
		r.w = tsv.NewWriter(f.Writer(ctx))
		r.closeFn = func() error { return f.Close(ctx) }
	}
	r.w.WriteString("#source")
	r.w.WriteString("set")
	r.w.WriteString("records")
	r.w.WriteString("bases")
	for _, x := range opts.NxValues {
		r.w.WriteString(fmt.Sprintf("N%g", x))
	}
	for _, g := range opts.BaseContents {
		r.w.WriteString(g)
	}
	r.setErr(r.w.EndLine())
	return r
}

func (r *reporter) add(source string, raw, filtered *filter.StatTable) {
	r.row(source, "raw", raw)
	r.row(source, "filtered", filtered)
}

func (r *reporter) row(source, set string, t *filter.StatTable) {
	if r.err != nil {
		return
	}
	r.w.WriteString(source)
	r.w.WriteString(set)
	r.w.WriteInt64(int64(t.Records))
	r.w.WriteInt64(t.Bases)
	for _, x := range r.opts.NxValues {
		r.w.WriteInt64(int64(t.Nx(x)))
	}
	for _, g := range r.opts.BaseContents {
		r.w.WriteInt64(t.Content[g])
	}
	r.setErr(r.w.EndLine())
}

func (r *reporter) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reporter) close() error {
	if r.w != nil {
		r.setErr(r.w.Flush())
	}
	r.setErr(r.closeFn())
	return r.err
}

// Command ddrescue copies a possibly-damaged input to an output while
// skipping and retrying around bad regions, persisting progress to a
// mapfile so an interrupted run can resume exactly where it left off
// (spec §1, §6.2).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/config"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/fill"
	"github.com/maghoff/ddrescue-dvdcss/internal/generate"
	"github.com/maghoff/ddrescue-dvdcss/internal/interrupt"
	"github.com/maghoff/ddrescue-dvdcss/internal/ioadapter"
	"github.com/maghoff/ddrescue-dvdcss/internal/logging"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapbook"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
	"github.com/maghoff/ddrescue-dvdcss/internal/numparse"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescue"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// opts mirrors spec §6.2's flag surface. Sizes and intervals arrive as
// strings and are resolved with internal/numparse once hardbs is known.
type opts struct {
	hardBS    string
	cluster   int64
	skip      string
	inputPos  string
	outputPos string
	maxSize   string
	reverse   bool
	uniDir    bool
	noTrim    bool
	noScrape  bool
	retrim    bool
	tryAgain  bool
	cpass     string
	retries   int
	minRate   string
	maxRate   string
	maxErrRate        string
	maxErrors         int
	newErrOnly        bool
	exitOnErr         bool
	timeout           string
	verify            bool
	reopen            bool
	previewN          int
	ignoreWriteErrors bool
	synchronous       bool
	domainMapfile     string

	fillTypes string
	generate  bool

	logRates string
	logReads string
	verbose  bool
	quiet    bool
}

func main() {
	o := &opts{}
	root := newRootCmd(o)
	if err := root.Execute(); err != nil {
		status := rescueerr.StatusFor(err)
		fmt.Fprintln(os.Stderr, "ddrescue:", err)
		os.Exit(int(status))
	}
}

func newRootCmd(o *opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddrescue infile outfile [mapfile]",
		Short: "Copy data from one file or block device to another, skipping bad regions",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.hardBS, "sector-size", "b", "", "hardware sector size (default from config)")
	f.Int64VarP(&o.cluster, "cluster-size", "c", 0, "sectors per copying chunk (default from config)")
	f.StringVarP(&o.skip, "skip-size", "K", "", "initial skip distance after a read error, optionally i,max")
	f.StringVarP(&o.inputPos, "input-position", "i", "", "starting offset in the input file")
	f.StringVarP(&o.outputPos, "output-position", "o", "", "starting offset in the output file")
	f.StringVarP(&o.maxSize, "size", "s", "", "maximum number of bytes to process")
	f.BoolVarP(&o.reverse, "reverse", "R", false, "start from the end of the domain")
	f.BoolVarP(&o.uniDir, "unidirectional", "u", false, "never change copying direction")
	f.BoolVarP(&o.noTrim, "no-trim", "N", false, "skip the trimming phase")
	f.BoolVarP(&o.noScrape, "no-scrape", "n", false, "skip the scraping phase")
	f.BoolVarP(&o.retrim, "retrim", "M", false, "mark all bad-sector blocks as non-trimmed")
	f.BoolVarP(&o.tryAgain, "try-again", "A", false, "mark non-trimmed, non-scraped blocks as non-tried")
	f.StringVar(&o.cpass, "cpass", "1,2,3,4", "comma-separated list of copying passes to run")
	f.IntVarP(&o.retries, "retries", "r", 0, "number of retry passes over bad sectors; -1 = infinite")
	f.StringVarP(&o.minRate, "min-read-rate", "a", "", "minimum read rate before treating the device as stalled")
	f.StringVarP(&o.maxRate, "max-read-rate", "Z", "", "maximum read rate to sustain")
	f.StringVarP(&o.maxErrRate, "max-error-rate", "E", "", "maximum errors per second before aborting")
	f.IntVarP(&o.maxErrors, "max-errors", "e", 0, "maximum number of errors before aborting")
	f.BoolVar(&o.newErrOnly, "new-errors-only", false, "count errors of this run toward max-errors (max-errors counts only this run's errors with or without this flag)")
	f.BoolVarP(&o.exitOnErr, "abort-on-error", "X", false, "abort on the first read error")
	f.StringVar(&o.timeout, "timeout", "", "maximum time since the last successful read")
	f.BoolVarP(&o.verify, "verify-on-error", "I", false, "re-verify the previous good sector after an error")
	f.BoolVarP(&o.reopen, "reopen-on-error", "O", false, "reopen the input file after every read error")
	f.IntVarP(&o.previewN, "preview-lines", "J", 0, "number of sector-rows to keep in the live preview")
	f.BoolVarP(&o.ignoreWriteErrors, "ignore-write-errors", "w", false, "keep going after a write error")
	f.BoolVar(&o.synchronous, "synchronous", false, "sync the output after every write")
	f.StringVarP(&o.domainMapfile, "domain-mapfile", "m", "", "restrict the domain to the finished blocks of another mapfile")
	f.StringVarP(&o.fillTypes, "fill-mode", "F", "", "fill mode: overwrite Sblocks whose status is in types")
	f.BoolVarP(&o.generate, "generate-mode", "G", false, "generate mode: reconstruct a mapfile from input and output")
	f.StringVar(&o.logRates, "log-rates", "", "append a rate-measurement log to this file")
	f.StringVar(&o.logReads, "log-reads", "", "append a per-read log to this file")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose diagnostics")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "quiet diagnostics")
	return cmd
}

func run(o *opts, args []string) error {
	defaults, err := config.Load()
	if err != nil {
		return err
	}

	hardbs := int64(defaults.HardBS)
	if o.hardBS != "" {
		hardbs, err = numparse.ParseSize(o.hardBS, 512)
		if err != nil {
			return rescueerr.NewArgumentError("--sector-size: %v", err)
		}
	}
	cluster := int64(defaults.Cluster)
	if o.cluster > 0 {
		cluster = o.cluster
	}

	iname, oname := args[0], args[1]
	mapname := ""
	if len(args) == 3 {
		mapname = args[2]
	}

	input, err := ioadapter.OpenFileDevice(iname, false)
	if err != nil {
		return err
	}
	defer input.Close()

	write := !o.generate
	output, err := ioadapter.OpenFileDevice(oname, write)
	if err != nil {
		return err
	}
	defer output.Close()

	isize, err := input.Size()
	if err != nil {
		return err
	}

	ipos, err := optSize(o.inputPos, hardbs, 0)
	if err != nil {
		return rescueerr.NewArgumentError("--input-position: %v", err)
	}
	maxSize, err := optSize(o.maxSize, hardbs, 0)
	if err != nil {
		return rescueerr.NewArgumentError("--size: %v", err)
	}
	opos, err := optSize(o.outputPos, hardbs, ipos)
	if err != nil {
		return rescueerr.NewArgumentError("--output-position: %v", err)
	}

	dom := domain.New(block.Addr(ipos), block.Addr(maxSize)).Bound(block.Addr(isize))
	if o.domainMapfile != "" {
		st, ok, err := mapfile.Load(o.domainMapfile)
		if err != nil {
			return err
		}
		if ok {
			dom = domain.RestrictToFinished(dom, st.List)
		}
	}
	if dom.Empty() {
		return rescueerr.NewArgumentError("domain is empty")
	}

	clk := clock.NewSystem()

	var mb *mapbook.Mapbook
	if mapname != "" {
		st, ok, err := mapfile.Load(mapname)
		if err != nil {
			return err
		}
		if ok {
			mb = mapbook.FromState(mapname, st, clk)
		}
	}
	startPhase := mapfile.PhaseCopying
	switch {
	case o.fillTypes != "":
		startPhase = mapfile.PhaseFilling
	case o.generate:
		startPhase = mapfile.PhaseGenerating
	}
	if mb == nil {
		if mapname == "" {
			return rescueerr.NewArgumentError("mapfile required")
		}
		if o.fillTypes != "" {
			return rescueerr.NewArgumentError("mapfile required in fill mode")
		}
		mb = mapbook.New(mapname, dom.Span().Pos, dom.Span().Size, startPhase, clk)
	}
	mb.SetOffset(opos - ipos)

	logs, closeLogs, err := logging.NewLoggers(o.verbose, o.quiet, o.logRates, o.logReads)
	if err != nil {
		return err
	}
	defer closeLogs()

	flag := interrupt.New()
	stop := flag.Watch(os.Interrupt)
	defer stop()

	switch {
	case o.fillTypes != "":
		return runFill(o, mb, input, output, dom, hardbs, cluster, logs, clk, flag)
	case o.generate:
		return runGenerate(mb, input, output, dom, cluster, hardbs, flag)
	default:
		return runRescue(o, mb, input, output, dom, hardbs, cluster, logs, clk, flag)
	}
}

func runRescue(o *opts, mb *mapbook.Mapbook, input *ioadapter.FileDevice, output *ioadapter.FileDevice, dom domain.Domain, hardbs, cluster int64, logs *logging.Loggers, clk clock.Clock, flag *interrupt.Flag) error {
	cfg := rescue.Config{
		HardBS:            hardbs,
		Cluster:           cluster,
		Reverse:           o.reverse,
		Unidirectional:    o.uniDir,
		NoTrim:            o.noTrim,
		NoScrape:          o.noScrape,
		Retrim:            o.retrim,
		TryAgain:          o.tryAgain,
		MaxRetries:        o.retries,
		MaxErrors:         o.maxErrors,
		NewErrorsOnly:     o.newErrOnly,
		ExitOnError:       o.exitOnErr,
		VerifyOnError:     o.verify,
		ReopenOnError:     o.reopen,
		PreviewLines:      o.previewN,
		IgnoreWriteErrors: o.ignoreWriteErrors,
		Synchronous:       o.synchronous,
	}
	cfg.CPassBitset = parseCPass(o.cpass)

	if o.skip != "" {
		skip, maxSkip, err := parseSkip(o.skip, hardbs)
		if err != nil {
			return rescueerr.NewArgumentError("--skip-size: %v", err)
		}
		cfg.SkipBS, cfg.MaxSkipBS = skip, maxSkip
	}
	var err error
	if cfg.MinReadRate, err = optRate(o.minRate); err != nil {
		return rescueerr.NewArgumentError("--min-read-rate: %v", err)
	}
	if cfg.MaxReadRate, err = optRate(o.maxRate); err != nil {
		return rescueerr.NewArgumentError("--max-read-rate: %v", err)
	}
	if cfg.MaxErrorRate, err = optRate(o.maxErrRate); err != nil {
		return rescueerr.NewArgumentError("--max-error-rate: %v", err)
	}
	if o.timeout != "" {
		if cfg.Timeout, err = numparse.ParseInterval(o.timeout); err != nil {
			return rescueerr.NewArgumentError("--timeout: %v", err)
		}
	}

	b := rescue.New(mb, input, output, dom, cfg, logs, clk, flag)
	if err := b.Run(); err != nil {
		reraiseIfInterrupted(flag, err)
		return err
	}
	reraiseIfInterrupted(flag, nil)
	return nil
}

func runFill(o *opts, mb *mapbook.Mapbook, input, output *ioadapter.FileDevice, dom domain.Domain, hardbs, cluster int64, logs *logging.Loggers, clk clock.Clock, flag *interrupt.Flag) error {
	cfg := fill.Config{
		Selector:          o.fillTypes,
		Cluster:           cluster,
		HardBS:            hardbs,
		IgnoreWriteErrors: o.ignoreWriteErrors,
		Synchronous:       o.synchronous,
	}
	b, err := fill.New(mb, output, dom, cfg, logs, clk, flag)
	if err != nil {
		return err
	}
	if err := b.ReadPattern(input); err != nil {
		return err
	}
	if err := b.Run(); err != nil {
		reraiseIfInterrupted(flag, err)
		return err
	}
	reraiseIfInterrupted(flag, nil)
	return nil
}

func runGenerate(mb *mapbook.Mapbook, input, output *ioadapter.FileDevice, dom domain.Domain, cluster, hardbs int64, flag *interrupt.Flag) error {
	cfg := generate.Config{Cluster: cluster, HardBS: hardbs}
	b, err := generate.New(mb, input, output, dom, cfg, flag)
	if err != nil {
		return err
	}
	if err := b.Run(); err != nil {
		reraiseIfInterrupted(flag, err)
		return err
	}
	reraiseIfInterrupted(flag, nil)
	return nil
}

// reraiseIfInterrupted re-sends the captured signal to this process with
// its default disposition restored, so the shell observes the
// 128+signum exit status spec §6.4 requires, regardless of whether err is
// the sentinel ErrInterrupted or nil (clean exit mid-interrupt).
func reraiseIfInterrupted(flag *interrupt.Flag, err error) {
	if _, ok := flag.Raised(); ok {
		flag.Reraise()
	}
}

func optSize(s string, hardbs, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return numparse.ParseSize(s, hardbs)
}

func optRate(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := numparse.ParseSize(s, 512)
	return float64(n), err
}

func parseSkip(s string, hardbs int64) (skip, max int64, err error) {
	parts := splitComma(s)
	skip, err = numparse.ParseSize(parts[0], hardbs)
	if err != nil {
		return 0, 0, err
	}
	if len(parts) > 1 {
		max, err = numparse.ParseSize(parts[1], hardbs)
		if err != nil {
			return 0, 0, err
		}
	}
	return skip, max, nil
}

func parseCPass(s string) uint8 {
	var bitset uint8
	for _, p := range splitComma(s) {
		switch p {
		case "1":
			bitset |= 1 << 0
		case "2":
			bitset |= 1 << 1
		case "3":
			bitset |= 1 << 2
		case "4":
			bitset |= 1 << 3
		}
	}
	if bitset == 0 {
		bitset = 0x0F
	}
	return bitset
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

// Command ddrescuelog inspects and transforms mapfiles without touching
// any device, implementing the map-operations tool (spec §4.6, §6.3).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapops"
	"github.com/maghoff/ddrescue-dvdcss/internal/numparse"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

type opts struct {
	hardBS string

	changeTypes  string
	createTypes  string
	deleteIfDone bool
	doneStatus   bool
	listTypes    string
	invert       bool
	compareWith  string
	showStatus   bool
	xorWith      string
	andWith      string
	orWith       string

	inputPos      string
	outputPos     string
	maxSize       string
	domainMapfile string
	force         bool
	quiet         bool
	verbose       bool
}

func main() {
	o := &opts{}
	root := newRootCmd(o)
	if err := root.Execute(); err != nil {
		status := rescueerr.StatusFor(err)
		fmt.Fprintln(os.Stderr, "ddrescuelog:", err)
		os.Exit(int(status))
	}
}

func newRootCmd(o *opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddrescuelog [options] mapfile",
		Short: "Inspect and transform ddrescue mapfiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.hardBS, "sector-size", "b", "", "hardware sector size")
	f.StringVarP(&o.changeTypes, "change-types", "a", "", "change-types from,to")
	f.StringVarP(&o.createTypes, "create", "c", "", "create: badchar+goodchar, e.g. '-+'; block numbers read from stdin")
	f.BoolVarP(&o.deleteIfDone, "delete-if-done", "d", false, "delete the mapfile if every Sblock in the domain is finished")
	f.BoolVarP(&o.doneStatus, "done-status", "D", false, "exit 0 iff every Sblock in the domain is finished")
	f.StringVarP(&o.listTypes, "list-blocks", "l", "", "print block numbers of every Sblock whose status is in types")
	f.BoolVarP(&o.invert, "invert", "n", false, "invert: change-types ?*/-+ -> ++++-")
	f.StringVarP(&o.compareWith, "compare", "p", "", "compare against another mapfile")
	f.BoolVarP(&o.showStatus, "show-status", "t", false, "print a summary line per status plus errsize")
	f.StringVarP(&o.xorWith, "xor", "x", "", "xor against another mapfile")
	f.StringVarP(&o.andWith, "and", "y", "", "and against another mapfile")
	f.StringVarP(&o.orWith, "or", "z", "", "or against another mapfile")
	f.StringVarP(&o.inputPos, "input-position", "i", "", "start of the domain")
	f.StringVarP(&o.outputPos, "output-position", "o", "", "output offset (shifts --list-blocks numbering by output-position minus input-position)")
	f.StringVarP(&o.maxSize, "size", "s", "", "size of the domain")
	f.StringVarP(&o.domainMapfile, "domain-mapfile", "m", "", "restrict the domain to the finished blocks of another mapfile")
	f.BoolVarP(&o.force, "force", "f", false, "overwrite an existing output mapfile without prompting")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "suppress non-error output")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	return cmd
}

func run(o *opts, mapname string) error {
	if err := checkExactlyOneOp(o); err != nil {
		return err
	}

	hardbs := int64(512)
	if o.hardBS != "" {
		var err error
		hardbs, err = numparse.ParseSize(o.hardBS, 512)
		if err != nil {
			return rescueerr.NewArgumentError("--sector-size: %v", err)
		}
	}

	if o.createTypes != "" {
		return runCreate(o, mapname, hardbs)
	}

	st, ok, err := mapfile.Load(mapname)
	if err != nil {
		return err
	}
	if !ok {
		return rescueerr.NewArgumentError("mapfile %q does not exist", mapname)
	}

	ipos, err := optSize(o.inputPos, hardbs, int64(st.List.Range().Pos))
	if err != nil {
		return rescueerr.NewArgumentError("--input-position: %v", err)
	}
	opos, err := optSize(o.outputPos, hardbs, ipos)
	if err != nil {
		return rescueerr.NewArgumentError("--output-position: %v", err)
	}
	maxSize, err := optSize(o.maxSize, hardbs, 0)
	if err != nil {
		return rescueerr.NewArgumentError("--size: %v", err)
	}
	dom := domain.New(block.Addr(ipos), block.Addr(maxSize)).Bound(st.List.Range().End())
	if o.domainMapfile != "" {
		dst, ok, err := mapfile.Load(o.domainMapfile)
		if err != nil {
			return err
		}
		if ok {
			dom = domain.RestrictToFinished(dom, dst.List)
		}
	}

	switch {
	case o.changeTypes != "":
		return runChangeTypes(o, st)
	case o.deleteIfDone:
		return runDeleteIfDone(mapname, dom, st)
	case o.doneStatus:
		return runDoneStatus(dom, st)
	case o.listTypes != "":
		return runListBlocks(dom, st, hardbs, o.listTypes, block.Addr(opos-ipos))
	case o.invert:
		return runInvert(o, st)
	case o.compareWith != "":
		return runCompare(dom, st, o.compareWith)
	case o.showStatus:
		return runShowStatus(dom, st)
	case o.xorWith != "":
		return runSetOp(o, st, dom, o.xorWith, "xor")
	case o.andWith != "":
		return runSetOp(o, st, dom, o.andWith, "and")
	case o.orWith != "":
		return runSetOp(o, st, dom, o.orWith, "or")
	default:
		return rescueerr.NewArgumentError("exactly one operation must be given")
	}
}

func checkExactlyOneOp(o *opts) error {
	n := 0
	for _, set := range []bool{
		o.changeTypes != "", o.createTypes != "", o.deleteIfDone, o.doneStatus,
		o.listTypes != "", o.invert, o.compareWith != "", o.showStatus,
		o.xorWith != "", o.andWith != "", o.orWith != "",
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return rescueerr.NewArgumentError("exactly one operation must be given")
	}
	return nil
}

func runChangeTypes(o *opts, st *mapfile.State) error {
	parts := strings.SplitN(o.changeTypes, ",", 2)
	if len(parts) != 2 {
		return rescueerr.NewArgumentError("--change-types: expected from,to")
	}
	out, err := mapops.ChangeTypes(st.List, parts[0], parts[1])
	if err != nil {
		return err
	}
	st.List = out
	return printState(st)
}

func runInvert(o *opts, st *mapfile.State) error {
	out, err := mapops.Invert(st.List)
	if err != nil {
		return err
	}
	st.List = out
	return printState(st)
}

func runCreate(o *opts, mapname string, hardbs int64) error {
	if len(o.createTypes) != 2 || o.createTypes[0] == o.createTypes[1] {
		return rescueerr.NewArgumentError("--create: expected exactly two distinct status characters")
	}
	bad, ok1 := block.ParseStatus(rune(o.createTypes[0]))
	good, ok2 := block.ParseStatus(rune(o.createTypes[1]))
	if !ok1 || !ok2 {
		return rescueerr.NewArgumentError("--create: unknown status character")
	}
	if _, exists, err := mapfile.Load(mapname); err != nil {
		return err
	} else if exists && !o.force {
		return rescueerr.NewArgumentError("mapfile %q exists. Use --force to overwrite it", mapname)
	}

	maxSize, err := optSize(o.maxSize, hardbs, 0)
	if err != nil {
		return rescueerr.NewArgumentError("--size: %v", err)
	}
	ipos, err := optSize(o.inputPos, hardbs, 0)
	if err != nil {
		return rescueerr.NewArgumentError("--input-position: %v", err)
	}
	span := block.Block{Pos: block.Addr(ipos), Size: block.Addr(maxSize)}

	out, err := mapops.CreateFromBadBlocks(bufio.NewReader(os.Stdin), span, block.Addr(hardbs), bad, good)
	if err != nil {
		return err
	}
	st := &mapfile.State{List: out, CurrentStatus: mapfile.PhaseFinished}
	return mapfile.Save(mapname, st)
}

func runDeleteIfDone(mapname string, dom domain.Domain, st *mapfile.State) error {
	if !mapops.DoneStatus(dom, st.List) {
		return rescueerr.NewThresholdExceededError("rescue not finished")
	}
	if err := os.Remove(mapname); err != nil {
		return rescueerr.NewDeviceError("delete", mapname, err)
	}
	return nil
}

func runDoneStatus(dom domain.Domain, st *mapfile.State) error {
	if !mapops.DoneStatus(dom, st.List) {
		return rescueerr.NewThresholdExceededError("rescue not finished")
	}
	return nil
}

func runListBlocks(dom domain.Domain, st *mapfile.State, hardbs int64, selector string, offset block.Addr) error {
	nums, err := mapops.ListBlocks(dom, st.List, block.Addr(hardbs), selector, offset)
	if err != nil {
		return err
	}
	for _, n := range nums {
		fmt.Println(n)
	}
	return nil
}

func runCompare(dom domain.Domain, st *mapfile.State, otherPath string) error {
	other, ok, err := mapfile.Load(otherPath)
	if err != nil {
		return err
	}
	if !ok {
		return rescueerr.NewArgumentError("mapfile %q does not exist", otherPath)
	}
	if !mapops.Compare(dom, st.List, other.List) {
		return rescueerr.NewThresholdExceededError("mapfiles differ")
	}
	return nil
}

func runShowStatus(dom domain.Domain, st *mapfile.State) error {
	summaries, errsize := mapops.ShowStatus(dom, st.List)
	for _, s := range summaries {
		fmt.Printf("%c  %12d bytes  %4d areas  %6.2f%%\n", s.Status, s.Size, s.Areas, s.Percent)
	}
	fmt.Printf("errsize: %d bytes\n", errsize)
	return nil
}

func runSetOp(o *opts, st *mapfile.State, dom domain.Domain, otherPath, op string) error {
	other, ok, err := mapfile.Load(otherPath)
	if err != nil {
		return err
	}
	if !ok {
		return rescueerr.NewArgumentError("mapfile %q does not exist", otherPath)
	}
	var out block.List
	switch op {
	case "xor":
		out, err = mapops.Xor(dom, st.List, other.List)
	case "and":
		out = mapops.And(dom, st.List, other.List)
	case "or":
		out = mapops.Or(dom, st.List, other.List)
	}
	if err != nil {
		return err
	}
	st.List = out
	return printState(st)
}

func printState(st *mapfile.State) error {
	s, err := mapfile.Canonical(st)
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}

func optSize(s string, hardbs, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return numparse.ParseSize(s, hardbs)
}

package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/pkg/pysyntax"
	"github.com/l3aro/go-forward-split/pkg/split"
)

var splitCmd = &cobra.Command{
	Use:   "split <file> <target>",
	Short: "Split a method body into callable segments",
	Long: `Cuts a method body before each given statement index and prints one
function per segment. Every segment takes the receiver and the locals it
needs from earlier segments, and returns the locals later segments need.

Cut points are 0-based indices into the top-level body statements, with the
docstring excluded. Use --around-loop to isolate the first top-level for
loop, or --interactive to pick cut points from a list.`,
	Args: targetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newApp(cmd)
		if err != nil {
			return err
		}

		snippet, _ := cmd.Flags().GetBool("snippet")
		res, err := rt.resolve(args[0], targetName(args), snippet)
		if err != nil {
			return err
		}

		boundaries, err := chooseBoundaries(cmd, res)
		if err != nil {
			return err
		}

		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = string(rt.cfg.Format)
		}
		format, err := split.ParseFormat(formatName)
		if err != nil {
			return err
		}

		result, err := rt.splitter.Split(res.target, res.module.Namespace(), boundaries)
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			return split.WriteFile(out, result, format)
		}
		return split.Encode(os.Stdout, result, format)
	},
}

func chooseBoundaries(cmd *cobra.Command, res *resolved) ([]int, error) {
	at, _ := cmd.Flags().GetIntSlice("at")
	aroundLoop, _ := cmd.Flags().GetBool("around-loop")
	interactive, _ := cmd.Flags().GetBool("interactive")

	chosen := 0
	for _, set := range []bool{len(at) > 0, aroundLoop, interactive} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, errors.New("exactly one of --at, --around-loop or --interactive is required")
	}

	switch {
	case aroundLoop:
		if res.fn == nil {
			return nil, errors.New("--around-loop needs a function target")
		}
		return split.AroundLoop(res.fn)
	case interactive:
		return pickBoundaries(res.target.Body)
	}
	return at, nil
}

func pickBoundaries(body []pysyntax.Node) ([]int, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: body has %d statements", split.ErrInvalidBoundary, len(body))
	}

	options := make([]huh.Option[int], 0, len(body)-1)
	for i := 1; i < len(body); i++ {
		label := fmt.Sprintf("%2d  line %-4d %s", i, body[i].Line(), firstLine(body[i].Text()))
		options = append(options, huh.NewOption(label, i))
	}

	var selected []int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Cut points").
				Description("A new segment starts at each selected statement").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("interactive prompt failed: %w", err)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no cut point selected", split.ErrInvalidBoundary)
	}

	// Options are listed in order, but selection order follows the user.
	sort.Ints(selected)
	return selected, nil
}

func firstLine(text string) string {
	line, _, more := strings.Cut(text, "\n")
	if more {
		line += " ..."
	}
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}

func init() {
	addTargetFlags(splitCmd)
	splitCmd.Flags().IntSlice("at", nil, "Statement indices to cut before")
	splitCmd.Flags().Bool("around-loop", false, "Cut around the first top-level for loop")
	splitCmd.Flags().BoolP("interactive", "i", false, "Choose cut points interactively")
	splitCmd.Flags().StringP("format", "f", "", "Output format: python, json, yaml or msgpack")
	splitCmd.Flags().StringP("output", "o", "", "Write output to a file instead of stdout")
	splitCmd.Flags().Bool("strict", false, "Fail on cycles and unresolved locals")
	RootCmd.AddCommand(splitCmd)
}

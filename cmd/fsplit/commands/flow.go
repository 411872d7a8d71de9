package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/pkg/split"
)

var flowCmd = &cobra.Command{
	Use:   "flow <file> <target>",
	Short: "Show the data flow summary of a method body",
	Long: `Analyzes a method body and reports the names it writes, the names it
reads and the names it reads before writing. Receiver attributes are reported
as self.attr, every other dotted access by its root name.`,
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

		a, err := rt.splitter.Analyze(res.target, res.module.Namespace())
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(a.Flow)
		}

		showRefs, _ := cmd.Flags().GetBool("refs")
		printFlow(a, showRefs)
		return nil
	},
}

func printFlow(a *split.Analysis, showRefs bool) {
	f := a.Flow
	fmt.Printf("=== Flow for %s (%d statements) ===\n", a.Function, f.Statements)
	fmt.Printf("\nWritten (%d):\n  %s\n", f.Written.Len(), joinOrNone(f.Written.Sorted()))
	fmt.Printf("\nRead (%d):\n  %s\n", f.Read.Len(), joinOrNone(f.Read.Sorted()))
	fmt.Printf("\nRead before write (%d):\n  %s\n", f.ReadBeforeWrite.Len(), joinOrNone(f.ReadBeforeWrite.Sorted()))
	if f.Declared.Len() > 0 {
		fmt.Printf("\nDeclared global/nonlocal:\n  %s\n", strings.Join(f.Declared.Sorted(), ", "))
	}
	if f.HasTailReturn() {
		fmt.Printf("\nReturns:\n  %s\n", joinOrNone(f.TailReturn.Sorted()))
	}

	if !showRefs {
		return
	}
	fmt.Printf("\nReferences (%d):\n", len(f.Refs))
	for _, ref := range f.Refs {
		fmt.Printf("  %-5s %s -> %s (line %d, col %d)\n", ref.Mode, ref.Path, ref.Key, ref.Line, ref.Column)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	addTargetFlags(flowCmd)
	flowCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	flowCmd.Flags().Bool("refs", false, "List every reference with its position")
	RootCmd.AddCommand(flowCmd)
}

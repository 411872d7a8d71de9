package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/pkg/envfilter"
	"github.com/l3aro/go-forward-split/pkg/source"
	"github.com/l3aro/go-forward-split/pkg/split"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file> <target>",
	Short: "Classify every name a method body touches",
	Long: `Sorts the names a method body reads or writes into receiver attributes,
module-level bindings, built-ins and the locals that segments must pass
between each other. For methods, the attributes assigned in the class's
__init__ are listed too.`,
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

		attrs, err := initAttributes(res.module, targetName(args), snippet)
		if err != nil {
			rt.logger.Debug("no __init__ attributes", "error", err)
		}

		// Names bound by a star import are unknown, so module-level
		// classification may miss them.
		wildcards := res.module.Namespace().Wildcards()

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(struct {
				Function       string                   `json:"function"`
				Classification envfilter.Classification `json:"classification"`
				Attributes     []string                 `json:"init_attributes,omitempty"`
				Wildcards      []string                 `json:"wildcard_imports,omitempty"`
			}{a.Function, a.Classification, attrs, wildcards})
		}

		printClassification(a, attrs, wildcards)
		return nil
	},
}

// initAttributes returns the receiver attributes assigned in the __init__
// of the class named by target, if any.
func initAttributes(m *source.Module, target string, snippet bool) ([]string, error) {
	if snippet {
		return nil, nil
	}
	className, _, _ := strings.Cut(target, ".")
	c, err := m.Class(className)
	if err != nil {
		return nil, err
	}
	return c.Attributes()
}

func printClassification(a *split.Analysis, attrs, wildcards []string) {
	fmt.Printf("=== Names in %s ===\n", a.Function)
	for _, cat := range envfilter.Categories() {
		set := a.Classification.Of(cat)
		fmt.Printf("\n%s (%d):\n  %s\n", cat, set.Len(), joinOrNone(set.Sorted()))
	}
	if len(attrs) > 0 {
		fmt.Printf("\nAssigned in __init__ (%d):\n  %s\n", len(attrs), joinOrNone(attrs))
	}
	if len(wildcards) > 0 {
		fmt.Printf("\nStar imports, module-level names may be incomplete:\n  %s\n", strings.Join(wildcards, ", "))
	}
}

func init() {
	addTargetFlags(classifyCmd)
	classifyCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(classifyCmd)
}

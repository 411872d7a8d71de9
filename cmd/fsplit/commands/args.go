package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/pkg/split"
)

var argsCmd = &cobra.Command{
	Use:   "args <file> <target>",
	Short: "Infer the inputs a method body needs",
	Long: `Infers the arguments a method body needs from the locals it reads
before writing and compares them with the declared parameters. Inputs the
body needs but does not declare are reported as missing, declared
parameters it never reads as unused.`,
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
			err = printJSON(a.Arguments)
		} else {
			printArguments(a)
		}
		if err != nil {
			return err
		}

		check, _ := cmd.Flags().GetBool("check")
		if check && len(a.Arguments.Missing) > 0 {
			fmt.Fprintf(os.Stderr, "%s: missing inputs: %s\n", a.Function, joinOrNone(a.Arguments.Missing))
			os.Exit(2)
		}
		return nil
	},
}

func printArguments(a *split.Analysis) {
	args := a.Arguments
	fmt.Printf("=== Inputs of %s ===\n", a.Function)
	fmt.Printf("\nInferred:\n  %s\n", joinOrNone(args.Inferred))
	fmt.Printf("\nDeclared:\n  %s\n", joinOrNone(args.Declared))
	if len(args.Missing) > 0 {
		fmt.Printf("\nMissing:\n  %s\n", joinOrNone(args.Missing))
	}
	if len(args.Unused) > 0 {
		fmt.Printf("\nUnused:\n  %s\n", joinOrNone(args.Unused))
	}
}

func init() {
	addTargetFlags(argsCmd)
	argsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	argsCmd.Flags().Bool("check", false, "Exit with status 2 when inputs are missing")
	RootCmd.AddCommand(argsCmd)
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/internal/config"
	"github.com/l3aro/go-forward-split/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize fsplit configuration interactively",
	Long: `Guides you through setting up fsplit configuration step by step.
Creates a config file with the method to split, segment naming and output
settings, then runs a health check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	indent := strconv.Itoa(cfg.IndentWidth)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Method to split").
				Description("Used when a target names only a class").
				Placeholder(cfg.Method).
				Value(&cfg.Method),
			huh.NewInput().
				Title("Receiver for snippets").
				Description("Leave empty to treat snippets as free functions").
				Placeholder(cfg.Receiver).
				Value(&cfg.Receiver),
			huh.NewConfirm().
				Title("Strict mode").
				Description("Fail on cyclic or unresolved locals instead of warning").
				Affirmative("Strict").
				Negative("Warn").
				Value(&cfg.Strict),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Output ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Segment name pattern").
				Description("%s is the function name, %d the segment number").
				Placeholder(cfg.SegmentName).
				Value(&cfg.SegmentName),
			huh.NewSelect[string]().
				Title("Indentation").
				Options(
					huh.NewOption("4 spaces", "4"),
					huh.NewOption("2 spaces", "2"),
				).
				Value(&indent),
			huh.NewSelect[config.Format]().
				Title("Default output format").
				Options(
					huh.NewOption("Python source", config.FormatPython),
					huh.NewOption("JSON", config.FormatJSON),
					huh.NewOption("YAML", config.FormatYAML),
					huh.NewOption("MessagePack", config.FormatMsgpack),
				).
				Value(&cfg.Format),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.IndentWidth, _ = strconv.Atoi(indent)

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.fsplit/config.yaml)", "project"),
					huh.NewOption("Global (~/.fsplit/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if fileExists(configPath) {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Method: %s\n", cfg.Method)
	fmt.Printf("Receiver: %q\n", cfg.Receiver)
	fmt.Printf("Segment names: %s\n", cfg.SegmentName)
	fmt.Printf("Indent: %d\n", cfg.IndentWidth)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Printf("Strict: %t\n", cfg.Strict)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 4: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(loadedCfg, configPath, configPath, "", "")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	absPath, _ := filepath.Abs(configPath)
	fmt.Printf("Config Path: %s\n", absPath)
	printCheck(result.Parser)

	fmt.Println("\n=== Initialization Complete ===")
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func init() {
	RootCmd.AddCommand(initCmd)
}

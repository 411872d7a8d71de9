package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/internal/config"
	"github.com/l3aro/go-forward-split/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and parser",
	Long: `Checks the configuration, verifies that the Python parser and the flow
analysis work, and optionally that a model file can be loaded and its
configured method analyzed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfigWithPath()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		probeFile, _ := cmd.Flags().GetString("file")
		probeClass, _ := cmd.Flags().GetString("class")

		result, err := healthcheck.Check(cfg, configPath, configPath, probeFile, probeClass)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if !result.OK() {
			return fmt.Errorf("health check failed: one or more checks did not pass")
		}
		return nil
	},
}

// loadConfigWithPath loads the effective configuration and reports which
// file it came from. Without any config file the defaults are used.
func loadConfigWithPath() (*config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}

	projectConfigPath := config.ProjectConfigFilePath()
	globalConfigPath := config.GlobalConfigFilePath()
	switch {
	case fileExists(projectConfigPath):
		return cfg, projectConfigPath, nil
	case fileExists(globalConfigPath):
		return cfg, globalConfigPath, nil
	}
	return cfg, "", nil
}

func displayDoctorResult(result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Println("Using config: defaults (run 'fsplit init' to create a config file)")
	} else {
		fmt.Printf("Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}

	printCheck(result.Parser)
	printCheck(result.Target)
}

func printCheck(status healthcheck.CheckStatus) {
	fmt.Printf("\n%s:\n", status.Name)
	if status.Detail != "" {
		fmt.Printf("  %s\n", status.Detail)
	}
	fmt.Printf("  Status: %s %s\n", formatStatusIcon(status.Status), status.Status)
	if status.Error != "" && status.Status == healthcheck.StatusError {
		fmt.Printf("  Error: %s\n", status.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return "✓"
	case healthcheck.StatusSkipped:
		return "-"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	doctorCmd.Flags().String("file", "", "Python file to load as a probe")
	doctorCmd.Flags().String("class", "", "Class in --file to analyze (default: first defining the configured method)")
	RootCmd.AddCommand(doctorCmd)
}

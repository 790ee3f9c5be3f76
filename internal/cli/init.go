package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/config"
	"github.com/ppiankov/maat/internal/policy"
)

var (
	initMode  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.maat) or system (/etc/maat)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap maat configuration",
	Long: `Creates the config directory with a default config.yaml and policy.yaml,
plus the data, inbox and state directories.

User mode (default):  writes to ~/.maat/
System mode:          writes to /etc/maat/ (requires root)`,
	// init must work before any config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}

	var created []string

	for _, name := range []string{"data", "inbox", "state"} {
		dir := filepath.Join(configDir, name)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s directory: %w", name, err)
		}
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if wrote, err := writeIfMissing(configFile, config.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, configFile)
	}

	policyPath := filepath.Join(configDir, "policy.yaml")
	if wrote, err := writeIfMissing(policyPath, policy.DefaultDocumentYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, policyPath)
	}

	fmt.Println("maat init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  maat doctor")
	fmt.Println()
	fmt.Println("Start a case:")
	fmt.Println("  maat case create --name <name> --jurisdiction <jurisdiction>")
	fmt.Printf("  maat policy add <case_id> %s\n", policyPath)
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/maat", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".maat"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

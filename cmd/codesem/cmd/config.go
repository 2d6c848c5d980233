package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/llamaha/codesem/configs"
	"github.com/llamaha/codesem/internal/config"
	"github.com/llamaha/codesem/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage codesem configuration",
		Long: `Manage the user/global and project configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/codesem/config.yaml)
  3. Project config (.codesem.yaml)
  4. Environment variables (CODESEM_*)`,
		Example: `  codesem config init
  codesem config show
  codesem config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigListBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigListBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List user configuration backups",
		Long: `List the timestamped backups kept from past "config init --force"
and automatic schema upgrades, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return errors.IOError("list config backups", err)
			}
			if len(backups) == 0 {
				fmt.Fprintln(out, "No configuration backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(out, b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user configuration from a backup",
		Long: `Restore ~/.config/codesem/config.yaml from a backup produced by a
previous "config init --force" or upgrade. The config in place before the
restore is itself backed up first, so this can always be undone with
another "config restore".`,
		Example: `  codesem config restore ~/.config/codesem/config.yaml.bak.20260315-140512`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return errors.IOError("restore config", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored configuration from %s\n", args[0])
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Create the user/global configuration file from a template at
~/.config/codesem/config.yaml (or $XDG_CONFIG_HOME/codesem/config.yaml).`,
		Example: `  codesem config init
  codesem config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration, preserving its settings where possible")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  codesem config show
  codesem config show --json
  codesem config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	configPath := config.GetUserConfigPath()
	configDir := config.GetUserConfigDir()

	if config.UserConfigExists() {
		if !force {
			fmt.Fprintf(out, "User configuration already exists at %s\n", configPath)
			fmt.Fprintln(out, "Use --force to upgrade with new defaults (preserves your settings)")
			return nil
		}
		return runConfigUpgrade(cmd, configPath)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return errors.IOError("create config directory", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return errors.IOError("write config file", err)
	}

	fmt.Fprintf(out, "Created user configuration at %s\n", configPath)
	return nil
}

// runConfigUpgrade backs up the existing user config, fills in any settings
// fields a template upgrade would have added, and rewrites it.
func runConfigUpgrade(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return errors.IOError("backup config", err)
	}

	existingCfg, err := config.LoadUserConfig()
	if err != nil {
		return errors.ConfigError("load existing config", err)
	}
	if existingCfg == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}

	newFields := existingCfg.MergeNewDefaults()

	if err := existingCfg.WriteYAML(configPath); err != nil {
		return errors.IOError("write upgraded config", err)
	}

	fmt.Fprintf(out, "Configuration upgraded at %s (backup: %s)\n", configPath, backupPath)
	if len(newFields) > 0 {
		fmt.Fprintln(out, "New options added with defaults:")
		for _, field := range newFields {
			fmt.Fprintf(out, "  - %s\n", field)
		}
	} else {
		fmt.Fprintln(out, "Your configuration is already up to date")
	}

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := cmd.OutOrStdout()

	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		cwd, err := os.Getwd()
		if err != nil {
			return errors.IOError("get current directory", err)
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}
		cfg, err = config.Load(root)
		if err != nil {
			return err
		}
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			fmt.Fprintf(out, "No user configuration file found (expected at %s)\n", configPath)
			fmt.Fprintln(out, "Run 'codesem config init' to create one")
			return nil
		}
		cfg = config.NewConfig()
		data, err := os.ReadFile(configPath)
		if err != nil {
			return errors.IOError("read user config", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.ConfigError("parse user config", err)
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return errors.IOError("get current directory", err)
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}

		yamlPath := filepath.Join(root, ".codesem.yaml")
		ymlPath := filepath.Join(root, ".codesem.yml")

		var configPath string
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else if _, err := os.Stat(ymlPath); err == nil {
			configPath = ymlPath
		} else {
			fmt.Fprintf(out, "No project configuration file found (expected at %s)\n", yamlPath)
			return nil
		}

		cfg = config.NewConfig()
		data, err := os.ReadFile(configPath)
		if err != nil {
			return errors.IOError("read project config", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.ConfigError("parse project config", err)
		}
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.InternalError("marshal config", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "# Configuration source: %s\n\n", sourceDesc)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.InternalError("marshal config", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

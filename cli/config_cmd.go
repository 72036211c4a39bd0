package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/leave-portal/config"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigInitCmd(app))
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file plus environment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Cfg
			if cfg.JWTSecret != "" {
				cfg.JWTSecret = "********"
			}
			if app.JSONOutput {
				return app.write("", map[string]any{"ok": true, "operation": "config_show", "config": cfg})
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = app.Stdout.Write(data)
			return err
		},
	}
}

func newConfigInitCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init PATH",
		Short:       "Write a configuration file with the defaults",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			return app.write(fmt.Sprintf("Wrote %s", path), map[string]any{"ok": true, "operation": "config_init", "path": path})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

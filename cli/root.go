package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	return newRootCmd(NewApp())
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "leavectl",
		Short:         "Operate the leave portal datastore",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfig"] == "true" {
				return nil
			}
			if app.svc != nil {
				return nil
			}
			return app.LoadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&app.CfgPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVar(&app.JSONOutput, "json", false, "Emit machine-readable JSON output")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log service activity to stderr")

	cmd.AddCommand(newDaysCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newRequestsCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newSubmitCmd(app))
	cmd.AddCommand(newPlaceCmd(app))
	cmd.AddCommand(newApproveCmd(app))
	cmd.AddCommand(newRejectCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

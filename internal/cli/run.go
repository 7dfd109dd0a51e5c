package cli

import (
	"focusflow/internal/app"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			options := app.RunOptions{ConfigPath: path}
			options.Listen, _ = cmd.Flags().GetString("listen")
			if cmd.Flags().Changed("tray") {
				enabled, _ := cmd.Flags().GetBool("tray")
				options.Tray = &enabled
			}
			return app.Run(cmd.Context(), options)
		},
	}
	cmd.Flags().Bool("tray", false, "Show the system tray icon (overrides tray.enabled)")
	cmd.Flags().String("listen", "", "Message surface address (overrides listen)")
	return cmd
}

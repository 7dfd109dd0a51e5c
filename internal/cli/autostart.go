package cli

import (
	"fmt"
	"os"

	"focusflow/internal/config"
	"focusflow/internal/platform"

	"github.com/spf13/cobra"
)

func newAutostartCommand() *cobra.Command {
	service := platform.NewService()
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting focusflow at login",
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Start focusflow run at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := loginItem(cmd)
			if err != nil {
				return err
			}
			if err := service.EnableAutostart(item); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
			return nil
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Stop starting focusflow at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.DisableAutostart(config.AppName); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether focusflow starts at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := service.AutostartEnabled(config.AppName)
			if err != nil {
				return err
			}
			state := "disabled"
			if enabled {
				state = "enabled"
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart "+state)
			return nil
		},
	}

	cmd.AddCommand(enable, disable, status)
	return cmd
}

// loginItem describes "<exe> run" with the config flag carried over.
func loginItem(cmd *cobra.Command) (platform.LoginItem, error) {
	execPath, err := os.Executable()
	if err != nil {
		return platform.LoginItem{}, fmt.Errorf("resolve executable: %w", err)
	}
	item := platform.LoginItem{
		Name:        config.AppName,
		Description: "Focus timer and browsing time tracker",
		ExecPath:    execPath,
		Args:        []string{"run"},
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		item.Args = append(item.Args, "--config", path)
	}
	return item, nil
}

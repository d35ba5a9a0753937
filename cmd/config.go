package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter " + config.DefaultConfigFile,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigFile
		}
		if err := config.WriteTemplate(path, configForce); err != nil {
			return err
		}
		w := cmd.ErrOrStderr()
		fmt.Fprintln(w, ui.Success("Wrote "+path))
		fmt.Fprintln(w, ui.Hint("Fill in the ido section, then: idodeploy key import <network>"))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings after env overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		data, err := config.Marshal(s, false)
		if err != nil {
			return err
		}
		src := s.Path()
		if src == "" {
			src = "defaults (no " + config.DefaultConfigFile + " found)"
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Meta("# source: "+src))
		fmt.Fprint(cmd.OutOrStdout(), string(data))

		if err := s.Validate(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn(err.Error()))
		}
		if _, err := s.Parameters(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn(err.Error()))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

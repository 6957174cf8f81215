// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/frame_recorder/internal/app"
	"github.com/relabs-tech/frame_recorder/internal/config"
	"github.com/relabs-tech/frame_recorder/internal/version"
)

// Dependencies are filled in before any subcommand runs.
type Dependencies struct {
	ConfigPath string
	Config     *config.Config
	Logger     *slog.Logger
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recorder",
		Short:         "Record video frames paired with IMU samples",
		Long:          "Captures image frames together with the most recent IMU sample and scan depth, and writes each recording as images plus a data.txt sidecar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := config.InitGlobal(deps.ConfigPath)
			switch {
			case err == nil:
				deps.Config = config.Get()
			case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
				// No config file next to the binary: run on defaults.
				if deps.Config, err = config.Parse(strings.NewReader("")); err != nil {
					return err
				}
			default:
				return fmt.Errorf("loading config: %w", err)
			}
			deps.Logger = app.NewLogger(os.Stderr, deps.Config.LogLevel, deps.Config.LogFormat)
			return nil
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.PersistentFlags().StringVar(&deps.ConfigPath, "config", "./recorder_config.txt", "path to configuration file")

	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewVerifyCmd(deps))

	return rootCmd
}

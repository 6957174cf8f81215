// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/frame_recorder/internal/app"
)

func NewRunCmd(deps *Dependencies) *cobra.Command {
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recorder until interrupted",
		Long:  "Starts the frame source, the IMU adapter and the control API. Ctrl+C stops any active recording and waits for its files to be written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rec, err := app.NewRecorder(deps.Config, deps.Logger)
			if err != nil {
				return err
			}
			defer rec.Close()

			deps.Logger.Info("recorder ready",
				"output", deps.Config.OutputDir,
				"frame_source", deps.Config.FrameSource,
				"imu_source", deps.Config.IMUSource,
				"web_port", deps.Config.WebServerPort)
			return rec.Run(ctx, autoStart)
		},
	}

	cmd.Flags().BoolVar(&autoStart, "start", false, "start recording immediately")

	return cmd
}

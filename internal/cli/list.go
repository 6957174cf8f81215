// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/frame_recorder/internal/output"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			if _, err := os.Stat(deps.Config.CatalogPath); os.IsNotExist(err) {
				formatter.Info("No recordings found")
				return nil
			}
			cat, err := store.OpenCatalog(deps.Config.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(limit)
			if err != nil {
				return err
			}
			formatter.RecordingList(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of recordings to show (0 = all)")

	return cmd
}

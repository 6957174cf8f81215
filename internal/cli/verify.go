// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/frame_recorder/internal/output"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

func NewVerifyCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <recording dir>...",
		Short: "Check that a recording's data.txt matches its images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			bad := 0
			for _, dir := range args {
				v, err := store.Verify(dir)
				if err != nil {
					formatter.Error(fmt.Sprintf("%s: %v", dir, err))
					bad++
					continue
				}
				formatter.Verification(v)
				if !v.OK() {
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d recordings failed verification", bad, len(args))
			}
			return nil
		},
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/relabs-tech/frame_recorder/internal/cli"
	"github.com/relabs-tech/frame_recorder/internal/output"
)

func main() {
	deps := &cli.Dependencies{}
	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

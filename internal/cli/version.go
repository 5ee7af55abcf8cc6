// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionData() VersionData {
	return VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := versionData()
			if jsonOut {
				return writeJSONResult(cmd.OutOrStdout(), "version", v, nil)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "drchat %s\n", v.Version)
			fmt.Fprintln(out, renderLabel("Commit", v.GitCommit))
			fmt.Fprintln(out, renderLabel("Built", v.BuildDate))
			fmt.Fprintln(out, renderLabel("Go", v.GoVersion))
			fmt.Fprintln(out, renderLabel("Platform", v.Platform))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

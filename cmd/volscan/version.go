// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "undefined"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := version

			if info, ok := debug.ReadBuildInfo(); ok && v == "undefined" && info.Main.Version != "" {
				v = info.Main.Version
			}

			cmd.Printf("volscan %s\n", v)
		},
	}
}

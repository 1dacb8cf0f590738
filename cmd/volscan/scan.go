// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/bootcode"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/gptcache"
	"github.com/siderolabs/go-volscan/hostfw"
	"github.com/siderolabs/go-volscan/scan"
)

func newScanCmd(c *cli) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan <machine.yaml>",
		Short: "Discover the volumes of an emulated machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScan(cmd, args[0])
		},
	}

	flags := scanCmd.Flags()
	flags.StringP("output", "o", string(formatTable), "output format: table, json or yaml")
	flags.Bool("sync-apfs", false, "rename APFS data volumes after their system volumes")
	flags.Bool("exempt-esp", false, "don't treat ESPs with duplicate serial numbers as duplicates")
	flags.String("legacy-mode", bootcode.ModeBootSector.String(), "legacy bootability detection: bootsector or bootfiles")
	flags.StringSlice("boot-file", nil, "boot file names looked up in volume root directories")
	flags.Uint("self", 0, "handle of the volume the loader was started from")
	flags.Bool("no-apfs", false, "don't query APFS volume roles")

	return scanCmd
}

func (c *cli) runScan(cmd *cobra.Command, machinePath string) (err error) {
	format, err := parseFormat(c.config.GetString("output"))
	if err != nil {
		return err
	}

	mode, err := bootcode.ParseMode(c.config.GetString("legacy-mode"))
	if err != nil {
		return err
	}

	m, err := hostfw.Load(machinePath)
	if err != nil {
		return err
	}

	fw, err := hostfw.New(m, hostfw.WithLogger(c.logger.With(zap.String("component", "hostfw"))))
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, fw.Close())
	}()

	opts := []scan.Option{
		scan.WithLogger(c.logger.With(zap.String("component", "scan"))),
		scan.WithPartitionCache(gptcache.New(gptcache.WithLogger(c.logger))),
		scan.WithExemptESP(c.config.GetBool("exempt-esp")),
		scan.WithSyncAPFS(c.config.GetBool("sync-apfs")),
		scan.WithLegacyMode(mode),
	}

	if !c.config.GetBool("no-apfs") {
		opts = append(opts, scan.WithRoleProvider(fw))
	}

	if names := c.config.GetStringSlice("boot-file"); len(names) > 0 {
		opts = append(opts, scan.WithBootFiles(names))
	}

	if self := c.config.GetUint("self"); self != 0 {
		opts = append(opts, scan.WithSelfHandle(firmware.Handle(self)))
	}

	state, err := scan.Discover(fw, opts...)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, state.Close())
	}()

	var defects *multierror.Error

	if errors.As(state.Defects, &defects) {
		for _, defect := range defects.Errors {
			c.logger.Warn("discovery defect", zap.Error(defect))
		}
	}

	return writeReport(cmd.OutOrStdout(), format, newReport(state))
}

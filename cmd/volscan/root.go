// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "VOLSCAN"

// cli carries the state shared by the commands.
type cli struct {
	config *viper.Viper
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{
		config: viper.New(),
		logger: zap.NewNop(),
	}

	c.config.SetEnvPrefix(envPrefix)
	c.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.config.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "volscan",
		Short:         "Discover volumes and partitions the way boot firmware sees them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.bindFlags(cmd.Flags()); err != nil {
				return err
			}

			return c.setupLogger()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.logger.Sync() //nolint:errcheck
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(c),
		newMkimageCmd(c),
		newVersionCmd(),
	)

	return rootCmd
}

// bindFlags makes every flag overridable with VOLSCAN_<FLAG> environment variables.
func (c *cli) bindFlags(flags *pflag.FlagSet) error {
	return c.config.BindPFlags(flags)
}

func (c *cli) setupLogger() error {
	var (
		logger *zap.Logger
		err    error
	)

	if c.config.GetBool("debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return err
	}

	c.logger = logger

	return nil
}

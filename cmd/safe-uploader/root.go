package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "safe-uploader",
		Short:         "Validate uploaded files against named profiles and place them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newUploadCmd())

	return root
}

func configFlag(fs *pflag.FlagSet, dst *string) {
	fs.StringVarP(dst, "config", "c", "./config/config.yml", "service configuration file")
}

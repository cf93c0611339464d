package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	flagLogLvl string
	flagLogDev bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "extmetrics",
		Short:        "Evaluate compressors with in-process and external quality metrics",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "extmetrics.yaml", "config file path (.yaml or .toml)")
	root.PersistentFlags().StringVar(&flagLogLvl, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogDev, "log-dev", false, "human readable console logs")
	root.AddCommand(newEvalCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	return root
}

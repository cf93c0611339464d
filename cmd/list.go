package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/registry"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available metrics, compressors, io formats and configured inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			listRegistry(registry.Default(), cmd.OutOrStdout())
			cfg, err := config.Load(cfgFile)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nInputs: none (%v)\n", err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nInputs:")
			for _, in := range cfg.Inputs {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s %s, dims %v)\n", in.Name, in.Type, in.Path, in.Dims)
			}
			return nil
		},
	}
}

func listRegistry(reg *registry.Registry, w io.Writer) {
	fmt.Fprintln(w, "Metrics:")
	for _, name := range reg.MetricNames() {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	fmt.Fprintln(w, "\nCompressors:")
	for _, name := range reg.Compressors.Names() {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	fmt.Fprintf(w, "\nIO formats: %s\n", strings.Join(reg.Formats.Names(), ", "))
}

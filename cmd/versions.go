package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/archive-cli/internal/registry"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Print the effective version registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.New(cfg.Versions)

		out, err := yaml.Marshal(reg.All())
		if err != nil {
			return eris.Wrap(err, "marshal versions")
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

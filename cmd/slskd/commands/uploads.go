package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slskd/slskd/pkg/uploads"
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Inspect the upload queue",
}

// uploadsLsCmd demonstrates Manager.List against a freshly seeded in-memory
// Manager. A real deployment exposes this over the HTTP control plane
// (out of scope for this module), which is the channel a long-running
// `serve` process and a separate `uploads ls` invocation would otherwise
// share state through.
var uploadsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List demo uploads across their lifecycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager, _, resolver := wireManager(cfg)
		ctx := context.Background()

		if err := enqueueDemoUploads(ctx, manager, resolver); err != nil {
			return err
		}

		rows, err := manager.List(func(*uploads.Transfer) bool { return true }, true)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tFILENAME\tSIZE\tSTATE")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", row.Username, row.Filename, row.Size, row.State)
		}
		return w.Flush()
	},
}

func init() {
	uploadsCmd.AddCommand(uploadsLsCmd)
}

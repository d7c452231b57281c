package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nolandb/nanocol"
	"github.com/spf13/cobra"
)

func checkIndexCmd() *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "checkindex <file>",
		Short: "verify every binary index's sort order against a serialized collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := nanocol.FromJSONObject(raw)
			if err != nil {
				return fmt.Errorf("failed to load collection: %w", err)
			}
			results, err := c.CheckAllIndexes(context.Background(), nanocol.CheckIndexOpts{Repair: repair})
			if err != nil {
				return err
			}
			bad := 0
			for field, ok := range results {
				status := "ok"
				if !ok {
					status = "INVALID"
					bad++
				}
				fmt.Printf("%-20s %s\n", field, status)
			}
			if bad > 0 && !repair {
				return fmt.Errorf("%d index(es) invalid; re-run with --repair to rebuild", bad)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rebuild any index found invalid")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/nolandb/nanocol"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "load a serialized collection and print its document count and configuration",
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
			cfg, err := c.ExportConfig()
			if err != nil {
				return err
			}
			fmt.Printf("collection: %d documents\n", c.Len())
			fmt.Println(string(cfg))
			return nil
		},
	}
	return cmd
}

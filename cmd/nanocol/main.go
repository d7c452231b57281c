package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "nanocol",
		Short: "inspect and repair nanocol collections serialized to disk",
	}
	root.AddCommand(inspectCmd(), checkIndexCmd(), initCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

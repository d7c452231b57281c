package main

import (
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cobra"
)

var mainTemplate = `package main

import (
	"fmt"

	"github.com/nolandb/nanocol"
)

func main() {
	c, err := nanocol.New("{{ .name | kebabcase }}", nanocol.WithIndices({{ .indexedField | quote }}))
	if err != nil {
		panic(err)
	}
	fmt.Println("collection ready:", c.Len(), "documents")
}
`

func initCmd() *cobra.Command {
	var name, indexedField, out string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "scaffold a standalone main.go wiring a new collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := template.New("main").Funcs(sprig.TxtFuncMap()).Parse(mainTemplate)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return tmpl.Execute(f, map[string]string{
				"name":         name,
				"indexedField": indexedField,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "documents", "collection name")
	cmd.Flags().StringVar(&indexedField, "index", "id", "field to back with a binary index")
	cmd.Flags().StringVar(&out, "out", "main.go", "output file path")
	return cmd
}

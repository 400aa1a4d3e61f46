package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewModelsCommand creates the models command.
func NewModelsCommand(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List declared models and their fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			w := cmd.OutOrStdout()
			for _, m := range rt.access.Registry().All() {
				_, _ = fmt.Fprintf(w, "%s (table %s)\n", m.Name, m.Table)

				t := table.NewWriter()
				t.SetOutputMirror(w)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Field", "Kind", "Flags"})
				for i := range m.Fields {
					f := &m.Fields[i]
					var flags []string
					if f.PrimaryKey {
						flags = append(flags, "pk")
					}
					if f.Unique {
						flags = append(flags, "unique")
					}
					if f.Nullable {
						flags = append(flags, "nullable")
					}
					t.AppendRow(table.Row{f.Name, f.Kind.String(), strings.Join(flags, ", ")})
				}
				t.Render()

				for i := range m.Relationships {
					rel := &m.Relationships[i]
					card := "one"
					if rel.ToMany {
						card = "many"
					}
					nested := ""
					if rel.Nested {
						nested = " (nested)"
					}
					_, _ = fmt.Fprintf(w, "  %s -> %s [%s]%s\n", rel.Name, rel.Target, card, nested)
				}
				_, _ = fmt.Fprintln(w)
			}
			return nil
		},
	}
}

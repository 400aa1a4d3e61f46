package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(opts Options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query <model> [param=value ...]",
		Short: "Run a collection query against a model",
		Long: `Query compiles the given parameters into a collection query and prints
the result. Parameters use the same grammar as the HTTP API:

  relstore query Story author=alice _limit=10 _sort=-id
  relstore query Story _count
  relstore query Story _fields=id,title _limit=20
  relstore query Story tags=golang _explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			bag, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			repo, err := rt.access.Repo(args[0])
			if err != nil {
				return err
			}
			res, err := repo.GetCollection(cmd.Context(), bag)
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), repo.Model(), res, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table|json|csv)")
	return cmd
}

// parseParams turns key=value arguments into a parameter bag. A bare key
// is a presence flag (nil value), matching the URL grammar.
func parseParams(args []string) (map[string]any, error) {
	bag := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid parameter %q", arg)
		}
		if !found {
			bag[key] = nil
			continue
		}
		if prev, ok := bag[key]; ok {
			switch v := prev.(type) {
			case []string:
				bag[key] = append(v, value)
			case string:
				bag[key] = []string{v, value}
			}
			continue
		}
		bag[key] = value
	}
	return bag, nil
}

// resultColumns returns the column order for rendering: the projected
// fields when set, otherwise the model's declared order.
func resultColumns(m *schema.Model, res *query.Result) []string {
	if res.Mode == query.ModeFields {
		cols := []string{"_pk", "_type"}
		for _, f := range res.Fields {
			// Exclusion tokens never appear in the projected maps.
			if strings.HasPrefix(f, "-") {
				continue
			}
			cols = append(cols, f)
		}
		return cols
	}
	cols := m.ColumnNames()
	return append(cols, query.VersionColumn, query.UpdatedAtColumn)
}

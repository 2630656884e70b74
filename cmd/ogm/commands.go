package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"graphogm/internal/cypher"
	"graphogm/internal/domain/satellites"
	"graphogm/internal/fixture"
	"graphogm/internal/metadata"
	"graphogm/internal/session"
)

func newImportCmd(flags *globalFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a fixture (.yaml, .json) or Cypher script (.cql)",
		Long: `Import a fixture (.yaml, .json) or Cypher script (.cql).

With --watch a fixture is reloaded whenever the file is written: nodes with
the fixture's labels are deleted and the fixture is imported again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fsys, name := os.DirFS(filepath.Dir(path)), filepath.Base(path)
			isCypher := strings.HasSuffix(strings.ToLower(path), ".cql") || strings.HasSuffix(strings.ToLower(path), ".cypher")
			if watch && isCypher {
				return fmt.Errorf("--watch needs a .yaml or .json fixture")
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if isCypher {
					statements, err := fixture.ReadCypher(fsys, name)
					if err != nil {
						return err
					}
					stats, err := fixture.ImportCypher(ctx, a.driver, statements)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Ran %d statements: %d nodes, %d relationships created\n",
						len(statements), stats.NodesCreated, stats.RelationshipsCreated)
					return nil
				}

				f, err := fixture.ReadFile(fsys, name)
				if err != nil {
					return err
				}
				load := fixture.Import
				if watch {
					load = fixture.Reload
				}
				ids, err := load(ctx, a.driver, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d nodes and %d relationships\n", len(ids), len(f.Relationships))
				if !watch {
					return nil
				}

				reload := func(ctx context.Context) {
					f, err := fixture.ReadFile(fsys, name)
					if err == nil {
						_, err = fixture.Reload(ctx, a.driver, f)
					}
					if err != nil {
						a.logger.Error("failed to reload fixture", "path", path, "error", err)
						return
					}
					a.logger.Info("fixture reloaded", "path", path, "nodes", len(f.Nodes))
				}
				err = fixture.NewWatcher(path, reload, a.logger).Watch(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the fixture when the file changes")
	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		label  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph, or the nodes of one label, as a fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := fixture.CodecFor("export." + format)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				f, err := fixture.Export(ctx, a.driver, label)
				if err != nil {
					return err
				}
				return codec.Encode(f, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Only export nodes with this label")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, json)")
	return cmd
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "query <cypher>",
		Short: "Run a Cypher query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				s := a.factory.OpenSession()
				result, err := s.Query(ctx, args[0], values)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), a.factory.Metadata(), result)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as name=value (repeatable)")
	return cmd
}

func newSatellitesCmd(flags *globalFlags) *cobra.Command {
	var (
		manned bool
		sortBy string
		desc   bool
	)
	cmd := &cobra.Command{
		Use:   "satellites",
		Short: "List satellites with their program, location and orbit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				opts := []session.Option{session.WithSort(sortOrder(sortBy, desc))}
				if manned {
					opts = append(opts, session.WithFilters(cypher.NewFilter("manned", satellites.Manned)))
				}

				var all []*satellites.Satellite
				if err := a.factory.OpenSession().LoadAll(ctx, &all, opts...); err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPROGRAM\tLAUNCHED\tMANNED\tLOCATION\tORBIT")
				for _, s := range all {
					program, location, orbit := "-", "-", "-"
					if s.Program != nil {
						program = s.Program.Name
					}
					if s.Location != nil {
						location = s.Location.Name
					}
					if s.Orbit != nil {
						orbit = s.Orbit.Name
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", *s.ID, s.Name, program,
						s.Launched.Format("2006-01-02"), s.Manned, location, orbit)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&manned, "manned", false, "Only manned satellites")
	cmd.Flags().StringVar(&sortBy, "sort", "ref", "Property to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

func newProgramsCmd(flags *globalFlags) *cobra.Command {
	var desc bool
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List space programs and the satellites they launched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				var programs []*satellites.Program
				err := a.factory.OpenSession().LoadAll(ctx, &programs, session.WithSort(sortOrder("ref", desc)))
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPROGRAM\tSATELLITES")
				for _, p := range programs {
					names := make([]string, 0, len(p.Satellites))
					for _, s := range p.Satellites {
						names = append(names, s.Name)
					}
					sort.Strings(names)
					fmt.Fprintf(w, "%d\t%s\t%s\n", *p.ID, p.Name, strings.Join(names, ", "))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort by ref descending")
	return cmd
}

func newConstraintsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "constraints",
		Short: "List the unique constraints in the database",
		Long: `List the unique constraints in the database.

Set mapping.auto_index to "assert" to create the constraints declared on
entities at startup, or "validate" to fail when one is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				resp, err := a.driver.Request(ctx, cypher.ListConstraints{})
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "LABEL\tPROPERTY")
				for _, row := range resp.Rows {
					fmt.Fprintf(w, "%v\t%v\n", row[cypher.ColumnLabel], row[cypher.ColumnProperty])
				}
				return w.Flush()
			})
		},
	}
}

func sortOrder(property string, desc bool) *cypher.SortOrder {
	if desc {
		return cypher.NewSortOrder().Desc(property)
	}
	return cypher.NewSortOrder().Asc(property)
}

// parseParams turns name=value pairs into query parameters; values stay strings
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: want name=value", pair)
		}
		params[name] = value
	}
	return params, nil
}

func printResult(out io.Writer, registry *metadata.Registry, result *session.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, column := range result.Columns {
			cells[i] = describe(registry, row[column])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rows\n", len(result.Rows))
	return nil
}

// describe prints entities as Label(id), paths as their nodes and
// everything else with %v
func describe(registry *metadata.Registry, v any) string {
	if v == nil {
		return "null"
	}
	if p, ok := v.(session.Path); ok {
		nodes := make([]string, len(p.Nodes))
		for i, n := range p.Nodes {
			nodes[i] = describe(registry, n)
		}
		return strings.Join(nodes, "->")
	}
	if class, err := registry.ClassFor(v); err == nil {
		if id, ok := class.IDOf(v); ok {
			return fmt.Sprintf("%s(%d)", class.Label, id)
		}
	}
	return fmt.Sprintf("%v", v)
}

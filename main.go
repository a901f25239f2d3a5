package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/database"
	"github.com/dot5enko/simple-chunk-db/logging"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	kind       string
	root       string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red(" %s", err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {

	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "chunkdb",
		Short:         "file backed chunked table store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "json config file, overrides --kind and --root")
	root.PersistentFlags().StringVar(&flags.kind, "kind", string(config.KindSQL), "database kind: sql or nosql")
	root.PersistentFlags().StringVar(&flags.root, "root", ".", "storage root directory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		tablesCmd(flags),
		createCmd(flags),
		dropCmd(flags),
		insertCmd(flags),
		updateCmd(flags),
		deleteCmd(flags),
		queryCmd(flags),
	)

	return root
}

func openDB(cmd *cobra.Command, flags *globalFlags) (*database.DB, error) {

	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}

	var cfg config.Config
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default(config.Kind(flags.kind), flags.root)
	}

	logger := logging.New(logging.Options{Level: level, Writer: cmd.ErrOrStderr(), Color: true})

	return database.Open(cfg, database.Options{Logger: logger})
}

// withDB opens the database for the duration of one command
func withDB(flags *globalFlags, fn func(cmd *cobra.Command, db *database.DB, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd, flags)
		if err != nil {
			return err
		}
		defer db.Close()

		return fn(cmd, db, args)
	}
}

func tablesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "list user tables",
		Args:  cobra.NoArgs,
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, _ []string) error {
			for _, name := range db.Tables() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	}
}

func createCmd(flags *globalFlags) *cobra.Command {

	var fieldSpecs []string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "create a table, fields are given as name:type",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, args []string) error {
			fields, err := parseFieldSpecs(fieldSpecs)
			if err != nil {
				return err
			}

			if _, createErr := db.CreateTable(args[0], fields); createErr != nil {
				return createErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
			return nil
		}),
	}

	cmd.Flags().StringArrayVar(&fieldSpecs, "field", nil, "field as name:type, repeatable")
	return cmd
}

func parseFieldSpecs(specs []string) ([]schema.FieldInfo, error) {
	fields := make([]schema.FieldInfo, 0, len(specs))

	for _, spec := range specs {
		name, typeName, ok := strings.Cut(spec, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("field %q is not name:type", spec)
		}

		t, known := schema.ParseFieldType(typeName)
		if !known {
			return nil, fmt.Errorf("field %q has unknown type %q", name, typeName)
		}

		fields = append(fields, schema.FieldInfo{Name: name, Type: t})
	}

	return fields, nil
}

func dropCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop NAME",
		Short: "drop a table, unknown names are not an error",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, args []string) error {
			return db.DropTable(args[0])
		}),
	}
}

func insertCmd(flags *globalFlags) *cobra.Command {

	var file string

	cmd := &cobra.Command{
		Use:   "insert NAME",
		Short: "insert a json array of records",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, args []string) error {
			var records []map[string]any
			if err := readJSON(cmd, file, &records); err != nil {
				return err
			}

			n, err := db.Insert(args[0], records)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d\n", n)
			return nil
		}),
	}

	cmd.Flags().StringVar(&file, "file", "-", "records file, - reads stdin")
	return cmd
}

func updateCmd(flags *globalFlags) *cobra.Command {

	var where, set string

	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "set values on rows matching a predicate",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, args []string) error {
			predicate, err := parseInlineJSON(where)
			if err != nil {
				return err
			}

			var values map[string]any
			if err := decodeJSON(strings.NewReader(set), &values); err != nil {
				return err
			}

			n, err := db.Update(args[0], predicate, values)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated %d\n", n)
			return nil
		}),
	}

	cmd.Flags().StringVar(&where, "where", "", "predicate expression as json, empty matches all rows")
	cmd.Flags().StringVar(&set, "set", "", "values as a json object")
	cmd.MarkFlagRequired("set")
	return cmd
}

func deleteCmd(flags *globalFlags) *cobra.Command {

	var where string

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "delete rows matching a predicate",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, args []string) error {
			predicate, err := parseInlineJSON(where)
			if err != nil {
				return err
			}

			n, err := db.Delete(args[0], predicate)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
			return nil
		}),
	}

	cmd.Flags().StringVar(&where, "where", "", "predicate expression as json, empty matches all rows")
	return cmd
}

func queryCmd(flags *globalFlags) *cobra.Command {

	var file string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "run a query document, result rows are printed as json lines",
		Args:  cobra.NoArgs,
		RunE: withDB(flags, func(cmd *cobra.Command, db *database.DB, _ []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			result, err := db.RunQuery(raw)
			if err != nil {
				return err
			}
			defer db.Release(result)

			enc := json.NewEncoder(cmd.OutOrStdout())
			return db.ReadRows(result, func(records []map[string]any) error {
				for _, r := range records {
					if encErr := enc.Encode(r); encErr != nil {
						return encErr
					}
				}
				return nil
			})
		}),
	}

	cmd.Flags().StringVar(&file, "file", "-", "query file, - reads stdin")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func readJSON(cmd *cobra.Command, file string, into any) error {
	raw, err := readInput(cmd, file)
	if err != nil {
		return err
	}
	return decodeJSON(bytes.NewReader(raw), into)
}

// decodeJSON keeps numbers as literals, integral values stay ints
func decodeJSON(r io.Reader, into any) error {
	d := json.NewDecoder(r)
	d.UseNumber()

	if err := d.Decode(into); err != nil {
		return fmt.Errorf("unable to decode json: %w", err)
	}
	return nil
}

func parseInlineJSON(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out any
	if err := decodeJSON(strings.NewReader(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Limetric/filedb/engine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "filedbctl",
	Short: "Driver CLI for the file-backed relational engine",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to filedbctl TOML config file")
	rootCmd.AddCommand(initCmd, createTableCmd, insertCmd, queryCmd, exportCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Open or create a database directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := engine.Open(args[0])
		if err != nil {
			return err
		}
		logger().Printf("database ready at %s (%d tables)", db.Dir(), len(db.TableNames()))
		return nil
	},
}

var createTableCmd = &cobra.Command{
	Use:   "create-table <dir> <table> <col:len>...",
	Short: "Create a table and add its columns",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := engine.Open(args[0])
		if err != nil {
			return err
		}
		t, err := db.NewTable(args[1])
		if err != nil {
			return err
		}
		for _, spec := range args[2:] {
			name, length, err := parseColSpec(spec)
			if err != nil {
				return err
			}
			if err := t.AddColumn(name, length); err != nil {
				return err
			}
		}
		logger().Printf("created table %s with columns %v", t.Name(), t.Columns())
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <dir> <table> <col=val>...",
	Short: "Insert a row inside a single-statement transaction",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := engine.Open(args[0])
		if err != nil {
			return err
		}
		t, err := db.Table(args[1])
		if err != nil {
			return err
		}
		row, err := parseRowArgs(args[2:])
		if err != nil {
			return err
		}
		tx := engine.NewTransaction(db)
		if err := tx.ELock(t); err != nil {
			return err
		}
		defer tx.Commit()
		n, err := tx.Insert(t, row)
		if err != nil {
			return err
		}
		logger().Printf("inserted row %d into %s", n, t.Name())
		return nil
	},
}

var whereArg string

var queryCmd = &cobra.Command{
	Use:   "query <dir> <table>",
	Short: "Print live rows of a table, optionally filtered",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := engine.Open(args[0])
		if err != nil {
			return err
		}
		t, err := db.Table(args[1])
		if err != nil {
			return err
		}
		v := engine.NewRA()
		if err := v.PrepareTable(t); err != nil {
			return err
		}
		if whereArg != "" {
			col, val, err := parseColSpecEquals(whereArg)
			if err != nil {
				return err
			}
			if err := v.Select(col, engine.Equals, val); err != nil {
				return err
			}
		} else if t.Has("~del") {
			if err := v.Select("~del", notDeleted, ""); err != nil {
				return err
			}
		}
		for i := 0; i < v.NumberOfRows(); i++ {
			row, err := v.ReadRow(i)
			if err != nil {
				return err
			}
			fmt.Println(formatRow(t.Columns(), row))
		}
		return nil
	},
}

func notDeleted(cell, _ string) bool { return strings.TrimSpace(cell) != "y" }

func init() {
	queryCmd.Flags().StringVar(&whereArg, "where", "", "col=val filter")
}

func parseColSpec(spec string) (string, int, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed column spec %q, want name:length", spec)
	}
	var length int
	if _, err := fmt.Sscanf(parts[1], "%d", &length); err != nil {
		return "", 0, fmt.Errorf("malformed column length in %q: %w", spec, err)
	}
	return parts[0], length, nil
}

func parseColSpecEquals(spec string) (string, string, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed filter %q, want col=val", spec)
	}
	return parts[0], parts[1], nil
}

func parseRowArgs(args []string) (map[string]string, error) {
	row := make(map[string]string, len(args))
	for _, a := range args {
		k, v, err := parseColSpecEquals(a)
		if err != nil {
			return nil, err
		}
		row[k] = v
	}
	return row, nil
}

func formatRow(order []string, row map[string]string) string {
	parts := make([]string, len(order))
	for i, c := range order {
		parts[i] = c + "=" + strings.TrimSpace(row[c])
	}
	return strings.Join(parts, " ")
}

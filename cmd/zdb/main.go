// Command zdb is an interactive REPL for the zdb storage engine: it opens
// a data file, reads line-delimited SQL terminated by ';' (or the .exit
// meta command), and prints results.
//
// Expanded from the teacher's demo entry point (cmd/godb/main.go) into a
// real REPL per spec.md §6, using the pack's CLI stack: cobra for flag
// parsing, liner for line editing/history, color for status output,
// tablewriter for SELECT result rendering.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kraytos17/zdb"
	"github.com/kraytos17/zdb/internal/logging"
	"github.com/kraytos17/zdb/internal/sql"
)

func main() {
	var dbPath string

	root := &cobra.Command{
		Use:   "zdb",
		Short: "zdb is an embedded key/value store with a minimal SQL REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(dbPath)
		},
	}
	root.Flags().StringVarP(&dbPath, "path", "p", "./zdb.db", "path to the data file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

const historyFile = ".zdb_history"

func runREPL(path string) error {
	db, err := zdb.Open(".", path, zdb.Options{Logger: logging.NewStderr()})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	vm := sql.New(db)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	loadHistory(line)
	defer saveHistory(line)

	color.Green("zdb REPL, %s (type .exit to quit)", path)

	var buf strings.Builder
	for {
		prompt := "zdb> "
		if buf.Len() > 0 {
			prompt = "...> "
		}

		text, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}
		trimmed := strings.TrimSpace(text)

		if buf.Len() == 0 && trimmed == ".exit" {
			return nil
		}
		if trimmed == "" {
			continue
		}

		buf.WriteString(text)
		buf.WriteByte('\n')

		if !strings.HasSuffix(trimmed, ";") {
			continue
		}

		stmt := buf.String()
		buf.Reset()
		line.AppendHistory(strings.TrimSpace(stmt))

		if err := execute(vm, stmt); err != nil {
			color.Red("error: %v", err)
		}
	}
}

func execute(vm *sql.VM, stmtText string) error {
	stmt, err := sql.Parse([]byte(stmtText))
	if err != nil {
		return err
	}

	rows, err := vm.Exec(stmt)
	if err != nil {
		return err
	}

	if stmt.Select == nil {
		color.Green("OK")
		return nil
	}
	printRows(rows)
	return nil
}

func printRows(rows []sql.Row) {
	if len(rows) == 0 {
		fmt.Println("(0 rows)")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(rows[0].Columns)
	for _, r := range rows {
		rendered := make([]string, len(r.Values))
		for i, v := range r.Values {
			rendered[i] = v.String()
		}
		table.Append(rendered)
	}
	table.Render()
}

func loadHistory(line *liner.State) {
	f, err := os.Open(historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	line.ReadHistory(f)
}

func saveHistory(line *liner.State) {
	f, err := os.Create(historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

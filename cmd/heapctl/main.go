// Command heapctl is a small operator tool for creating, inspecting, and
// mutating a heap table directly, without going through an embedding
// program.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/heapdb/internal/config"
	"github.com/dshills/heapdb/internal/heap"
	"github.com/dshills/heapdb/internal/log"
	"github.com/dshills/heapdb/internal/storage"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: heapctl -data-dir DIR -table NAME [-schema SPEC] COMMAND [ARGS...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  create                    create the table (requires -schema)\n")
		fmt.Fprintf(os.Stderr, "  drop                      remove the table's backing file\n")
		fmt.Fprintf(os.Stderr, "  insert col=value ...      append a row\n")
		fmt.Fprintf(os.Stderr, "  select [col=value ...]    list handles matching an optional equality filter\n")
		fmt.Fprintf(os.Stderr, "  project BLOCK:RECORD      print one row by handle\n")
		fmt.Fprintf(os.Stderr, "\n-schema is a comma-separated list of name:type pairs, e.g. id:int,name:text\n")
		flag.PrintDefaults()
	}

	dataDir := flag.String("data-dir", "./data", "directory heap files are rooted under")
	logLevel := flag.String("log-level", "", "override the configured log level")
	tableName := flag.String("table", "", "table name")
	schemaSpec := flag.String("schema", "", "schema spec for create, e.g. id:int,name:text")
	flag.Parse()

	if *tableName == "" || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromFlags(*dataDir, *logLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Format: "text"})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var schema heap.Schema
	if *schemaSpec != "" {
		parsed, err := parseSchema(*schemaSpec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		schema = parsed
	}

	table := heap.NewTable(*tableName, schema, cfg.DataDir)

	var err error
	switch command {
	case "create":
		if schema == nil {
			err = fmt.Errorf("create requires -schema")
		} else {
			err = table.Create()
		}
	case "drop":
		err = table.Open()
		if err == nil {
			err = table.Drop()
		}
	case "insert":
		err = runInsert(table, schema, args)
	case "select":
		err = runSelect(table, schema, args)
	case "project":
		err = runProject(table, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseSchema(spec string) (heap.Schema, error) {
	var schema heap.Schema
	for _, field := range strings.Split(spec, ",") {
		parts := strings.SplitN(field, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed schema field %q, want name:type", field)
		}
		var colType heap.ColumnType
		switch strings.ToLower(parts[1]) {
		case "int":
			colType = heap.INT
		case "text":
			colType = heap.TEXT
		default:
			return nil, fmt.Errorf("unknown column type %q in field %q", parts[1], field)
		}
		schema = append(schema, heap.Column{Name: parts[0], Type: colType})
	}
	return schema, nil
}

func parseRow(schema heap.Schema, args []string) (heap.Row, error) {
	row := make(heap.Row, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed assignment %q, want col=value", arg)
		}
		idx := schema.IndexOf(parts[0])
		if idx < 0 {
			return nil, fmt.Errorf("no such column %q", parts[0])
		}
		switch schema[idx].Type {
		case heap.INT:
			n, err := strconv.ParseInt(parts[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", parts[0], err)
			}
			row[parts[0]] = int32(n)
		case heap.TEXT:
			row[parts[0]] = parts[1]
		}
	}
	return row, nil
}

func runInsert(table *heap.Table, schema heap.Schema, args []string) error {
	if schema == nil {
		return fmt.Errorf("insert requires -schema")
	}
	row, err := parseRow(schema, args)
	if err != nil {
		return err
	}
	handle, err := table.Insert(row)
	if err != nil {
		return err
	}
	fmt.Printf("%d:%d\n", handle.BlockID, handle.RecordID)
	return nil
}

func runSelect(table *heap.Table, schema heap.Schema, args []string) error {
	if err := table.Open(); err != nil {
		return err
	}
	var where heap.Row
	if len(args) > 0 {
		if schema == nil {
			return fmt.Errorf("filtering select requires -schema")
		}
		w, err := parseRow(schema, args)
		if err != nil {
			return err
		}
		where = w
	}
	handles, err := table.Select(where)
	if err != nil {
		return err
	}
	for _, h := range handles {
		fmt.Printf("%d:%d\n", h.BlockID, h.RecordID)
	}
	return nil
}

func runProject(table *heap.Table, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("project requires exactly one BLOCK:RECORD argument")
	}
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	if err := table.Open(); err != nil {
		return err
	}
	row, err := table.Project(handle)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	for _, k := range keys {
		fmt.Printf("%s=%v\n", k, row[k])
	}
	return nil
}

func parseHandle(s string) (heap.Handle, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return heap.Handle{}, fmt.Errorf("malformed handle %q, want BLOCK:RECORD", s)
	}
	block, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return heap.Handle{}, fmt.Errorf("invalid block id: %w", err)
	}
	record, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return heap.Handle{}, fmt.Errorf("invalid record id: %w", err)
	}
	return heap.Handle{BlockID: storage.BlockID(block), RecordID: storage.RecordID(record)}, nil
}

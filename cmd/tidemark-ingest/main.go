// Package main implements the tidemark-ingest tool. It ensures the target
// table exists and loads newline-delimited JSON rows into the configured
// datastore backend.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tidemark/tidemark/internal/config"
	"github.com/tidemark/tidemark/internal/datastore"
	"github.com/tidemark/tidemark/pkg/types"
)

const batchSize = 500

func main() {
	_ = godotenv.Load(".env")

	var (
		configPath = flag.String("config", "", "Path to YAML or JSON config file")
		backend    = flag.String("backend", "", "Backend override: warehouse, embedded, mock")
		table      = flag.String("table", "", "Target table identifier")
		schemaSpec = flag.String("schema", "", "Table schema as name:type,name:type,...")
		file       = flag.String("file", "-", "NDJSON input file, - for stdin")
	)
	flag.Parse()

	if *table == "" {
		log.Fatalf("-table is required")
	}
	if *schemaSpec == "" {
		log.Fatalf("-schema is required")
	}

	schema, err := parseSchema(*schemaSpec)
	if err != nil {
		log.Fatalf("Invalid schema: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	registry := datastore.NewRegistry(cfg)
	defer registry.Close()

	var store datastore.Store
	if *backend != "" {
		kind, err := datastore.ParseBackend(*backend)
		if err != nil {
			log.Fatalf("Invalid backend: %v", err)
		}
		store, err = registry.StoreFor(ctx, kind)
		if err != nil {
			log.Fatalf("Failed to initialize %s backend: %v", kind, err)
		}
	} else {
		store, err = registry.Store(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize datastore: %v", err)
		}
	}

	id := types.TableIdentifier(*table)
	if !store.EnsureTableExists(ctx, id, schema) {
		log.Fatalf("Failed to ensure table %s exists", id)
	}
	log.Printf("Table %s ready on %s backend", id, registry.Backend())

	in, err := openInput(*file)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer in.Close()

	total, err := ingest(ctx, store, id, in)
	if err != nil {
		log.Fatalf("Ingest failed after %d rows: %v", total, err)
	}
	log.Printf("Ingested %d rows into %s", total, id)
}

// ingest streams NDJSON rows into the store in fixed-size batches.
func ingest(ctx context.Context, store datastore.Store, table types.TableIdentifier, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var batch []map[string]interface{}
	total := 0
	line := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if !store.InsertRows(ctx, table, batch) {
			return fmt.Errorf("insert of %d rows rejected", len(batch))
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var row map[string]interface{}
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}

	return total, flush()
}

// parseSchema parses a comma-separated list of name:type column specs.
func parseSchema(spec string) (types.TableSchema, error) {
	var schema types.TableSchema
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		nameAndType := strings.SplitN(part, ":", 2)
		if len(nameAndType) != 2 {
			return schema, fmt.Errorf("column %q must be name:type", part)
		}
		typ, err := types.ParseLogicalType(strings.ToUpper(strings.TrimSpace(nameAndType[1])))
		if err != nil {
			return schema, err
		}
		schema.Columns = append(schema.Columns, types.Column{
			Name: strings.TrimSpace(nameAndType[0]),
			Type: typ,
		})
	}
	if err := schema.Validate(); err != nil {
		return schema, err
	}
	return schema, nil
}

// openInput opens the NDJSON source, treating "-" as stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// Package main implements the tidemark-query tool. It runs one SQL query
// against the configured datastore backend and prints the normalized
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tidemark/tidemark/internal/config"
	"github.com/tidemark/tidemark/internal/datastore"
	"github.com/tidemark/tidemark/pkg/types"
)

// paramFlag accumulates repeated -param flags of the form name:type:value.
type paramFlag []types.Parameter

func (p *paramFlag) String() string {
	names := make([]string, 0, len(*p))
	for _, param := range *p {
		names = append(names, param.Name)
	}
	return strings.Join(names, ",")
}

func (p *paramFlag) Set(s string) error {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("parameter %q must be name:type:value", s)
	}

	typ, err := types.ParseLogicalType(strings.ToUpper(parts[1]))
	if err != nil {
		return err
	}

	value, err := parseValue(typ, parts[2])
	if err != nil {
		return fmt.Errorf("parameter %q: %w", parts[0], err)
	}

	*p = append(*p, types.Parameter{Name: parts[0], Type: typ, Value: value})
	return nil
}

// parseValue converts the flag's textual value per the declared type.
// TIMESTAMP and DATE stay textual; the adapters render them natively.
func parseValue(typ types.LogicalType, raw string) (interface{}, error) {
	if raw == "null" {
		return nil, nil
	}
	switch typ {
	case types.TypeInt64:
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return nil, fmt.Errorf("invalid INT64 %q", raw)
		}
		return n, nil
	case types.TypeFloat64:
		var f float64
		if _, err := fmt.Sscanf(raw, "%g", &f); err != nil {
			return nil, fmt.Errorf("invalid FLOAT64 %q", raw)
		}
		return f, nil
	case types.TypeBool:
		switch strings.ToLower(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid BOOL %q", raw)
	case types.TypeBytes:
		return []byte(raw), nil
	default:
		return raw, nil
	}
}

func main() {
	_ = godotenv.Load(".env")

	var (
		configPath = flag.String("config", "", "Path to YAML or JSON config file")
		backend    = flag.String("backend", "", "Backend override: warehouse, embedded, mock")
		sqlText    = flag.String("sql", "", "SQL query to run")
		params     paramFlag
	)
	flag.Var(&params, "param", "Query parameter as name:type:value (repeatable)")
	flag.Parse()

	if *sqlText == "" {
		log.Fatalf("-sql is required")
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

	result := store.Query(ctx, *sqlText, params)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}

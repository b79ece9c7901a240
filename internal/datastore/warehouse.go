package datastore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/tidemark/tidemark/internal/config"
	"github.com/tidemark/tidemark/pkg/types"
)

// Warehouse implements Store on AWS Athena. SQL text is forwarded without
// dialect translation; @name placeholders are converted into Athena's
// positional execution parameters with values rendered as typed literals.
//
// A failed construction leaves the adapter degraded: every operation
// reports a "not initialized" failure instead of attempting a call.
type Warehouse struct {
	client  *athena.Client
	staging *s3.Client
	cfg     config.WarehouseConfig
	initErr error
}

// NewWarehouse builds an Athena-backed warehouse adapter from the ambient
// AWS credentials and the given configuration.
func NewWarehouse(ctx context.Context, cfg config.WarehouseConfig) *Warehouse {
	w := &Warehouse{cfg: cfg}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Printf("warehouse: failed to load AWS config: %v", err)
		w.initErr = fmt.Errorf("load AWS config: %w", err)
		return w
	}

	var athenaOpts []func(*athena.Options)
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		athenaOpts = append(athenaOpts, func(o *athena.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	w.client = athena.NewFromConfig(awsCfg, athenaOpts...)
	w.staging = s3.NewFromConfig(awsCfg, s3Opts...)
	return w
}

// Query forwards the SQL unmodified, binds execution parameters, and
// normalizes the result set.
func (w *Warehouse) Query(ctx context.Context, sqlText string, params []types.Parameter) types.Result {
	if w.initErr != nil {
		return types.Failuref("warehouse datastore not initialized: %v", w.initErr)
	}

	stmt, execParams, err := bindPositional(sqlText, params)
	if err != nil {
		return types.Failuref("warehouse bind failed: %v", err)
	}

	qid, err := w.startAndWait(ctx, stmt, execParams)
	if err != nil {
		log.Printf("warehouse: query failed: %v", err)
		return types.Failuref("warehouse query failed: %v", err)
	}

	return w.fetchResults(ctx, qid)
}

// Execute runs a statement that produces no result rows.
func (w *Warehouse) Execute(ctx context.Context, sqlText string, params []types.Parameter) bool {
	if w.initErr != nil {
		log.Printf("warehouse: execute on uninitialized datastore: %v", w.initErr)
		return false
	}

	stmt, execParams, err := bindPositional(sqlText, params)
	if err != nil {
		log.Printf("warehouse: bind failed: %v", err)
		return false
	}

	if _, err := w.startAndWait(ctx, stmt, execParams); err != nil {
		log.Printf("warehouse: execute failed: %v", err)
		return false
	}
	return true
}

// InsertRows renders one multi-row INSERT statement with typed literals.
func (w *Warehouse) InsertRows(ctx context.Context, table types.TableIdentifier, rows []map[string]interface{}) bool {
	if w.initErr != nil {
		log.Printf("warehouse: insert on uninitialized datastore: %v", w.initErr)
		return false
	}
	if len(rows) == 0 {
		return true
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		literals := make([]string, 0, len(columns))
		for _, col := range columns {
			lit, err := renderValueLiteral(row[col])
			if err != nil {
				log.Printf("warehouse: insert into %s failed: %v", table, err)
				return false
			}
			literals = append(literals, lit)
		}
		tuples = append(tuples, "("+strings.Join(literals, ", ")+")")
	}

	_, database, name := w.resolveIdentifier(table)
	stmt := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		database, name, strings.Join(columns, ", "), strings.Join(tuples, ", "))

	if _, err := w.startAndWait(ctx, stmt, nil); err != nil {
		log.Printf("warehouse: insert into %s failed: %v", table, err)
		return false
	}
	return true
}

// EnsureTableExists is a get-or-create: read the table metadata and issue
// CREATE TABLE only on not-found. An existing table is assumed compatible.
func (w *Warehouse) EnsureTableExists(ctx context.Context, table types.TableIdentifier, schema types.TableSchema) bool {
	if w.initErr != nil {
		log.Printf("warehouse: ensure table on uninitialized datastore: %v", w.initErr)
		return false
	}
	if err := schema.Validate(); err != nil {
		log.Printf("warehouse: invalid schema for %s: %v", table, err)
		return false
	}

	catalog, database, name := w.resolveIdentifier(table)

	_, err := w.client.GetTableMetadata(ctx, &athena.GetTableMetadataInput{
		CatalogName:  aws.String(catalog),
		DatabaseName: aws.String(database),
		TableName:    aws.String(name),
	})
	if err == nil {
		return true
	}
	if !isTableNotFound(err) {
		log.Printf("warehouse: metadata lookup for %s failed: %v", table, err)
		return false
	}

	// Seed the table's data prefix so the DDL location resolves.
	marker := path.Join(w.cfg.DataPrefix, name) + "/"
	if _, err := w.staging.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.cfg.DataBucket),
		Key:    aws.String(marker),
		Body:   bytes.NewReader(nil),
	}); err != nil {
		log.Printf("warehouse: failed to seed data location for %s: %v", table, err)
		return false
	}

	ddl, err := w.buildCreateTable(database, name, schema)
	if err != nil {
		log.Printf("warehouse: cannot create %s: %v", table, err)
		return false
	}

	if _, err := w.startAndWait(ctx, ddl, nil); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return true
		}
		log.Printf("warehouse: create table %s failed: %v", table, err)
		return false
	}
	return true
}

// startAndWait submits the query and polls until it reaches a terminal
// state, returning the execution ID on success. No timeout is added
// beyond ctx and whatever the transport provides.
func (w *Warehouse) startAndWait(ctx context.Context, stmt string, execParams []string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString:        aws.String(stmt),
		ClientRequestToken: aws.String(uuid.NewString()),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Catalog:  aws.String(w.cfg.Catalog),
			Database: aws.String(w.cfg.Database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(w.cfg.OutputLocation),
		},
	}
	if w.cfg.Workgroup != "" {
		input.WorkGroup = aws.String(w.cfg.Workgroup)
	}
	if len(execParams) > 0 {
		input.ExecutionParameters = execParams
	}

	started, err := w.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	qid := aws.ToString(started.QueryExecutionId)

	for {
		out, err := w.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return "", fmt.Errorf("get query execution %s: %w", qid, err)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return qid, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(status.StateChangeReason)
			if reason == "" {
				reason = string(status.State)
			}
			return "", fmt.Errorf("query %s: %s", qid, reason)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// fetchResults pages through the result set and normalizes it. Athena
// returns the column labels as the first row of the first page for
// SELECT queries; that header row is skipped.
func (w *Warehouse) fetchResults(ctx context.Context, qid string) types.Result {
	paginator := athena.NewGetQueryResultsPaginator(w.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(qid),
	})

	var columns []string
	var colTypes []string
	var out []map[string]interface{}
	firstPage := true

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Printf("warehouse: fetch results for %s failed: %v", qid, err)
			return types.Failuref("warehouse fetch results failed: %v", err)
		}
		if page.ResultSet == nil {
			continue
		}

		if columns == nil && page.ResultSet.ResultSetMetadata != nil {
			for _, ci := range page.ResultSet.ResultSetMetadata.ColumnInfo {
				columns = append(columns, aws.ToString(ci.Label))
				colTypes = append(colTypes, strings.ToLower(aws.ToString(ci.Type)))
			}
		}

		rows := page.ResultSet.Rows
		if firstPage {
			firstPage = false
			if isHeaderRow(rows, columns) {
				rows = rows[1:]
			}
		}

		for _, r := range rows {
			row := make(map[string]interface{}, len(columns))
			for i, d := range r.Data {
				if i >= len(columns) {
					break
				}
				if d.VarCharValue == nil {
					row[columns[i]] = nil
					continue
				}
				row[columns[i]] = convertAthenaValue(colTypes[i], aws.ToString(d.VarCharValue))
			}
			out = append(out, row)
		}
	}

	return types.NewResult(columns, out)
}

// resolveIdentifier splits catalog.database.table, falling back to the
// configured defaults for missing leading segments.
func (w *Warehouse) resolveIdentifier(table types.TableIdentifier) (catalog, database, name string) {
	segs := table.Segments()
	switch len(segs) {
	case 3:
		return segs[0], segs[1], segs[2]
	case 2:
		return w.cfg.Catalog, segs[0], segs[1]
	default:
		return w.cfg.Catalog, w.cfg.Database, table.Leaf()
	}
}

// buildCreateTable renders the Iceberg CREATE TABLE DDL with the fixed
// LogicalType to Athena type mapping.
func (w *Warehouse) buildCreateTable(database, name string, schema types.TableSchema) (string, error) {
	defs := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		native, err := athenaType(col.Type)
		if err != nil {
			return "", err
		}
		defs = append(defs, col.Name+" "+native)
	}

	location := fmt.Sprintf("s3://%s/%s", w.cfg.DataBucket, path.Join(w.cfg.DataPrefix, name))
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s (%s) LOCATION '%s' TBLPROPERTIES ('table_type'='ICEBERG', 'format'='parquet')",
		database, name, strings.Join(defs, ", "), location), nil
}

// athenaType maps a logical type to its fixed Athena column type. The
// mapping is total over the logical type set.
func athenaType(t types.LogicalType) (string, error) {
	switch t {
	case types.TypeString:
		return "string", nil
	case types.TypeInt64:
		return "bigint", nil
	case types.TypeFloat64:
		return "double", nil
	case types.TypeBool:
		return "boolean", nil
	case types.TypeTimestamp:
		return "timestamp", nil
	case types.TypeDate:
		return "date", nil
	case types.TypeBytes:
		return "binary", nil
	default:
		return "", fmt.Errorf("unmapped logical type %s", t)
	}
}

// bindPositional replaces each @name occurrence with Athena's positional
// marker and renders the referenced parameter as a typed literal, in
// order of appearance. Repeated references re-render the same parameter.
func bindPositional(sqlText string, params []types.Parameter) (string, []string, error) {
	byName, err := indexParameters(params)
	if err != nil {
		return "", nil, err
	}

	var execParams []string
	var bindErr error
	stmt := placeholderRe.ReplaceAllStringFunc(sqlText, func(m string) string {
		if bindErr != nil {
			return m
		}
		name := m[1:]
		p, ok := byName[name]
		if !ok {
			bindErr = fmt.Errorf("no parameter bound for placeholder @%s", name)
			return m
		}
		lit, err := renderParameterLiteral(p)
		if err != nil {
			bindErr = err
			return m
		}
		execParams = append(execParams, lit)
		return "?"
	})
	if bindErr != nil {
		return "", nil, bindErr
	}
	return stmt, execParams, nil
}

// renderParameterLiteral renders a parameter as an Athena execution
// parameter literal, typed per its declared logical type.
func renderParameterLiteral(p types.Parameter) (string, error) {
	if p.Value == nil {
		return "NULL", nil
	}
	switch p.Type {
	case types.TypeString:
		return quoteString(fmt.Sprintf("%v", p.Value)), nil
	case types.TypeInt64:
		switch v := p.Value.(type) {
		case int:
			return strconv.FormatInt(int64(v), 10), nil
		case int32:
			return strconv.FormatInt(int64(v), 10), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatInt(int64(v), 10), nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as INT64", p.Name, p.Value)
	case types.TypeFloat64:
		switch v := p.Value.(type) {
		case float32:
			return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case int:
			return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
		case int64:
			return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as FLOAT64", p.Name, p.Value)
	case types.TypeBool:
		if v, ok := p.Value.(bool); ok {
			return strconv.FormatBool(v), nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as BOOL", p.Name, p.Value)
	case types.TypeTimestamp:
		switch v := p.Value.(type) {
		case time.Time:
			return "TIMESTAMP '" + v.UTC().Format("2006-01-02 15:04:05.000") + "'", nil
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return "TIMESTAMP '" + t.UTC().Format("2006-01-02 15:04:05.000") + "'", nil
			}
			return "TIMESTAMP '" + strings.ReplaceAll(v, "'", "''") + "'", nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as TIMESTAMP", p.Name, p.Value)
	case types.TypeDate:
		switch v := p.Value.(type) {
		case time.Time:
			return "DATE '" + v.UTC().Format("2006-01-02") + "'", nil
		case string:
			return "DATE '" + strings.ReplaceAll(v, "'", "''") + "'", nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as DATE", p.Name, p.Value)
	case types.TypeBytes:
		if v, ok := p.Value.([]byte); ok {
			return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
		}
		return "", fmt.Errorf("parameter %q: cannot render %T as BYTES", p.Name, p.Value)
	default:
		return "", fmt.Errorf("parameter %q: unmapped logical type %s", p.Name, p.Type)
	}
}

// renderValueLiteral renders an inserted row value by its Go kind.
func renderValueLiteral(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case time.Time:
		return "TIMESTAMP '" + val.UTC().Format("2006-01-02 15:04:05.000") + "'", nil
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(val)) + "'", nil
	default:
		return "", fmt.Errorf("cannot render %T as a SQL literal", v)
	}
}

// quoteString single-quotes a string literal, doubling embedded quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// isHeaderRow reports whether the first result row repeats the column
// labels, which Athena emits for SELECT queries.
func isHeaderRow(rows []athenatypes.Row, columns []string) bool {
	if len(rows) == 0 || len(columns) == 0 || len(rows[0].Data) != len(columns) {
		return false
	}
	for i, d := range rows[0].Data {
		if d.VarCharValue == nil || *d.VarCharValue != columns[i] {
			return false
		}
	}
	return true
}

// convertAthenaValue parses a result cell per Athena's column type
// metadata; unrecognized types pass through as text.
func convertAthenaValue(athenaType, raw string) interface{} {
	switch athenaType {
	case "tinyint", "smallint", "integer", "int", "bigint":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "float", "real", "double", "decimal":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// isTableNotFound classifies a GetTableMetadata error as "table absent"
// rather than a transport or permission failure.
func isTableNotFound(err error) bool {
	var metadataErr *athenatypes.MetadataException
	if errors.As(err, &metadataErr) {
		return true
	}
	var notFound *athenatypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

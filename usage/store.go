package usage

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/xun/capsule"
	"github.com/yaoapp/xun/dbal/query"
	"github.com/yaoapp/xun/dbal/schema"
)

// Table names
const (
	requestTable = "api_requests"
	summaryTable = "model_usage_summary"
)

// Store persists usage rows in an embedded sqlite database through
// the xun query builder
type Store struct {
	manager *capsule.Manager
	query   query.Query
	schema  schema.Schema
}

// OpenStore opens the database and migrates the tables
func OpenStore(dbPath string) (*Store, error) {
	manager := capsule.New()
	_, err := manager.Add("primary-0", "sqlite3", dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("open usage db %s: %s", dbPath, err.Error())
	}

	store := &Store{
		manager: manager,
		query:   manager.Query(),
		schema:  manager.Schema(),
	}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// migrate creates the tables on first run
func (store *Store) migrate() error {

	has, err := store.schema.HasTable(requestTable)
	if err != nil {
		return err
	}
	if !has {
		err = store.schema.CreateTable(requestTable, func(table schema.Blueprint) {
			table.ID("id")
			table.String("request_id", 200).Index()
			table.String("tier", 20).Index()
			table.String("model_requested", 200).Null()
			table.String("model_routed", 200).Index()
			table.String("endpoint", 255).Null()
			table.Boolean("stream").SetDefault(false)
			table.String("status", 20).Index()
			table.String("error_message", 255).Null()
			table.Integer("duration_ms").SetDefault(0)
			table.Integer("input_tokens").SetDefault(0)
			table.Integer("output_tokens").SetDefault(0)
			table.Integer("thinking_tokens").SetDefault(0)
			table.Integer("total_tokens").SetDefault(0)
			table.Float("tokens_per_second").SetDefault(0)
			table.Float("cost_usd").SetDefault(0)
			table.Integer("message_count").SetDefault(0)
			table.Boolean("has_system").SetDefault(false)
			table.Boolean("has_tools").SetDefault(false)
			table.Boolean("has_images").SetDefault(false)
			table.Boolean("has_json").SetDefault(false)
			table.Integer("json_bytes").SetDefault(0)
			table.TimestampTz("created_at").SetDefaultRaw("CURRENT_TIMESTAMP").Index()
		})
		if err != nil {
			return err
		}
		log.Trace("[usage] create table %s", requestTable)
	}

	has, err = store.schema.HasTable(summaryTable)
	if err != nil {
		return err
	}
	if !has {
		err = store.schema.CreateTable(summaryTable, func(table schema.Blueprint) {
			table.ID("id")
			table.String("model", 200).Unique().Index()
			table.Integer("requests").SetDefault(0)
			table.Integer("input_tokens").SetDefault(0)
			table.Integer("output_tokens").SetDefault(0)
			table.Integer("thinking_tokens").SetDefault(0)
			table.Float("cost_usd").SetDefault(0)
			table.TimestampTz("updated_at").Null()
		})
		if err != nil {
			return err
		}
		log.Trace("[usage] create table %s", summaryTable)
	}
	return nil
}

// insertBatch writes one flush of records and folds them into the
// per-model aggregate. Called only from the queue consumer.
func (store *Store) insertBatch(records []Record) error {
	values := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		values = append(values, map[string]interface{}{
			"request_id":        record.RequestID,
			"tier":              record.Tier,
			"model_requested":   record.ModelRequested,
			"model_routed":      record.ModelRouted,
			"endpoint":          record.Endpoint,
			"stream":            record.Stream,
			"status":            record.Status,
			"error_message":     record.ErrorMessage,
			"duration_ms":       record.DurationMs,
			"input_tokens":      record.InputTokens,
			"output_tokens":     record.OutputTokens,
			"thinking_tokens":   record.ThinkingTokens,
			"total_tokens":      record.TotalTokens,
			"tokens_per_second": record.TokensPerSecond,
			"cost_usd":          record.CostUSD,
			"message_count":     record.MessageCount,
			"has_system":        record.HasSystem,
			"has_tools":         record.HasTools,
			"has_images":        record.HasImages,
			"has_json":          record.HasJSON,
			"json_bytes":        record.JSONBytes,
			"created_at":        record.CreatedAt,
		})
	}

	if err := store.query.New().Table(requestTable).Insert(values); err != nil {
		return err
	}

	for _, record := range records {
		if err := store.foldSummary(record); err != nil {
			log.Warn("[usage] summary update: %s", err.Error())
		}
	}
	return nil
}

// foldSummary accumulates one record into model_usage_summary
func (store *Store) foldSummary(record Record) error {
	qb := store.query.New().Table(summaryTable)
	row, err := qb.Where("model", record.ModelRouted).First()
	if err != nil || row.Get("model") == nil {
		return store.query.New().Table(summaryTable).Insert(map[string]interface{}{
			"model":           record.ModelRouted,
			"requests":        1,
			"input_tokens":    record.InputTokens,
			"output_tokens":   record.OutputTokens,
			"thinking_tokens": record.ThinkingTokens,
			"cost_usd":        record.CostUSD,
			"updated_at":      time.Now(),
		})
	}

	_, err = store.query.New().Table(summaryTable).
		Where("model", record.ModelRouted).
		Update(map[string]interface{}{
			"requests":        cast.ToInt(row.Get("requests")) + 1,
			"input_tokens":    cast.ToInt(row.Get("input_tokens")) + record.InputTokens,
			"output_tokens":   cast.ToInt(row.Get("output_tokens")) + record.OutputTokens,
			"thinking_tokens": cast.ToInt(row.Get("thinking_tokens")) + record.ThinkingTokens,
			"cost_usd":        cast.ToFloat64(row.Get("cost_usd")) + record.CostUSD,
			"updated_at":      time.Now(),
		})
	return err
}

// window returns rows inside the last windowDays, newest first
func (store *Store) window(windowDays int) ([]Record, error) {
	qb := store.query.New().Table(requestTable).OrderBy("id", "desc")
	if windowDays > 0 {
		since := time.Now().AddDate(0, 0, -windowDays)
		qb.Where("created_at", ">=", since)
	}

	rows, err := qb.Get()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			RequestID:       cast.ToString(row.Get("request_id")),
			Tier:            cast.ToString(row.Get("tier")),
			ModelRequested:  cast.ToString(row.Get("model_requested")),
			ModelRouted:     cast.ToString(row.Get("model_routed")),
			Endpoint:        cast.ToString(row.Get("endpoint")),
			Stream:          cast.ToBool(row.Get("stream")),
			Status:          cast.ToString(row.Get("status")),
			ErrorMessage:    cast.ToString(row.Get("error_message")),
			DurationMs:      cast.ToInt64(row.Get("duration_ms")),
			InputTokens:     cast.ToInt(row.Get("input_tokens")),
			OutputTokens:    cast.ToInt(row.Get("output_tokens")),
			ThinkingTokens:  cast.ToInt(row.Get("thinking_tokens")),
			TotalTokens:     cast.ToInt(row.Get("total_tokens")),
			TokensPerSecond: cast.ToFloat64(row.Get("tokens_per_second")),
			CostUSD:         cast.ToFloat64(row.Get("cost_usd")),
			MessageCount:    cast.ToInt(row.Get("message_count")),
			HasSystem:       cast.ToBool(row.Get("has_system")),
			HasTools:        cast.ToBool(row.Get("has_tools")),
			HasImages:       cast.ToBool(row.Get("has_images")),
			HasJSON:         cast.ToBool(row.Get("has_json")),
			JSONBytes:       cast.ToInt(row.Get("json_bytes")),
			CreatedAt:       cast.ToTime(row.Get("created_at")),
		})
	}
	return records, nil
}

// recent returns the newest limit rows
func (store *Store) recent(limit int) ([]Record, error) {
	qb := store.query.New().Table(requestTable).OrderBy("id", "desc").Limit(limit)
	rows, err := qb.Get()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			HasJSON:   cast.ToBool(row.Get("has_json")),
			JSONBytes: cast.ToInt(row.Get("json_bytes")),
		})
	}
	return records, nil
}

// Close closes the database connections
func (store *Store) Close() error {
	messages := []string{}
	store.manager.Connections.Range(func(key, value any) bool {
		if conn, ok := value.(*capsule.Connection); ok {
			if err := conn.Close(); err != nil {
				messages = append(messages, err.Error())
			}
		}
		return true
	})
	if len(messages) > 0 {
		return fmt.Errorf("close usage db: %v", messages)
	}
	return nil
}

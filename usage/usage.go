package usage

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/yaoapp/kun/log"
)

// Queue and flush tuning
const (
	queueSize     = 1024
	flushInterval = 100 * time.Millisecond
	flushRows     = 50
)

// Record one request's usage row
type Record struct {
	RequestID       string    `json:"request_id"`
	Tier            string    `json:"tier"`
	ModelRequested  string    `json:"model_requested"`
	ModelRouted     string    `json:"model_routed"`
	Endpoint        string    `json:"endpoint,omitempty"`
	Stream          bool      `json:"stream"`
	Status          string    `json:"status"` // ok | error
	ErrorMessage    string    `json:"error_message,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	ThinkingTokens  int       `json:"thinking_tokens"`
	TotalTokens     int       `json:"total_tokens"`
	TokensPerSecond float64   `json:"tokens_per_second"`
	CostUSD         float64   `json:"cost_usd"`
	MessageCount    int       `json:"message_count"`
	HasSystem       bool      `json:"has_system"`
	HasTools        bool      `json:"has_tools"`
	HasImages       bool      `json:"has_images"`
	HasJSON         bool      `json:"has_json"`
	JSONBytes       int       `json:"json_bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// ModelStat one row of the top-models report
type ModelStat struct {
	Model        string  `json:"model"`
	RequestCount int     `json:"request_count"`
	TotalTokens  int     `json:"total_tokens"`
	AvgCostUSD   float64 `json:"avg_cost_usd"`
}

// Summary the aggregate report over a window
type Summary struct {
	Requests        int           `json:"requests"`
	Tokens          SummaryTokens `json:"tokens"`
	CostUSD         float64       `json:"cost_usd"`
	AvgLatencyMs    float64       `json:"avg_latency_ms"`
	AvgTokensPerSec float64       `json:"avg_tokens_per_sec"`
}

// SummaryTokens the token split of a summary
type SummaryTokens struct {
	Input    int `json:"input"`
	Output   int `json:"output"`
	Thinking int `json:"thinking"`
}

// Meter batches usage rows into the store without blocking the
// response path. Enqueue drops the oldest pending row when the queue
// is full.
type Meter struct {
	store   *Store
	queue   chan Record
	done    chan struct{}
	stopped chan struct{}
	dropped atomic.Int64
}

// Open opens the usage database and starts the write consumer
func Open(dbPath string) (*Meter, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}

	meter := &Meter{
		store:   store,
		queue:   make(chan Record, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go meter.consume()
	return meter, nil
}

// Log enqueues one record. It never blocks; when the queue is full
// the oldest pending row is dropped and counted.
func (m *Meter) Log(record Record) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.CostUSD == 0 {
		record.CostUSD = EstimateCost(record.ModelRouted, record.InputTokens, record.OutputTokens)
	}
	if record.TotalTokens == 0 {
		record.TotalTokens = record.InputTokens + record.OutputTokens + record.ThinkingTokens
	}
	if record.TokensPerSecond == 0 && record.DurationMs > 0 {
		record.TokensPerSecond = float64(record.OutputTokens) / (float64(record.DurationMs) / 1000)
	}

	for {
		select {
		case m.queue <- record:
			return
		default:
		}
		select {
		case <-m.queue:
			m.dropped.Add(1)
		default:
		}
	}
}

// Dropped the number of rows lost to backpressure
func (m *Meter) Dropped() int64 {
	return m.dropped.Load()
}

// consume is the single writer: flush every 100 ms or 50 rows
func (m *Meter) consume() {
	defer close(m.stopped)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, flushRows)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := m.store.insertBatch(batch); err != nil {
			log.Error("[usage] flush %d rows: %s", len(batch), err.Error())
		}
		batch = batch[:0]
	}

	for {
		select {
		case record := <-m.queue:
			batch = append(batch, record)
			if len(batch) >= flushRows {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-m.done:
			for {
				select {
				case record := <-m.queue:
					batch = append(batch, record)
				default:
					flush()
					return
				}
			}
		}
	}
}

// TopModels reports the most used models inside the window
func (m *Meter) TopModels(limit, windowDays int) ([]ModelStat, error) {
	records, err := m.store.window(windowDays)
	if err != nil {
		return nil, err
	}

	type agg struct {
		requests int
		tokens   int
		cost     float64
	}
	byModel := map[string]*agg{}
	order := []string{}
	for _, record := range records {
		a, ok := byModel[record.ModelRouted]
		if !ok {
			a = &agg{}
			byModel[record.ModelRouted] = a
			order = append(order, record.ModelRouted)
		}
		a.requests++
		a.tokens += record.InputTokens + record.OutputTokens
		a.cost += record.CostUSD
	}

	stats := make([]ModelStat, 0, len(order))
	for _, model := range order {
		a := byModel[model]
		stats = append(stats, ModelStat{
			Model:        model,
			RequestCount: a.requests,
			TotalTokens:  a.tokens,
			AvgCostUSD:   a.cost / float64(a.requests),
		})
	}

	// highest request count first
	for i := 0; i < len(stats); i++ {
		for j := i + 1; j < len(stats); j++ {
			if stats[j].RequestCount > stats[i].RequestCount {
				stats[i], stats[j] = stats[j], stats[i]
			}
		}
	}

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// GetSummary aggregates the window into one report
func (m *Meter) GetSummary(days int) (*Summary, error) {
	records, err := m.store.window(days)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	var totalLatency int64
	var totalSeconds float64
	for _, record := range records {
		summary.Requests++
		summary.Tokens.Input += record.InputTokens
		summary.Tokens.Output += record.OutputTokens
		summary.Tokens.Thinking += record.ThinkingTokens
		summary.CostUSD += record.CostUSD
		totalLatency += record.DurationMs
		totalSeconds += float64(record.DurationMs) / 1000
	}

	if summary.Requests > 0 {
		summary.AvgLatencyMs = float64(totalLatency) / float64(summary.Requests)
	}
	if totalSeconds > 0 {
		summary.AvgTokensPerSec = float64(summary.Tokens.Output) / totalSeconds
	}
	return summary, nil
}

// ExportCSV writes the window to a CSV file
func (m *Meter) ExportCSV(path string, windowDays int) error {
	records, err := m.store.window(windowDays)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"request_id", "tier", "model_requested", "model_routed", "endpoint",
		"stream", "status", "error_message", "duration_ms",
		"input_tokens", "output_tokens", "thinking_tokens", "total_tokens",
		"tokens_per_second", "cost_usd", "message_count",
		"has_system", "has_tools", "has_images", "has_json", "json_bytes",
		"created_at",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			record.RequestID, record.Tier, record.ModelRequested, record.ModelRouted, record.Endpoint,
			fmt.Sprintf("%t", record.Stream), record.Status, record.ErrorMessage,
			fmt.Sprintf("%d", record.DurationMs),
			fmt.Sprintf("%d", record.InputTokens),
			fmt.Sprintf("%d", record.OutputTokens),
			fmt.Sprintf("%d", record.ThinkingTokens),
			fmt.Sprintf("%d", record.TotalTokens),
			fmt.Sprintf("%.2f", record.TokensPerSecond),
			fmt.Sprintf("%.6f", record.CostUSD),
			fmt.Sprintf("%d", record.MessageCount),
			fmt.Sprintf("%t", record.HasSystem),
			fmt.Sprintf("%t", record.HasTools),
			fmt.Sprintf("%t", record.HasImages),
			fmt.Sprintf("%t", record.HasJSON),
			fmt.Sprintf("%d", record.JSONBytes),
			record.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// RecommendTOON reports whether the recent traffic is JSON-heavy
// enough that a token-oriented notation would pay off: over the last
// 20 requests, json ratio above 30%, average json region above 500
// bytes, and total above 10 KB
func (m *Meter) RecommendTOON() (bool, error) {
	records, err := m.store.recent(20)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	withJSON, totalBytes := 0, 0
	for _, record := range records {
		if record.HasJSON {
			withJSON++
			totalBytes += record.JSONBytes
		}
	}
	if withJSON == 0 {
		return false, nil
	}

	ratio := float64(withJSON) / float64(len(records))
	avg := float64(totalBytes) / float64(withJSON)
	return ratio > 0.30 && avg > 500 && totalBytes > 10*1024, nil
}

// Close drains the queue, flushes, and closes the database
func (m *Meter) Close() error {
	close(m.done)
	<-m.stopped
	return m.store.Close()
}

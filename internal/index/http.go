// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// HTTPConfig configures the remote backend client.
type HTTPConfig struct {
	// BaseURL is the root of the Elasticsearch-compatible API.
	BaseURL string

	// Timeout bounds each request.
	Timeout time.Duration

	// BulkBatchSize is the record count per bulk request.
	BulkBatchSize int

	// BulkRatePerSec throttles bulk requests. Zero disables throttling.
	BulkRatePerSec float64

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit.
	BreakerFailureThreshold uint32
}

// HTTPBackend implements Backend against an Elasticsearch-compatible REST
// API. All calls run through a circuit breaker; bulk writes are additionally
// chunked and rate limited so a large publish cannot saturate the backend.
type HTTPBackend struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	batch   int
	logger  zerolog.Logger
}

// NewHTTPBackend creates a remote backend client.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPBackend(cfg HTTPConfig, logger zerolog.Logger) *HTTPBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BulkBatchSize < 1 {
		cfg.BulkBatchSize = 500
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}

	log := logger.With().Str("component", "index_http").Logger()

	settings := gobreaker.Settings{
		Name:    "index-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			// gobreaker orders states closed=0, half-open=1, open=2.
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	var limiter *rate.Limiter
	if cfg.BulkRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BulkRatePerSec), 1)
	}

	return &HTTPBackend{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		limiter: limiter,
		batch:   cfg.BulkBatchSize,
		logger:  log,
	}
}

// CreateIndex declares the index with exact-match mappings: keyword types,
// no analysis, no norms.
func (b *HTTPBackend) CreateIndex(ctx context.Context, name string, fields map[string]FieldType) error {
	properties := make(map[string]map[string]any, len(fields))
	for field, ft := range fields {
		properties[field] = mappingFor(ft)
	}
	body := map[string]any{
		"mappings": map[string]any{"properties": properties},
	}

	status, respBody, err := b.do(ctx, http.MethodPut, "/"+name, body)
	if err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}
	switch {
	case status == http.StatusBadRequest && strings.Contains(string(respBody), "resource_already_exists"):
		return fmt.Errorf("create index %q: %w", name, ErrIndexExists)
	case status >= 300:
		return fmt.Errorf("create index %q: status %d: %s", name, status, respBody)
	}

	b.logger.Debug().Str("index", name).Int("fields", len(fields)).Msg("index created")
	return nil
}

// mappingFor translates a field type to index mapping settings. Norms and
// analysis stay disabled so identifiers and tags match exactly.
func mappingFor(ft FieldType) map[string]any {
	switch ft {
	case FieldDouble:
		return map[string]any{"type": "double"}
	case FieldDate:
		return map[string]any{"type": "date"}
	default:
		// keyword and keyword_list share the same mapping; lists are a
		// document-level shape, not a mapping-level one.
		return map[string]any{"type": "keyword", "norms": false}
	}
}

// BulkWrite chunks records into NDJSON bulk requests.
func (b *HTTPBackend) BulkWrite(ctx context.Context, name string, records []models.FusedRecord) error {
	for start := 0; start < len(records); start += b.batch {
		end := start + b.batch
		if end > len(records) {
			end = len(records)
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := b.bulkChunk(ctx, name, records[start:end]); err != nil {
			return fmt.Errorf("bulk write %q records %d-%d: %w", name, start, end, err)
		}
	}
	b.logger.Debug().Str("index", name).Int("records", len(records)).Msg("bulk write complete")
	return nil
}

func (b *HTTPBackend) bulkChunk(ctx context.Context, name string, records []models.FusedRecord) error {
	metrics.BulkBatchSize.Observe(float64(len(records)))

	var buf bytes.Buffer
	for i := range records {
		action, err := json.Marshal(map[string]any{
			"index": map[string]string{"_index": name, "_id": records[i].ID},
		})
		if err != nil {
			return err
		}
		doc, err := encodeRecord(&records[i])
		if err != nil {
			return err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	status, respBody, err := b.doRaw(ctx, http.MethodPost, "/_bulk", buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("status %d: %s", status, respBody)
	}

	// The bulk endpoint reports item-level failures with a 200.
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &result); err == nil && result.Errors {
		return fmt.Errorf("bulk response reported item failures")
	}
	return nil
}

// SwapAlias issues one atomic _aliases action list removing the old binding
// and adding the new one. The backend applies the action list atomically;
// readers never see the alias unbound or doubly bound.
func (b *HTTPBackend) SwapAlias(ctx context.Context, alias, from, to string) error {
	actions := make([]map[string]any, 0, 2)
	if from != "" {
		actions = append(actions, map[string]any{
			"remove": map[string]string{"index": from, "alias": alias},
		})
	}
	actions = append(actions, map[string]any{
		"add": map[string]string{"index": to, "alias": alias},
	})

	status, respBody, err := b.do(ctx, http.MethodPost, "/_aliases", map[string]any{"actions": actions})
	if err != nil {
		return fmt.Errorf("swap alias %q: %w", alias, err)
	}
	if status >= 300 {
		return fmt.Errorf("swap alias %q: status %d: %s", alias, status, respBody)
	}

	b.logger.Info().Str("alias", alias).Str("from", from).Str("to", to).Msg("alias swapped")
	return nil
}

// DeleteIndex removes the index.
func (b *HTTPBackend) DeleteIndex(ctx context.Context, name string) error {
	status, respBody, err := b.do(ctx, http.MethodDelete, "/"+name, nil)
	if err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("delete index %q: %w", name, ErrIndexNotFound)
	case status >= 300:
		return fmt.Errorf("delete index %q: status %d: %s", name, status, respBody)
	}
	return nil
}

// AliasTarget resolves the alias; 404 means unset.
func (b *HTTPBackend) AliasTarget(ctx context.Context, alias string) (string, error) {
	status, respBody, err := b.do(ctx, http.MethodGet, "/_alias/"+alias, nil)
	if err != nil {
		return "", fmt.Errorf("resolve alias %q: %w", alias, err)
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status >= 300 {
		return "", fmt.Errorf("resolve alias %q: status %d: %s", alias, status, respBody)
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("resolve alias %q: decode: %w", alias, err)
	}
	for indexName := range result {
		return indexName, nil
	}
	return "", nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
	}
	return b.doRaw(ctx, method, path, payload, "application/json")
}

func (b *HTTPBackend) doRaw(ctx context.Context, method, path string, payload []byte, contentType string) (int, []byte, error) {
	resp, err := b.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, b.base+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}
		return b.client.Do(req)
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"resort/internal/config"
	"resort/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient представляет клиент для индекса бронирований
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// reservationDocument is the indexed projection of a reservation
type reservationDocument struct {
	Code            string    `json:"code"`
	AccommodationID string    `json:"accommodation_id"`
	GuestName       string    `json:"guest_name"`
	GuestEmail      string    `json:"guest_email"`
	GuestPhone      string    `json:"guest_phone"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	WalkIn          bool      `json:"walk_in"`
	Total           int64     `json:"total"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newDocument(r *models.Reservation) reservationDocument {
	return reservationDocument{
		Code:            r.Code,
		AccommodationID: r.AccommodationID,
		GuestName:       r.Guest.Name,
		GuestEmail:      r.Guest.Email,
		GuestPhone:      r.Guest.Phone,
		Status:          string(r.Status),
		PaymentStatus:   string(r.PaymentStatus),
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		WalkIn:          r.WalkIn,
		Total:           r.Amount.Total,
		UpdatedAt:       r.UpdatedAt,
	}
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"code":             map[string]any{"type": "keyword"},
				"accommodation_id": map[string]any{"type": "keyword"},
				"guest_name": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
					},
				},
				"guest_email":    map[string]any{"type": "text", "analyzer": "simple"},
				"guest_phone":    map[string]any{"type": "keyword"},
				"status":         map[string]any{"type": "keyword"},
				"payment_status": map[string]any{"type": "keyword"},
				"start_at":       map[string]any{"type": "date"},
				"end_at":         map[string]any{"type": "date"},
				"walk_in":        map[string]any{"type": "boolean"},
				"total":          map[string]any{"type": "long"},
				"updated_at":     map[string]any{"type": "date"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(body),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexReservation индексирует бронирование по коду
func (c *ElasticsearchClient) IndexReservation(ctx context.Context, r *models.Reservation) error {
	body, err := json.Marshal(newDocument(r))
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: r.Code,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index reservation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteReservation удаляет бронирование из индекса
func (c *ElasticsearchClient) DeleteReservation(ctx context.Context, code string) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: code,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// Search returns reservation codes matching a free-text query, best match first.
func (c *ElasticsearchClient) Search(ctx context.Context, query string, page, pageSize int) ([]string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if page > 1 {
		from = (page - 1) * pageSize
	}

	searchRequest := map[string]any{
		"query":   buildSearchQuery(query),
		"sort":    []any{map[string]any{"_score": "desc"}, map[string]any{"start_at": "desc"}},
		"from":    from,
		"size":    pageSize,
		"_source": []string{"code"},
	}

	body, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index:          []string{c.config.Index},
		Body:           bytes.NewReader(body),
		TrackTotalHits: true,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					Code string `json:"code"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	codes := make([]string, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		codes[i] = hit.Source.Code
	}

	return codes, response.Hits.Total.Value, nil
}

// buildSearchQuery строит поисковый запрос
func buildSearchQuery(query string) map[string]any {
	if query == "" {
		return map[string]any{"match_all": map[string]any{}}
	}

	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"term": map[string]any{"code": map[string]any{"value": query, "boost": 10}}},
				map[string]any{"term": map[string]any{"accommodation_id": map[string]any{"value": query, "boost": 3}}},
				map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"guest_name^2", "guest_email"},
						"fuzziness": "AUTO",
					},
				},
				map[string]any{"term": map[string]any{"guest_phone": query}},
			},
			"minimum_should_match": 1,
		},
	}
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}

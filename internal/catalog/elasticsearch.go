// internal/catalog/elasticsearch.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Query narrows a catalog search. Empty slices mean "no restriction".
type Query struct {
	Locations  []string
	JobTypes   []models.JobType
	OnlyActive bool
	From       int
	Size       int
}

// Catalog is the read-only posting source consumed by the matcher.
type Catalog interface {
	Search(ctx context.Context, q Query) ([]models.JobPosting, error)
}

// ElasticsearchCatalog serves postings from an Elasticsearch index.
// Result order is index-natural; no relevance scoring is applied.
type ElasticsearchCatalog struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchCatalog(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchCatalog {
	return &ElasticsearchCatalog{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

func (c *ElasticsearchCatalog) Search(ctx context.Context, q Query) ([]models.JobPosting, error) {
	queryBody := buildSearchQuery(q)

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog query: %w", err)
	}

	size := q.Size
	if size <= 0 {
		size = 50
	}
	from := q.From

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("catalog search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string            `json:"_id"`
				Source models.JobPosting `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	postings := make([]models.JobPosting, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		posting := hit.Source
		if posting.ID == "" {
			posting.ID = hit.ID
		}
		postings = append(postings, posting)
	}

	return postings, nil
}

// buildSearchQuery assembles the bool filter clauses for a catalog query.
func buildSearchQuery(q Query) map[string]interface{} {
	filterClauses := []interface{}{}

	if q.OnlyActive {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"isActive": true},
		})
	}

	if len(q.Locations) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"location": q.Locations},
		})
	}

	if len(q.JobTypes) > 0 {
		types := make([]string, 0, len(q.JobTypes))
		for _, jt := range q.JobTypes {
			types = append(types, string(jt))
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"type": types},
		})
	}

	boolQuery := map[string]interface{}{
		"filter": filterClauses,
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
	}
}

package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchResult is the trimmed result shape for C6: no facets, vectors, or
// relevance-score tuning (explicitly a Non-goal) — just ranked hits.
type SearchResult struct {
	Query     string `json:"query"`
	TotalHits uint64 `json:"total_hits"`
	Hits      []Hit  `json:"hits"`
}

type Hit struct {
	ID              string `json:"id"`
	Org             string `json:"org"`
	Slug            string `json:"slug"`
	SourceType      string `json:"source_type"`
	Organism        string `json:"organism,omitempty"`
	InternalVersion string `json:"internal_version"`
	ExternalVersion string `json:"external_version"`
}

// Search runs a free-text query across organism, summary_text, and the
// keyword fields (source_type, license), returning the default Bleve
// relevance order. Filtering by exact source_type or org is left to the
// caller composing a more specific query.Query if needed; plain string
// input is treated as a query_string expression.
func Search(idx *Index, q string, limit, offset int) (*SearchResult, error) {
	bq := bleve.NewQueryStringQuery(q)
	return run(idx, bq, q, limit, offset)
}

// SearchBySourceType narrows a free-text query to one source_type
// (spec §4.6: organisms/releases are commonly browsed per data source).
func SearchBySourceType(idx *Index, sourceType, q string, limit, offset int) (*SearchResult, error) {
	textQuery := bleve.NewQueryStringQuery(q)
	typeQuery := bleve.NewTermQuery(sourceType)
	typeQuery.SetField("source_type")

	conjunct := bleve.NewConjunctionQuery(textQuery, typeQuery)
	return run(idx, conjunct, q, limit, offset)
}

func run(idx *Index, q query.Query, label string, limit, offset int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.Fields = []string{"org", "slug", "source_type", "organism", "internal_version", "external_version"}

	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			ID:              h.ID,
			Org:             fieldString(h.Fields, "org"),
			Slug:            fieldString(h.Fields, "slug"),
			SourceType:      fieldString(h.Fields, "source_type"),
			Organism:        fieldString(h.Fields, "organism"),
			InternalVersion: fieldString(h.Fields, "internal_version"),
			ExternalVersion: fieldString(h.Fields, "external_version"),
		})
	}

	return &SearchResult{Query: label, TotalHits: res.Total, Hits: hits}, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return v
}

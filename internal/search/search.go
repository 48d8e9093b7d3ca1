// Package search implements Catalog Search (C6): a Bleve full-text index
// over the committed registry (organizations, entries, versions,
// changelogs), kept in sync with the catalog as jobs complete and
// changelogs are written. It is a read path over state the catalog
// already owns, not a system of record — the index can always be
// rebuilt from SQLite by a full Sync pass.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index wraps a Bleve index over catalog documents.
type Index struct {
	bleve bleve.Index
	path  string
}

// Open opens an existing index at path, or creates one with the catalog
// document mapping if none exists. path is the full index path (matching
// config.SearchConfig.IndexPath, e.g. ".../index.bleve"), not a parent
// directory.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, catalogMapping())
		if err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}

	return &Index{bleve: idx, path: path}, nil
}

func (i *Index) Close() error { return i.bleve.Close() }

// catalogMapping defines the indexed fields per spec §4.6: source_type,
// organism, summary_text (changelog prose), and license, each a keyword or
// text field depending on whether it's ever filtered or only searched.
func catalogMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("org", keywordField())
	doc.AddFieldMappingsAt("slug", keywordField())
	doc.AddFieldMappingsAt("source_type", keywordField())
	doc.AddFieldMappingsAt("organism", textField())
	doc.AddFieldMappingsAt("summary_text", textField())
	doc.AddFieldMappingsAt("license", keywordField())

	im.AddDocumentMapping("catalog_entry", doc)
	im.DefaultMapping = doc
	return im
}

func keywordField() *mapping.FieldMapping {
	f := bleve.NewTextFieldMapping()
	f.Analyzer = "keyword"
	return f
}

func textField() *mapping.FieldMapping {
	f := bleve.NewTextFieldMapping()
	f.Analyzer = "standard"
	return f
}

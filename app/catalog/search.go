package catalog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fmpsc/spa/app/common"
)

const (
	accentFoldCharFilter = "pt_accent_fold"
	foldedAnalyzer       = "pt_folded"
	maxSearchHits        = 20
)

type AccentFoldingCharFilter struct{}

func (AccentFoldingCharFilter) Filter(input []byte) []byte {
	return []byte(common.FoldAccents(string(input)))
}

func init() {
	registry.RegisterCharFilter(accentFoldCharFilter, func(config map[string]interface{}, cache *registry.Cache) (analysis.CharFilter, error) {
		return AccentFoldingCharFilter{}, nil
	})
}

type fileDoc struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func indexMapping() (mapping.IndexMapping, error) {
	im := mapping.NewIndexMapping()
	err := im.AddCustomAnalyzer(foldedAnalyzer, map[string]any{
		"type":         custom.Name,
		"char_filters": []string{accentFoldCharFilter},
		"tokenizer":    unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("defining %s analyzer: %w", foldedAnalyzer, err)
	}

	doc := mapping.NewDocumentMapping()
	nameField := mapping.NewTextFieldMapping()
	nameField.Analyzer = foldedAnalyzer
	doc.AddFieldMappingsAt("name", nameField)

	colField := mapping.NewTextFieldMapping()
	colField.Analyzer = foldedAnalyzer
	doc.AddFieldMappingsAt("columns", colField)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = foldedAnalyzer
	return im, nil
}

// FileIndex is an in-memory search index over uploaded file names and their
// column names. "municipio" finds a file with a "Município" column.
type FileIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

func NewFileIndex() (*FileIndex, error) {
	im, err := indexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("creating file index: %w", err)
	}
	return &FileIndex{index: idx}, nil
}

// Load indexes everything recorded in the catalog.
func (fi *FileIndex) Load(files []UploadedFile) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	batch := fi.index.NewBatch()
	for _, f := range files {
		if err := batch.Index(f.Name, fileDoc{Name: f.Name, Columns: f.Columns}); err != nil {
			return err
		}
	}
	slog.Info("indexing catalog", "files", len(files))
	return fi.index.Batch(batch)
}

func (fi *FileIndex) Put(f UploadedFile) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.index.Index(f.Name, fileDoc{Name: f.Name, Columns: f.Columns})
}

// Search returns the names of matching files, best match first. Every word of
// q must match a word of the file name or a column name, as a prefix.
func (fi *FileIndex) Search(q string) ([]string, error) {
	words := strings.Fields(strings.ToLower(common.FoldAccents(q)))
	if len(words) == 0 {
		return nil, nil
	}

	conjuncts := make([]query.Query, 0, len(words))
	for _, w := range words {
		nameQ := bleve.NewPrefixQuery(w)
		nameQ.SetField("name")
		colQ := bleve.NewPrefixQuery(w)
		colQ.SetField("columns")
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(nameQ, colQ))
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), maxSearchHits, 0, false)
	fi.mu.RLock()
	res, err := fi.index.Search(req)
	fi.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}

	names := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		names = append(names, hit.ID)
	}
	return names, nil
}

func (fi *FileIndex) Close() error {
	return fi.index.Close()
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const seedBatchSize = 1000

// GazetteerSearcher đẩy index tham chiếu lên Meilisearch và phục vụ gợi ý theo cấp.
type GazetteerSearcher struct {
	client    meilisearch.ServiceManager
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
}

// SearchConfig cấu hình cho Meilisearch
type SearchConfig struct {
	Host      string        `mapstructure:"host"`
	APIKey    string        `mapstructure:"api_key"`
	IndexName string        `mapstructure:"index_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Document một đơn vị hành chính trong index Meilisearch.
type Document struct {
	ID               string   `json:"id"`
	ParentID         string   `json:"parent_id,omitempty"`
	Level            int      `json:"level"`
	Name             string   `json:"name"`
	Display          string   `json:"display"`
	Subtype          string   `json:"subtype,omitempty"`
	Aliases          []string `json:"aliases,omitempty"`
	Path             []string `json:"path"`
	Province         string   `json:"province"`
	ReferenceVersion string   `json:"reference_version"`
}

// NewGazetteerSearcher tạo mới GazetteerSearcher với Meilisearch client
func NewGazetteerSearcher(config SearchConfig, logger *zap.Logger) (*GazetteerSearcher, error) {
	client := meilisearch.New(config.Host, meilisearch.WithAPIKey(config.APIKey))

	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("không thể kết nối Meilisearch: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.IndexName == "" {
		config.IndexName = "admin_units"
	}

	return &GazetteerSearcher{
		client:    client,
		logger:    logger,
		indexName: config.IndexName,
		timeout:   config.Timeout,
	}, nil
}

// BuildIndexes cấu hình attribute, typo tolerance và synonyms sinh từ alias.
func (gs *GazetteerSearcher) BuildIndexes(synonyms map[string][]string) error {
	index := gs.client.Index(gs.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"name", "display", "aliases"},
		FilterableAttributes: []string{"id", "level", "parent_id", "province", "reference_version"},
		SortableAttributes:   []string{"level", "name"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		StopWords:            []string{"cua", "va", "tai", "o", "trong"},
		Synonyms:             synonyms,
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  3,
				TwoTypos: 7,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("lỗi cấu hình index: %w", err)
	}

	gs.logger.Info("Đã cấu hình index Meilisearch thành công",
		zap.Int64("task_uid", task.TaskUID),
		zap.Int("synonyms", len(synonyms)))
	return nil
}

// SeedData nạp documents theo batch 1000.
func (gs *GazetteerSearcher) SeedData(docs []Document) error {
	if len(docs) == 0 {
		return errors.New("không có dữ liệu để seed")
	}

	index := gs.client.Index(gs.indexName)
	for i := 0; i < len(docs); i += seedBatchSize {
		end := i + seedBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		batch := docs[i:end]
		task, err := index.AddDocuments(batch, "id")
		if err != nil {
			return fmt.Errorf("lỗi thêm documents batch %d-%d: %w", i, end, err)
		}

		gs.logger.Info("Đã thêm batch documents",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}

	gs.logger.Info("Đã seed data thành công", zap.Int("total_documents", len(docs)))
	return nil
}

// Publish đẩy toàn bộ index tham chiếu: settings + synonyms rồi documents.
func (gs *GazetteerSearcher) Publish(idx *gazetteer.Index) (int, error) {
	if err := gs.BuildIndexes(SynonymsFromIndex(idx)); err != nil {
		return 0, err
	}
	docs := DocumentsFromIndex(idx)
	if err := gs.SeedData(docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// SearchByLevel gợi ý đơn vị theo cấp, lọc theo mã cha nếu có.
func (gs *GazetteerSearcher) SearchByLevel(ctx context.Context, query string, level gazetteer.Level, parentID string, limit int) ([]Document, error) {
	if query == "" {
		return nil, errors.New("query không được để trống")
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := gs.client.Index(gs.indexName).Search(query, &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Filter: FilterLevelParent(int(level), parentID),
	})
	if err != nil {
		return nil, fmt.Errorf("lỗi tìm kiếm Meilisearch: %w", err)
	}
	return parseHits(result.Hits)
}

// parseHits chuyển hit (map tự do) thành Document.
func parseHits(hits []interface{}) ([]Document, error) {
	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("hit không hợp lệ: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("hit không hợp lệ: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentsFromIndex làm phẳng index thành documents, thứ tự tỉnh -> quận -> phường.
func DocumentsFromIndex(idx *gazetteer.Index) []Document {
	var docs []Document
	add := func(entities []*gazetteer.Entity) {
		for _, e := range entities {
			docs = append(docs, Document{
				ID:               e.ID,
				ParentID:         e.ParentID,
				Level:            int(e.Level),
				Name:             e.Name,
				Display:          e.Display,
				Subtype:          e.Subtype,
				Aliases:          e.Aliases,
				Path:             pathOf(idx, e),
				Province:         e.Province,
				ReferenceVersion: idx.Version(),
			})
		}
	}
	add(idx.Provinces())
	add(idx.Districts())
	add(idx.Wards())
	return docs
}

// pathOf mã các cấp từ tỉnh xuống đơn vị.
func pathOf(idx *gazetteer.Index, e *gazetteer.Entity) []string {
	path := []string{e.ID}
	for cur := e; cur.ParentID != ""; {
		parent, ok := idx.EntityByID(cur.ParentID)
		if !ok {
			break
		}
		path = append([]string{parent.ID}, path...)
		cur = parent
	}
	return path
}

// SynonymsFromIndex alias -> tên chuẩn, để Meilisearch hiểu "tphcm" là "ho chi minh".
func SynonymsFromIndex(idx *gazetteer.Index) map[string][]string {
	set := make(map[string]map[string]bool)
	for _, list := range [][]*gazetteer.Entity{idx.Provinces(), idx.Districts(), idx.Wards()} {
		for _, e := range list {
			for _, a := range e.Aliases {
				if set[a] == nil {
					set[a] = make(map[string]bool)
				}
				set[a][e.Name] = true
			}
		}
	}

	out := make(map[string][]string, len(set))
	for alias, names := range set {
		list := make([]string, 0, len(names))
		for n := range names {
			list = append(list, n)
		}
		sort.Strings(list)
		out[alias] = list
	}
	return out
}

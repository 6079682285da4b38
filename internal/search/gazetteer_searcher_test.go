package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/gazetteer/gazetteertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDocumentsFromIndex(t *testing.T) {
	idx := gazetteertest.Index(t)
	docs := DocumentsFromIndex(idx)

	stats := idx.Stats()
	require.Len(t, docs, stats.Provinces+stats.Districts+stats.Wards)
	assert.Equal(t, int(gazetteer.LevelProvince), docs[0].Level)

	var ward *Document
	for i := range docs {
		if docs[i].ID == "17953" {
			ward = &docs[i]
		}
	}
	require.NotNil(t, ward)
	assert.Equal(t, []string{"40", "429", "17953"}, ward.Path)
	assert.Equal(t, "429", ward.ParentID)
	assert.Equal(t, "Xã Thanh Hưng", ward.Display)
	assert.Equal(t, "nghe an", ward.Province)
	assert.Equal(t, "fixture-2024.1", ward.ReferenceVersion)
}

func TestSynonymsFromIndex(t *testing.T) {
	syn := SynonymsFromIndex(gazetteertest.Index(t))

	assert.Equal(t, []string{"ho chi minh"}, syn["tphcm"])
	assert.Equal(t, []string{"ho chi minh"}, syn["sai gon"])
	// cùng alias cho hai đơn vị trùng tên ở hai tỉnh
	assert.Equal(t, []string{"chau thanh"}, syn["huyen chau thanh"])
	assert.ElementsMatch(t, []string{"phuong 14"}, syn["p14"])
}

func TestFilterLevelParent(t *testing.T) {
	assert.Equal(t, "level = 3", FilterLevelParent(3, ""))
	assert.Equal(t, `level = 4 AND parent_id = "429"`, FilterLevelParent(4, "429"))
}

func newFakeMeili(t *testing.T, handler http.HandlerFunc) *GazetteerSearcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":"available"}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gs, err := NewGazetteerSearcher(SearchConfig{Host: srv.URL, APIKey: "test", IndexName: "admin_units", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return gs
}

func TestSearchByLevel(t *testing.T) {
	var gotFilter string
	gs := newFakeMeili(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/indexes/admin_units/search", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotFilter, _ = body["filter"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"hits":[{"id":"17953","parent_id":"429","level":4,"name":"thanh hung","display":"Xã Thanh Hưng","path":["40","429","17953"],"province":"nghe an","reference_version":"v1"}],"query":"thanh hung","processingTimeMs":1,"limit":5,"offset":0,"estimatedTotalHits":1}`)
	})

	docs, err := gs.SearchByLevel(context.Background(), "thanh hung", gazetteer.LevelWard, "429", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Xã Thanh Hưng", docs[0].Display)
	assert.Equal(t, 4, docs[0].Level)
	assert.Equal(t, `level = 4 AND parent_id = "429"`, gotFilter)

	_, err = gs.SearchByLevel(context.Background(), "", gazetteer.LevelWard, "", 5)
	assert.Error(t, err)
}

func TestSeedData_Batches(t *testing.T) {
	var batches atomic.Int32
	gs := newFakeMeili(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/indexes/admin_units/documents"))
		var docs []Document
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&docs))
		assert.LessOrEqual(t, len(docs), seedBatchSize)
		n := batches.Add(1)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"taskUid":`+strconv.Itoa(int(n))+`,"indexUid":"admin_units","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2024-01-01T00:00:00Z"}`)
	})

	docs := make([]Document, 2500)
	for i := range docs {
		docs[i] = Document{ID: "w" + strconv.Itoa(i), Level: 4}
	}
	require.NoError(t, gs.SeedData(docs))
	assert.Equal(t, int32(3), batches.Load())

	assert.Error(t, gs.SeedData(nil))
}

func TestNewGazetteerSearcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv.Close()

	_, err := NewGazetteerSearcher(SearchConfig{Host: srv.URL}, zap.NewNop())
	assert.Error(t, err)
}

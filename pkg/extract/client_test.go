package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
)

func testAPIConfig(baseURL string, locations ...string) config.APIConfig {
	return config.APIConfig{
		BaseURL:        baseURL,
		Key:            "test-key",
		Host:           "test-host",
		Locations:      locations,
		Status:         "ForSale",
		HomeType:       "Houses",
		Timeout:        5 * time.Second,
		MaxConcurrency: 2,
	}
}

func TestFetch(t *testing.T) {
	t.Run("decodes props and stamps the search location", func(t *testing.T) {
		var mu sync.Mutex
		var gotQuery map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			gotQuery = map[string]string{
				"location":    r.URL.Query().Get("location"),
				"status_type": r.URL.Query().Get("status_type"),
				"home_type":   r.URL.Query().Get("home_type"),
				"key":         r.Header.Get("x-rapidapi-key"),
				"host":        r.Header.Get("x-rapidapi-host"),
			}
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"props":[{"zpid":111,"price":400000},{"zpid":222,"price":500000}]}`))
		}))
		defer server.Close()

		client := NewClient(testAPIConfig(server.URL, "Las Vegas, NV"), zap.NewNop())
		records, err := client.Fetch(context.Background(), "Las Vegas, NV")
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "Las Vegas, NV", gotQuery["location"])
		assert.Equal(t, "ForSale", gotQuery["status_type"])
		assert.Equal(t, "Houses", gotQuery["home_type"])
		assert.Equal(t, "test-key", gotQuery["key"])
		assert.Equal(t, "test-host", gotQuery["host"])

		id, ok := records[0].Int("zpid")
		require.True(t, ok)
		assert.Equal(t, int64(111), id)

		loc, ok := records[0].String("search_location")
		require.True(t, ok)
		assert.Equal(t, "Las Vegas, NV", loc)
	})

	t.Run("non-200 responses are extract errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient(testAPIConfig(server.URL, "Las Vegas, NV"), zap.NewNop())
		_, err := client.Fetch(context.Background(), "Las Vegas, NV")
		require.Error(t, err)
		assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeExtract))
	})

	t.Run("missing key is a config error", func(t *testing.T) {
		cfg := testAPIConfig("http://localhost", "Las Vegas, NV")
		cfg.Key = ""
		client := NewClient(cfg, zap.NewNop())

		_, err := client.Fetch(context.Background(), "Las Vegas, NV")
		require.Error(t, err)
		assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeConfig))
	})
}

func TestFetchAll(t *testing.T) {
	t.Run("merges locations with first-seen-wins dedup", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("location") {
			case "Las Vegas, NV":
				_, _ = w.Write([]byte(`{"props":[{"zpid":1},{"zpid":2}]}`))
			default:
				_, _ = w.Write([]byte(`{"props":[{"zpid":2},{"zpid":3}]}`))
			}
		}))
		defer server.Close()

		client := NewClient(testAPIConfig(server.URL, "Las Vegas, NV", "Henderson, NV"), zap.NewNop())
		records, err := client.FetchAll(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 3)

		// The duplicate zpid 2 keeps its first location's record.
		var ids []int64
		for _, rec := range records {
			id, ok := rec.Int("zpid")
			require.True(t, ok)
			ids = append(ids, id)
		}
		assert.Equal(t, []int64{1, 2, 3}, ids)

		loc, _ := records[1].String("search_location")
		assert.Equal(t, "Las Vegas, NV", loc)
	})

	t.Run("one failing location fails the batch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("location") == "Henderson, NV" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"props":[]}`))
		}))
		defer server.Close()

		client := NewClient(testAPIConfig(server.URL, "Las Vegas, NV", "Henderson, NV"), zap.NewNop())
		_, err := client.FetchAll(context.Background())
		require.Error(t, err)
	})
}

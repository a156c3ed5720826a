package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/catalog"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/watchlist"
)

func newCatalogServer(t *testing.T, upstream http.HandlerFunc) *server {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := catalog.DefaultConfig(srv.URL)
	cfg.Timeout = time.Second
	handler := NewCatalogHandler(catalog.NewClient(cfg, zap.NewNop()), zap.NewNop())
	return newServerWithCatalog(t, watchlist.NewMemoryRemote(), nil, handler)
}

func TestCatalogMovie_StatusFollowsUpstream(t *testing.T) {
	tests := []struct {
		name     string
		upstream int
		id       string
		status   int
		code     string
	}{
		{"outage outside built-in catalog", http.StatusBadGateway, "1", http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE"},
		{"unknown id", http.StatusNotFound, "1", http.StatusNotFound, "NOT_FOUND"},
		{"outage inside built-in catalog", http.StatusBadGateway, "603", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.upstream)
			})
			rec, env := s.do(http.MethodGet, "/api/v1/movies/"+tt.id, "", nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, env.Error.Code)
			}
		})
	}
}

func TestCatalogLookup(t *testing.T) {
	s := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies", r.URL.Path)
		movies := []domain.Movie{}
		if r.URL.Query().Get("search") == "Heat" {
			movies = append(movies, domain.Movie{ID: 949, Title: "Heat"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"movies": movies})
	})

	rec, env := s.do(http.MethodGet, "/api/v1/movies/lookup?title=Heat", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 949, decode[domain.Movie](t, env).ID)

	rec, _ = s.do(http.MethodGet, "/api/v1/movies/lookup?title=Nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/movies/lookup?title=%20", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.Timeout = time.Second
	return NewClient(cfg, zap.NewNop()), &hits
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_MoviesPassesQueryAndCaches(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("search"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, map[string]any{"movies": []domain.Movie{{ID: 438631, Title: "Dune"}}})
	})

	ctx := context.Background()
	q := domain.MovieQuery{Search: "dune", Page: 2}
	movies := client.Movies(ctx, q)
	require.Len(t, movies, 1)
	assert.Equal(t, "Dune", movies[0].Title)

	client.Movies(ctx, q)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClient_MoviesFallBackOnErrorOrEmpty(t *testing.T) {
	ctx := context.Background()

	failing, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Len(t, failing.Movies(ctx, domain.MovieQuery{}), len(fallbackMovies))

	empty, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"movies": []domain.Movie{}})
	})
	movies := empty.Movies(ctx, domain.MovieQuery{Genre: "animation"})
	require.Len(t, movies, 2)
	assert.Equal(t, "Spirited Away", movies[0].Title)
}

func TestClient_MovieUsesFallbackCatalog(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	m, err := client.Movie(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", m.Title)

	_, err = client.Movie(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestClient_SuggestionsFallBackToEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	got := client.Suggestions(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_Recommend(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, domain.Recommendation{
			Query:   body["movie_title"],
			Movies:  []string{"Heat"},
			Posters: []string{"p.jpg"},
		})
	})

	rec, err := client.Recommend(context.Background(), "Collateral")
	require.NoError(t, err)
	assert.Equal(t, "Collateral", rec.Query)
	assert.Equal(t, []string{"Heat"}, rec.Movies)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.Recommend(ctx, "x")
		assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(hits))
}

func TestFallbackFilters(t *testing.T) {
	got := Fallback(domain.MovieQuery{Search: "matrix"})
	require.Len(t, got, 1)
	assert.Equal(t, 603, got[0].ID)

	assert.Len(t, Fallback(domain.MovieQuery{Search: "no such title"}), len(fallbackMovies))
}

func TestClient_UnknownTitlesDoNotOpenBreaker(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.Movie(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrMovieNotFound)
		assert.NotErrorIs(t, err, domain.ErrRemoteUnavailable)
	}
	assert.Equal(t, int32(10), atomic.LoadInt32(hits))

	// Still served from the built-in catalog
	m, err := client.Movie(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", m.Title)
}

func TestClient_SearchByTitle(t *testing.T) {
	ctx := context.Background()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("search") == "heat" {
			writeJSON(w, map[string]any{"movies": []domain.Movie{{ID: 949, Title: "Heat"}}})
			return
		}
		writeJSON(w, map[string]any{"movies": []domain.Movie{}})
	})
	m, err := client.SearchByTitle(ctx, "heat")
	require.NoError(t, err)
	assert.Equal(t, 949, m.ID)

	_, err = client.SearchByTitle(ctx, "no such film")
	assert.ErrorIs(t, err, domain.ErrMovieNotFound)

	down, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	m, err = down.SearchByTitle(ctx, "matrix")
	require.NoError(t, err)
	assert.Equal(t, 603, m.ID)

	_, err = down.SearchByTitle(ctx, "no such film")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

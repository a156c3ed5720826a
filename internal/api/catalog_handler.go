package api

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/catalog"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/pkg/response"
)

// CatalogHandler proxies the recommendation API with fallbacks
type CatalogHandler struct {
	client *catalog.Client
	logger *zap.Logger
}

func NewCatalogHandler(client *catalog.Client, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{client: client, logger: logger}
}

// RecommendRequest names the title to base recommendations on
type RecommendRequest struct {
	MovieTitle string `json:"movie_title"`
}

func (h *CatalogHandler) Movies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	movies := h.client.Movies(r.Context(), domain.MovieQuery{
		Search: strings.TrimSpace(q.Get("search")),
		Genre:  q.Get("genre"),
		Sort:   q.Get("sort"),
		Page:   page,
		Limit:  limit,
	})
	response.OK(w, map[string]any{"movies": movies})
}

func (h *CatalogHandler) Movie(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	movie, err := h.client.Movie(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, movie)
}

// Lookup resolves a free-text title to the best matching catalog entry.
func (h *CatalogHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		response.BadRequest(w, "title is required")
		return
	}
	movie, err := h.client.SearchByTitle(r.Context(), title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, movie)
}

func (h *CatalogHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{"suggestions": h.client.Suggestions(r.Context())})
}

func (h *CatalogHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.MovieTitle = strings.TrimSpace(req.MovieTitle)
	if req.MovieTitle == "" {
		response.BadRequest(w, "movie_title is required")
		return
	}

	rec, err := h.client.Recommend(r.Context(), req.MovieTitle)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, rec)
}

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/pkg/response"
	"github.com/reelsync/backend/pkg/validator"
)

// WatchlistHandler serves the watchlist of the calling session
type WatchlistHandler struct {
	logger *zap.Logger
}

func NewWatchlistHandler(logger *zap.Logger) *WatchlistHandler {
	return &WatchlistHandler{logger: logger}
}

// AddWatchlistRequest represents a catalog item to save
type AddWatchlistRequest struct {
	ID        int      `json:"id" validate:"required,gt=0"`
	Title     string   `json:"title" validate:"required,max=300"`
	PosterURL string   `json:"posterUrl" validate:"omitempty,max=2048"`
	Rating    *float64 `json:"rating,omitempty" validate:"omitempty,min=0,max=10"`
	Genre     *string  `json:"genre,omitempty" validate:"omitempty,max=100"`
	Year      *int     `json:"year,omitempty" validate:"omitempty,min=1870,max=2100"`
}

// WatchlistResponse lists the collection and the kind of store behind it
type WatchlistResponse struct {
	Source string                 `json:"source"`
	Items  []domain.WatchlistItem `json:"items"`
}

func itemID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid item id", domain.ErrInvalidInput)
	}
	return id, nil
}

func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	items := session.Watchlist().List(r.Context())
	if items == nil {
		items = []domain.WatchlistItem{}
	}
	response.OK(w, WatchlistResponse{Source: string(session.Watchlist().Kind()), Items: items})
}

func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req AddWatchlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = validator.SanitizeString(req.Title, 300)
	if errs := validator.Struct(req); errs.HasErrors() {
		response.BadRequest(w, errs.Error())
		return
	}

	item, err := session.AddToWatchlist(r.Context(), domain.WatchlistItem{
		ID:        req.ID,
		Title:     req.Title,
		PosterURL: req.PosterURL,
		Rating:    req.Rating,
		Genre:     req.Genre,
		Year:      req.Year,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, item)
}

func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	id, err := itemID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := session.RemoveFromWatchlist(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

// Contains never fails; lookup errors read as not saved
func (h *WatchlistHandler) Contains(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	id, err := itemID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, map[string]bool{"in_watchlist": session.Watchlist().Contains(r.Context(), id)})
}

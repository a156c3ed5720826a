package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/pkg/response"
	"github.com/reelsync/backend/pkg/validator"
)

// RecentsHandler serves the recently viewed items of the calling session
type RecentsHandler struct {
	logger *zap.Logger
}

func NewRecentsHandler(logger *zap.Logger) *RecentsHandler {
	return &RecentsHandler{logger: logger}
}

// ViewRequest records a viewed catalog item
type ViewRequest struct {
	ID        int      `json:"id" validate:"required,gt=0"`
	Title     string   `json:"title" validate:"required,max=300"`
	PosterURL string   `json:"posterUrl" validate:"omitempty,max=2048"`
	Rating    *float64 `json:"rating,omitempty" validate:"omitempty,min=0,max=10"`
	Genre     *string  `json:"genre,omitempty" validate:"omitempty,max=100"`
	Year      *int     `json:"year,omitempty" validate:"omitempty,min=1870,max=2100"`
}

func (h *RecentsHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	items := session.RecentlyViewed(r.Context())
	if items == nil {
		items = []domain.RecentItem{}
	}
	response.OK(w, items)
}

func (h *RecentsHandler) Last(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	item, found := session.LastViewed(r.Context())
	if !found {
		response.NoContent(w)
		return
	}
	response.OK(w, item)
}

func (h *RecentsHandler) View(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req ViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = validator.SanitizeString(req.Title, 300)
	if errs := validator.Struct(req); errs.HasErrors() {
		response.BadRequest(w, errs.Error())
		return
	}

	session.ViewItem(r.Context(), domain.RecentItem{
		ID:        req.ID,
		Title:     req.Title,
		PosterURL: req.PosterURL,
		Rating:    req.Rating,
		Genre:     req.Genre,
		Year:      req.Year,
	})
	response.NoContent(w)
}

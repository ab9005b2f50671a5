package matching

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ryvinapp/ryvin-backend/internal/auth"
	"github.com/ryvinapp/ryvin-backend/internal/common/utils"
)

type Handler struct {
	service    Service
	maxResults int
}

func NewHandler(service Service, maxResults int) *Handler {
	return &Handler{service: service, maxResults: maxResults}
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	otherID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	score, err := h.service.Score(r.Context(), userID, otherID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute compatibility")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, score)
}

func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	otherID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.CheckEligibility(r.Context(), userID, otherID); err != nil {
		switch {
		case errors.Is(err, ErrNotEligible):
			utils.RespondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrProfileNotFound):
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to check eligibility")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"eligible": true})
}

func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	ranking, err := h.service.Rank(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to rank candidates")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ranking.Top(ranking.Len()))
}

package questionnaire

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ryvinapp/ryvin-backend/internal/auth"
	"github.com/ryvinapp/ryvin-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// SubmitAnswerDTO is the payload for answering a questionnaire field
type SubmitAnswerDTO struct {
	FieldID string `json:"field_id" validate:"required"`
	Value   string `json:"value" validate:"required"`
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Catalog(r.Context())

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"version": catalog.Version(),
		"fields":  catalog.Fields(),
	})
}

// CategoryDTO groups one category's fields in display order
type CategoryDTO struct {
	Category string   `json:"category"`
	Fields   []*Field `json:"fields"`
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Catalog(r.Context())

	categories := catalog.Categories()
	out := make([]CategoryDTO, 0, len(categories))
	for _, category := range categories {
		out = append(out, CategoryDTO{
			Category: category,
			Fields:   catalog.FieldsByCategory(category),
		})
	}

	utils.RespondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var dto SubmitAnswerDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SubmitAnswer(r.Context(), userID, dto.FieldID, dto.Value)
	if err != nil {
		switch {
		case errors.Is(err, ErrFieldNotFound):
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidAnswer):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save answer")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	answers, err := h.service.GetAnswers(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get answers")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, answers)
}

func (h *Handler) GetCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	completion, err := h.service.Completion(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute completion")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]float64{"completion": completion})
}

package journey

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ryvinapp/ryvin-backend/internal/auth"
	"github.com/ryvinapp/ryvin-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateJourney(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var dto CreateJourneyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := h.service.CreateJourney(r.Context(), userID, dto.OtherUserID)
	if err != nil {
		var exists *AlreadyExistsError
		switch {
		case errors.As(err, &exists):
			utils.RespondWithJSON(w, http.StatusConflict, map[string]string{
				"error":       err.Error(),
				"existing_id": exists.ExistingID.String(),
			})
		case errors.Is(err, ErrSelfJourney):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create journey")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, j)
}

func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, journeyID, ok := h.journeyRequest(w, r)
	if !ok {
		return
	}

	var dto RespondDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := h.service.Respond(r.Context(), journeyID, userID, dto.Decision == "accept")
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, j)
}

func (h *Handler) GetJourney(w http.ResponseWriter, r *http.Request) {
	userID, journeyID, ok := h.journeyRequest(w, r)
	if !ok {
		return
	}

	j, err := h.service.GetJourney(r.Context(), journeyID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, j)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, journeyID, ok := h.journeyRequest(w, r)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(r.Context(), journeyID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, history)
}

func (h *Handler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	journeys, err := h.service.ListUserJourneys(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list journeys")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, journeys)
}

func (h *Handler) ProposeMeeting(w http.ResponseWriter, r *http.Request) {
	userID, journeyID, ok := h.journeyRequest(w, r)
	if !ok {
		return
	}

	var dto ProposeMeetingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposedTime, err := time.Parse(time.RFC3339, dto.ProposedTime)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "proposed_time must be RFC3339")
		return
	}

	m, err := h.service.ProposeMeeting(r.Context(), journeyID, userID, proposedTime, dto.Location)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	userID, journeyID, ok := h.journeyRequest(w, r)
	if !ok {
		return
	}

	meetings, err := h.service.ListMeetings(r.Context(), journeyID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, meetings)
}

func (h *Handler) RespondToMeeting(w http.ResponseWriter, r *http.Request) {
	userID, meetingID, ok := h.meetingRequest(w, r)
	if !ok {
		return
	}

	var dto RespondToMeetingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.service.RespondToMeeting(r.Context(), meetingID, userID, dto.Decision == "accept")
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, m)
}

func (h *Handler) CompleteMeeting(w http.ResponseWriter, r *http.Request) {
	userID, meetingID, ok := h.meetingRequest(w, r)
	if !ok {
		return
	}

	m, err := h.service.CompleteMeeting(r.Context(), meetingID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, m)
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, meetingID, ok := h.meetingRequest(w, r)
	if !ok {
		return
	}

	var dto SubmitFeedbackDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.service.SubmitFeedback(r.Context(), meetingID, userID, dto.Rating, dto.Comment, dto.WantsToContinue)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, f)
}

func (h *Handler) GetFeedbackHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	feedback, err := h.service.GetUserFeedbackHistory(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get feedback history")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, feedback)
}

// journeyRequest extracts the authenticated user and the journey id
func (h *Handler) journeyRequest(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, uuid.Nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid journey ID")
		return 0, uuid.Nil, false
	}

	return userID, id, true
}

// meetingRequest extracts the authenticated user and the meeting id
func (h *Handler) meetingRequest(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, uuid.Nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["meetingId"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid meeting ID")
		return 0, uuid.Nil, false
	}

	return userID, id, true
}

// respondError maps service errors to HTTP outcomes. Requests whose
// intent was already satisfied never reach here because the service
// returns success for those.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var conflict *StateConflictError
	switch {
	case errors.Is(err, ErrJourneyNotFound), errors.Is(err, ErrMeetingNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrDuplicateFeedback), errors.Is(err, ErrInvalidMeetingState),
		errors.Is(err, ErrIllegalTransition):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Operation failed")
	}
}

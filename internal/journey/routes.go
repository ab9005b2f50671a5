package journey

import (
	"github.com/gorilla/mux"
	"github.com/ryvinapp/ryvin-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/journeys").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Journeys
	api.HandleFunc("", handler.CreateJourney).Methods("POST")
	api.HandleFunc("", handler.ListJourneys).Methods("GET")
	api.HandleFunc("/{id}", handler.GetJourney).Methods("GET")
	api.HandleFunc("/{id}/respond", handler.Respond).Methods("POST")
	api.HandleFunc("/{id}/history", handler.GetHistory).Methods("GET")

	// Meetings
	api.HandleFunc("/{id}/meetings", handler.ProposeMeeting).Methods("POST")
	api.HandleFunc("/{id}/meetings", handler.ListMeetings).Methods("GET")

	meetings := router.PathPrefix("/api/v1/meetings").Subrouter()
	meetings.Use(authMiddleware.Authenticate)
	meetings.HandleFunc("/{meetingId}/respond", handler.RespondToMeeting).Methods("POST")
	meetings.HandleFunc("/{meetingId}/complete", handler.CompleteMeeting).Methods("POST")
	meetings.HandleFunc("/{meetingId}/feedback", handler.SubmitFeedback).Methods("POST")

	// Feedback reporting
	feedback := router.PathPrefix("/api/v1/feedback").Subrouter()
	feedback.Use(authMiddleware.Authenticate)
	feedback.HandleFunc("/history", handler.GetFeedbackHistory).Methods("GET")
}

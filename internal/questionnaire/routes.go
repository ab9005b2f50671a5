package questionnaire

import (
	"github.com/gorilla/mux"
	"github.com/ryvinapp/ryvin-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/questionnaire").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Catalog
	api.HandleFunc("/catalog", handler.GetCatalog).Methods("GET")
	api.HandleFunc("/categories", handler.GetCategories).Methods("GET")

	// Answers
	api.HandleFunc("/answers", handler.SubmitAnswer).Methods("POST")
	api.HandleFunc("/answers", handler.GetAnswers).Methods("GET")
	api.HandleFunc("/completion", handler.GetCompletion).Methods("GET")
}

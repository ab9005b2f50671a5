package matching

import (
	"github.com/gorilla/mux"
	"github.com/ryvinapp/ryvin-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/compatibility/{userId}", handler.GetCompatibility).Methods("GET")
	api.HandleFunc("/eligibility/{userId}", handler.CheckEligibility).Methods("GET")
	api.HandleFunc("/discover", handler.Discover).Methods("GET")
}

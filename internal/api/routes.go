package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures the status API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	r.HandleFunc("/activity", handler.GetActivity).Methods("GET")

	return r
}

package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers the routes for the API. A router is passed in to
// allow for the routes to be registered on a subrouter.
func (a *API) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", a.handlers.health.GetHealth).Methods("GET")

	installRouter := router.PathPrefix("/install").Subrouter()
	installRouter.HandleFunc("/status", a.handlers.install.GetStatus).Methods("GET")
	installRouter.HandleFunc("/run", a.handlers.install.PostRun).Methods("POST")

	router.HandleFunc("/config", a.handlers.console.GetConfig).Methods("GET")
	router.HandleFunc("/config", a.handlers.console.PostConfig).Methods("POST")
	router.HandleFunc("/services", a.handlers.console.GetServices).Methods("GET")
	router.HandleFunc("/services", a.handlers.console.PostServices).Methods("POST")
	router.HandleFunc("/system", a.handlers.console.GetSystem).Methods("GET")
	router.HandleFunc("/containers", a.handlers.console.GetContainers).Methods("GET")
	router.HandleFunc("/containers/{name}/{action}", a.handlers.console.PostContainerAction).Methods("POST")

	router.HandleFunc("/ws", a.handlers.ws.HandleWebsocket)
}

package server

import "net/http"

// setupRoutes registers the API endpoints on the router
func (s *Server) setupRoutes() {
	// Job submission and listing
	s.router.HandleFunc("/api/jobs", s.app.JobHandler.JobsHandler)
	s.router.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutes)

	// Dashboard
	s.router.HandleFunc("/api/dashboard/metrics", s.app.DashboardHandler.MetricsHandler)

	// Service endpoints
	s.router.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	s.router.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Everything else under /api is a JSON 404
	s.router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.app.APIHandler.NotFoundHandler(w, r)
	})
}

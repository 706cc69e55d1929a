package httpapi

import "net/http"

// registerStubRoutes mounts the §6 external HTTP surface. The daily
// challenge (C9) is wired to the real internal/daily.Service since it is
// in scope; everything else here — auth, profile, ladder/match-history
// reads — belongs to the out-of-scope "thin JSON-over-HTTP surface"
// spec.md hands to an external collaborator (password hashing, PII
// encryption at rest, and OAuth verification are explicit non-goals), so
// those routes are mounted as 501 placeholders a reverse-proxy-fronted
// service would replace, matching the teacher's own NotFoundHandler shape
// for an endpoint it does not serve.
func (s *Server) registerStubRoutes() {
	s.router.HandleFunc("/daily", s.handleDailyText).Methods(http.MethodGet)
	s.router.HandleFunc("/daily/submit", s.handleDailySubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/daily/leaderboard", s.handleDailyLeaderboard).Methods(http.MethodGet)

	external := []struct {
		path    string
		methods []string
	}{
		{"/auth/login", []string{http.MethodPost}},
		{"/auth/register", []string{http.MethodPost}},
		{"/profile", []string{http.MethodGet, http.MethodPatch, http.MethodDelete}},
		{"/profile/stats", []string{http.MethodGet}},
		{"/profile/export", []string{http.MethodGet}},
		{"/leaderboard", []string{http.MethodGet}},
		{"/matches", []string{http.MethodGet}},
		{"/matches/{id}", []string{http.MethodGet}},
	}
	for _, route := range external {
		s.router.HandleFunc(route.path, s.handleExternalStub).Methods(route.methods...)
	}
}

func (s *Server) handleExternalStub(w http.ResponseWriter, r *http.Request) {
	s.writeNotImplemented(w)
}

func (s *Server) writeNotImplemented(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"error":   "not_implemented",
		"message": "served by an external profile/auth service in this deployment",
	})
}

package api

import (
	"net/http"
)

// ListMigrationJobs lists migration jobs across all Central applications.
func (s *Server) ListMigrationJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Migrations.ListMigrationJobs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

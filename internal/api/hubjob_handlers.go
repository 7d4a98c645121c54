package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

func (s *Server) ListHubJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Migrations.HubJobs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(jobs))
}

// SetHubJobEnrollment sets either or both target enrollment keys of a
// pending hub job.
func (s *Server) SetHubJobEnrollment(w http.ResponseWriter, r *http.Request) {
	var keys models.EnrollmentKeys
	if !decodeJSON(w, r, &keys) {
		return
	}
	job, err := s.Migrations.SetEnrollment(r.Context(), chi.URLParam(r, "id"), keys)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RunHubJob claims a pending hub job and runs it as an async operation. A
// job that is already running or finished is answered with 409.
func (s *Server) RunHubJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Migrations.ClaimHubJob(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	op := s.Operations.Create("hub-job-run", id)

	go func() {
		op.AppendLog("Running hub job " + id + " (" + job.HubHost + " to " + job.AppHost + ")")
		result, err := s.Migrations.RunClaimedHubJob(context.Background(), job, op.AppendLog)
		if err != nil {
			op.AppendLog("ERROR: " + err.Error())
			op.Fail(err)
			return
		}
		op.Complete(result)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"operation_id": op.ID})
}

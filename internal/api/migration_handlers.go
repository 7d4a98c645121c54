package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// GetSourceCredentials returns the enrollment keys of a Central source so
// the operator can copy them into the target DPS.
func (s *Server) GetSourceCredentials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subdomain string `json:"subdomain"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subdomain == "" {
		writeError(w, http.StatusBadRequest, "subdomain is required")
		return
	}
	creds, err := s.Migrations.SourceCredentials(r.Context(), req.Subdomain)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// SubmitMigration validates the form and runs the migration as an async
// operation.
func (s *Server) SubmitMigration(w http.ResponseWriter, r *http.Request) {
	var fv models.FormValues
	if !decodeJSON(w, r, &fv) {
		return
	}
	if err := fv.Validate(); err != nil {
		writeErr(w, err)
		return
	}

	op := s.Operations.Create("migration-submit", fv.Name)

	go func() {
		op.AppendLog(fmt.Sprintf("Submitting %s migration %q", fv.Mode, fv.Name))
		result, err := s.Migrations.Submit(context.Background(), fv, op.AppendLog)
		if err != nil {
			op.AppendLog("ERROR: " + err.Error())
			op.Fail(err)
			return
		}
		op.Complete(result)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"operation_id": op.ID})
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

func (s *Server) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops := s.Operations.List()
	out := make([]*models.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetOperation(w http.ResponseWriter, r *http.Request) {
	op := s.Operations.Get(chi.URLParam(r, "id"))
	if op == nil {
		writeError(w, http.StatusNotFound, "operation not found")
		return
	}
	writeJSON(w, http.StatusOK, op.Snapshot())
}

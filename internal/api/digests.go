package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/chatdigest/internal/digest"
)

// DigestList is the response of GET /api/v1/digests.
type DigestList struct {
	Dates []string `json:"dates"`
	Count int      `json:"count"`
}

// listDigests handles GET /api/v1/digests
func (s *Server) listDigests(w http.ResponseWriter, r *http.Request) {
	dates, err := s.source.ListDates(r.Context())
	if err != nil {
		s.logger.Error("list digests failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list digests failed")
		return
	}
	writeJSON(w, http.StatusOK, DigestList{Dates: dates, Count: len(dates)})
}

// getDigest handles GET /api/v1/digests/{date}
func (s *Server) getDigest(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	body, err := s.source.Get(r.Context(), date)
	switch {
	case errors.Is(err, digest.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	case errors.Is(err, digest.ErrNotFound):
		writeError(w, http.StatusNotFound, "no digest for "+date)
		return
	case err != nil:
		s.logger.Error("get digest failed", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "get digest failed")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

package handler

import (
	"net/http"

	"github.com/msomdec/gymtrack/internal/domain"
)

// HandleHealth responds with 200 and the server time. Mirrors probe it to
// decide whether they are online.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": string(domain.Now()),
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// tenantParam parses the {tenant} path variable
func tenantParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["tenant"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

package rest

import (
	"encoding/json"
	"net/http"
)

const (
	msgGotWebhook       = "Got webhook!"
	msgAllowed          = "Allowed!"
	errOnlyJSON         = "Only JSON bodies are supported"
	errNotAnObject      = "CloudEvents envelope must be a JSON object"
	errRecordFailed     = "Failed to record event"
	errReadFailed       = "Failed to read events"
	errMethodNotAllowed = "method not allowed"
	errBodyTooLarge     = "Request body too large"
	errInvalidLimit     = "limit must be a positive integer"
	errMissingNamespace = "namespace is required"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"err": msg})
}

package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
	"github.com/webitel/cloudevents-bin/internal/handler/param"
	"github.com/webitel/cloudevents-bin/internal/service"
)

// APIHandler serves the read-only /api/{namespace} surface.
type APIHandler struct {
	events    service.EventReader
	publicURL string
}

func NewAPIHandler(events service.EventReader, publicURL string) *APIHandler {
	return &APIHandler{
		events:    events,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// About advertises the webhook URL of a namespace.
func (h *APIHandler) About(w http.ResponseWriter, r *http.Request) {
	ns := param.Namespace(r)
	if ns == "" {
		writeErr(w, http.StatusBadRequest, errMissingNamespace)
		return
	}

	hook := h.WebhookURL(r, ns)
	w.Header().Set("Link", fmt.Sprintf("<%s>; rel=cloudevents-webhook", hook))
	writeJSON(w, http.StatusOK, map[string]string{"cloudevents_webhook_url": hook})
}

// Events lists retained records, most recent first.
func (h *APIHandler) Events(w http.ResponseWriter, r *http.Request) {
	ns := param.Namespace(r)
	if ns == "" {
		writeErr(w, http.StatusBadRequest, errMissingNamespace)
		return
	}

	q := service.ListQuery{Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		q.Limit = n
	}

	recs, err := h.events.List(r.Context(), ns, q)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, errReadFailed)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.EventRecord{"events": recs})
}

// WebhookURL is the absolute ingestion URL for ns. A configured public URL
// wins over what the request says about scheme and host.
func (h *APIHandler) WebhookURL(r *http.Request, ns model.Namespace) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		}
		base = scheme + "://" + r.Host
	}
	return base + "/ce/" + url.PathEscape(string(ns)) + "/"
}

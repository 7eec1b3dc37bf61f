package rest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
	"github.com/webitel/cloudevents-bin/internal/handler/param"
	"github.com/webitel/cloudevents-bin/internal/service"
)

const (
	// MaxBodyBytes bounds a single webhook delivery.
	MaxBodyBytes = 1 << 20

	headerCallback = "WebHook-Request-Callback"
)

// WebhookHandler receives CloudEvents webhooks on /ce/{namespace}/.
type WebhookHandler struct {
	ingester service.Ingester
	prober   service.Prober
	logger   *slog.Logger
}

func NewWebhookHandler(ingester service.Ingester, prober service.Prober, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingester: ingester,
		prober:   prober,
		logger:   logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.receive(w, r)
	case http.MethodOptions:
		h.handshake(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	ns := param.Namespace(r)
	if ns == "" {
		writeErr(w, http.StatusBadRequest, errMissingNamespace)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		writeErr(w, http.StatusBadRequest, errOnlyJSON)
		return
	}

	rec, err := model.ParseEventRecord(body)
	switch {
	case errors.Is(err, model.ErrNotAnObject):
		writeErr(w, http.StatusBadRequest, errNotAnObject)
		return
	case err != nil:
		writeErr(w, http.StatusBadRequest, errOnlyJSON)
		return
	}

	if err := h.ingester.Ingest(r.Context(), ns, rec); err != nil {
		if model.IsClientInput(err) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, errRecordFailed)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"msg": msgGotWebhook})
}

// handshake answers the abuse-protection preflight. The callback probe is
// fire-and-forget and never changes the response.
func (h *WebhookHandler) handshake(w http.ResponseWriter, r *http.Request) {
	if cb := r.Header.Get(headerCallback); cb != "" {
		h.prober.Probe(cb)
	}

	w.Header().Set("WebHook-Allowed-Origin", "*")
	w.Header().Set("Allow", "OPTIONS,POST")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msgAllowed)
}

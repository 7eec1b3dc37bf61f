package rest

import (
	"net/http"

	"github.com/webitel/cloudevents-bin/internal/domain/registry"
)

const InfoText = "CloudEvents bin works like a JSON bin, but for CloudEvents. " +
	"Send webhooks to /ce/<namespace>/ where namespace is an arbitrary string, " +
	"list them with /api/<namespace>/events and follow them live on /api/<namespace>/feed. " +
	"Pick a random namespace: there is no security, anyone who knows it can read your events."

// BuildInfo is supplied by the binary.
type BuildInfo struct {
	Version    string
	BusDriver  string
	InstanceID string
}

type InfoHandler struct {
	build BuildInfo
	hub   registry.Hubber
}

func NewInfoHandler(build BuildInfo, hub registry.Hubber) *InfoHandler {
	return &InfoHandler{build: build, hub: hub}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cloudevents-bin": h.build.Version,
		"info":            InfoText,
		"live":            h.hub.Stats(),
		"bus": map[string]string{
			"driver":      h.build.BusDriver,
			"instance_id": h.build.InstanceID,
		},
	})
}

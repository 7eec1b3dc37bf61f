// Package param extracts route parameters shared by the HTTP transports.
package param

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// Namespace returns the percent-decoded {namespace} route segment.
func Namespace(r *http.Request) model.Namespace {
	raw := chi.URLParam(r, "namespace")
	if ns, err := url.PathUnescape(raw); err == nil {
		return model.Namespace(ns)
	}
	return model.Namespace(raw)
}

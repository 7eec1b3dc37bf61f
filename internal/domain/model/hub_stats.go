package model

// HubStats is a point-in-time view of the live subscriber registry.
type HubStats struct {
	Namespaces int `json:"namespaces"`
	Sinks      int `json:"sinks"`
}

package models

import "time"

// ExportKind enumerates the artifacts the exporter can deliver.
type ExportKind string

const (
	ExportKindTabular  ExportKind = "tabular"
	ExportKindRaster   ExportKind = "raster"
	ExportKindDocument ExportKind = "document"
)

// ExportState is the orchestrator lifecycle state.
type ExportState string

const (
	ExportStateIdle  ExportState = "IDLE"
	ExportStateBusy  ExportState = "BUSY"
	ExportStateError ExportState = "ERROR"
)

// ExportRequest lives from the moment an export is triggered until it is delivered or fails.
type ExportRequest struct {
	ID         string     `json:"id"`
	Kind       ExportKind `json:"kind"`
	Requester  string     `json:"requester"`
	SurfaceIDs []string   `json:"surfaceIds,omitempty"`
	Filename   string     `json:"filename"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Delivery describes a stored artifact and how to download it.
type Delivery struct {
	RequestID   string     `json:"requestId"`
	Kind        ExportKind `json:"kind"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	SizeBytes   int        `json:"sizeBytes"`
	Size        string     `json:"size"`
	URL         string     `json:"url"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	Pages       int        `json:"pages,omitempty"`
	Rows        int        `json:"rows,omitempty"`
}

// ExportAlert is the failure message shown to the user until acknowledged.
type ExportAlert struct {
	RequestID string     `json:"requestId"`
	Kind      ExportKind `json:"kind"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Detail    string     `json:"detail,omitempty"`
	RaisedAt  time.Time  `json:"raisedAt"`
}

// ExportStatus is a point-in-time view of the orchestrator.
type ExportStatus struct {
	State        ExportState    `json:"state"`
	Busy         bool           `json:"busy"`
	Active       *ExportRequest `json:"active,omitempty"`
	Alert        *ExportAlert   `json:"alert,omitempty"`
	LastDelivery *Delivery      `json:"lastDelivery,omitempty"`
}

// Caller identifies who triggered an export.
type Caller struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName prefers the full name and falls back to the email.
func (c Caller) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

// SurfaceInfo lists a chart surface currently mounted by the dashboard.
type SurfaceInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CrossOrigin bool      `json:"crossOrigin"`
	MountedAt   time.Time `json:"mountedAt"`
}

package dto

// RasterExportRequest asks for a single chart bitmap.
type RasterExportRequest struct {
	SurfaceID string `json:"surfaceId" validate:"required,max=64"`
	Filename  string `json:"filename" validate:"omitempty,max=120"`
}

// DocumentExportRequest asks for the multi-page report. An empty list exports the
// configured default chart order.
type DocumentExportRequest struct {
	Surfaces []string `json:"surfaces" validate:"omitempty,max=16,dive,required,max=64"`
}

// MountSurfaceRequest carries the form fields sent with a chart snapshot.
type MountSurfaceRequest struct {
	Title       string `form:"title" validate:"omitempty,max=120"`
	CrossOrigin bool   `form:"crossOrigin"`
}

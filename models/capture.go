package models

// CaptureVariant is the capture intent
type CaptureVariant string

const (
	// VariantPreview is the lower resolution garment + customization composite
	VariantPreview CaptureVariant = "preview"
	// VariantProduction is the full resolution, garment-free manufacturing file
	VariantProduction CaptureVariant = "production"
)

// CaptureStatus tracks an artifact through upload
type CaptureStatus string

const (
	CaptureStatusPending  CaptureStatus = "pending"
	CaptureStatusUploaded CaptureStatus = "uploaded"
	CaptureStatusFailed   CaptureStatus = "failed"
)

// CaptureArtifact is the transient result of rasterizing one surface. It is never persisted
// on its own; only RemoteURL survives, inside the order line item.
type CaptureArtifact struct {
	Side        Side           `json:"side"`
	Variant     CaptureVariant `json:"variant"`
	Data        []byte         `json:"-"`
	ContentType string         `json:"contentType"`
	RemoteURL   string         `json:"remoteUrl,omitempty"`
	Status      CaptureStatus  `json:"status"`
}

// SideCaptureURLs holds the resolved URLs for one side
type SideCaptureURLs struct {
	PreviewURL    string `json:"previewUrl,omitempty"`
	ProductionURL string `json:"productionUrl,omitempty"`
}

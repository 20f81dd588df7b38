package models

import "encoding/json"

// LineItemCustomization is what the cart/order layer persists for a customized product.
// Customization is the store's serialized form, kept opaque.
// Example:
// {
//   "orderId": "ord_123",
//   "productId": "hoodie-basic",
//   "printSize": "A4",
//   "unitPrice": 52000,
//   "customization": {"printSize":"A4","sides":{...}},
//   "captures": {"front":{"previewUrl":"...","productionUrl":"..."}}
// }
type LineItemCustomization struct {
	ID            int64                    `json:"id"`
	OrderID       string                   `json:"orderId"`
	ProductID     string                   `json:"productId"`
	PrintSize     PrintSize                `json:"printSize"`
	UnitPrice     int64                    `json:"unitPrice"`
	Customization json.RawMessage          `json:"customization"`
	Captures      map[Side]SideCaptureURLs `json:"captures"`
	CaptureSource string                   `json:"captureSource"` // "client" or "regeneration"
	CreatedAt     string                   `json:"createdAt,omitempty"`
}

// GeneratedFile is one regenerated production output for an order side
type GeneratedFile struct {
	OrderID   string `json:"orderId"`
	Side      Side   `json:"side"`
	MockupURL string `json:"mockupUrl"`
	HDURL     string `json:"hdUrl"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ProductInfo is the product context passed to regeneration
type ProductInfo struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Color     string `json:"color,omitempty"`
}

// RegenerationRequest is the input of the server-side HD regeneration function
type RegenerationRequest struct {
	OrderID       string             `json:"orderId"`
	Customization CustomizationState `json:"customization"`
	MockupURLs    map[Side]string    `json:"mockupUrls"`
	ProductInfo   ProductInfo        `json:"productInfo"`
}

// SideFiles are the regenerated URLs for one side
type SideFiles struct {
	MockupURL string `json:"mockupUrl"`
	HDURL     string `json:"hdUrl"`
}

// RegenerationResult mirrors the function response {front:{...}, back:{...}}
type RegenerationResult struct {
	Front SideFiles `json:"front"`
	Back  SideFiles `json:"back"`
}

// For returns the files of one side
func (r RegenerationResult) For(side Side) SideFiles {
	if side == SideBack {
		return r.Back
	}
	return r.Front
}

// Set assigns the files of one side
func (r *RegenerationResult) Set(side Side, f SideFiles) {
	if side == SideBack {
		r.Back = f
		return
	}
	r.Front = f
}

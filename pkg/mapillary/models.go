package mapillary

// ImagesResponse is the envelope returned by the Graph API images endpoint.
// Data is a pointer so a missing field can be told apart from a malformed one.
type ImagesResponse struct {
	Data *[]Image `json:"data"`
}

// Image is a single candidate returned for a bounding-box search.
type Image struct {
	ID       string    `json:"id"`
	IsPano   bool      `json:"is_pano"`
	Geometry *Geometry `json:"geometry,omitempty"`
}

// Geometry is the GeoJSON point where the image was captured.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

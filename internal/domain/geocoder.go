package domain

import "context"

// Place is a geocoding result shown in the address search box.
type Place struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Relevance float64 `json:"relevance"` // 0.0–1.0 provider confidence score
}

// Geocoder resolves addresses to coordinates and back.
type Geocoder interface {
	// Search returns places matching a free-text query, best match first.
	Search(ctx context.Context, query, lang string) ([]Place, error)

	// Reverse returns the place at a coordinate. An empty Label means nothing was found.
	Reverse(ctx context.Context, lat, lng float64, lang string) (Place, error)
}

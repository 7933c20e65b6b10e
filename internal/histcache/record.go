package histcache

import (
	"fmt"
	"strconv"

	"github.com/stellarlinkco/myalex/internal/api"
)

// Coordinates is the query point a record was fetched for.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Record is one cached historical-context answer, enriched with the query
// coordinates and capture time. FromCache and OfflineMode are annotations on
// returned copies, never meaningful in the stored form.
type Record struct {
	api.HistoricalContextResponse

	LandmarkName     string      `json:"landmark_name,omitempty"`
	Coordinates      Coordinates `json:"coordinates"`
	CachedAt         int64       `json:"cachedAt"`
	OfflineAvailable bool        `json:"offline_available"`
	FromCache        bool        `json:"_fromCache,omitempty"`
	OfflineMode      bool        `json:"_offlineMode,omitempty"`
}

// Key derives the cache slot for a coordinate and language. Rounding to four
// decimal places (~11m) collapses repeated nearby queries onto one slot.
func Key(lat, lng float64, language string) string {
	return fmt.Sprintf("hist_%s_%s_%s",
		strconv.FormatFloat(lat, 'f', 4, 64),
		strconv.FormatFloat(lng, 'f', 4, 64),
		language)
}

// placeholder is the synthetic record returned when neither the network nor
// the cache can answer. It is never stored.
func placeholder(lat, lng float64, language string) Record {
	return Record{
		HistoricalContextResponse: api.HistoricalContextResponse{
			Success:           false,
			Error:             "No cached historical data available for this location",
			HistoricalContext: "Historical context not available offline. Please connect to the internet for fresh content.",
			LocationInfo:      api.LocationInfo{Name: "Unknown Location"},
			Metadata: api.ContextMetadata{
				UserLanguage: language,
				Coordinates:  api.ContextCoordinates{Latitude: lat, Longitude: lng},
			},
			EraDetails: []api.EraDetail{},
		},
		Coordinates: Coordinates{Lat: lat, Lng: lng},
		OfflineMode: true,
	}
}

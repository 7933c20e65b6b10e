package histcache

// Landmark is a well-known point of interest used to warm the cache.
type Landmark struct {
	Name string
	Lat  float64
	Lng  float64
}

// Landmarks is the fixed preload set for Alexandria.
var Landmarks = []Landmark{
	{Name: "Bibliotheca Alexandrina", Lat: 31.2089, Lng: 29.9097},
	{Name: "Citadel of Qaitbay", Lat: 31.2139, Lng: 29.8839},
	{Name: "Pompey's Pillar", Lat: 31.1823, Lng: 29.8999},
	{Name: "Alexandria National Museum", Lat: 31.2001, Lng: 29.9187},
}

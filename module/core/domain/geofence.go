package domain

type GeofenceKind string

const (
	GeofencePark     GeofenceKind = "park"
	GeofenceWorkshop GeofenceKind = "workshop"
)

func (k GeofenceKind) Valid() bool {
	return k == GeofencePark || k == GeofenceWorkshop
}

// Vertex is stored lon-first, matching GeoJSON ring order.
type Vertex struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

type Geofence struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    GeofenceKind `json:"kind"`
	Polygon []Vertex     `json:"polygon"`
}

func (g Geofence) Ref() *GeofenceRef {
	return &GeofenceRef{ID: g.ID, Name: g.Name}
}

type GeofenceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GeofenceMatch struct {
	Inside   bool         `json:"inside"`
	Geofence *GeofenceRef `json:"geofence,omitempty"`
}

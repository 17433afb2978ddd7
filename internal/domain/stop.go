package domain

// Stop is a named point on the rural network. Name is the display key used
// everywhere a stop is referenced.
type Stop struct {
	Name        string
	Lat         float64
	Lng         float64
	Block       string
	Panchayat   string
	VillageCode string
}

// NodeType classifies a node of the static network graph.
type NodeType string

const (
	NodeTypeHub  NodeType = "Hub"
	NodeTypeStop NodeType = "Stop"
)

// NetworkNode is one entry of the static adjacency graph. Key is the
// lower-case lookup key, Name the display name it maps back to.
type NetworkNode struct {
	Key         string
	ID          string
	Name        string
	Type        NodeType
	Connections []string
}

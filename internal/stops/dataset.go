package stops

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"villagelink/internal/domain"
)

//go:embed rohtas.yaml
var defaultDataset []byte

// Dataset is the on-disk description of the stop directory and the static
// network graph.
type Dataset struct {
	Stops   []StopRecord `yaml:"stops" validate:"required,min=1,dive"`
	Network []NodeRecord `yaml:"network" validate:"dive"`
}

// StopRecord is one stop as it appears in the dataset file.
type StopRecord struct {
	Name        string  `yaml:"name" validate:"required"`
	Lat         float64 `yaml:"lat" validate:"latitude"`
	Lng         float64 `yaml:"lng" validate:"longitude"`
	Block       string  `yaml:"block"`
	Panchayat   string  `yaml:"panchayat"`
	VillageCode string  `yaml:"village_code"`
}

// NodeRecord is one adjacency entry as it appears in the dataset file.
type NodeRecord struct {
	Key         string   `yaml:"key" validate:"required"`
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name" validate:"required"`
	Type        string   `yaml:"type" validate:"omitempty,oneof=Hub Stop"`
	Connections []string `yaml:"connections"`
}

// LoadDataset reads and validates a dataset. An empty path loads the
// embedded Rohtas network.
func LoadDataset(path string) (*Dataset, error) {
	data := defaultDataset
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read stops dataset: %w", err)
		}
		data = b
	}
	return ParseDataset(data)
}

// ParseDataset decodes and validates dataset YAML.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode stops dataset: %w", err)
	}

	v := validator.New()
	if err := v.Struct(ds); err != nil {
		return nil, fmt.Errorf("validate stops dataset: %w", err)
	}

	keys := make(map[string]bool, len(ds.Network))
	for _, n := range ds.Network {
		k := strings.ToLower(n.Key)
		if keys[k] {
			return nil, fmt.Errorf("validate stops dataset: duplicate network key %q", n.Key)
		}
		keys[k] = true
	}
	for _, n := range ds.Network {
		for _, c := range n.Connections {
			if !keys[strings.ToLower(c)] {
				return nil, fmt.Errorf("validate stops dataset: node %q connects to unknown key %q", n.Key, c)
			}
		}
	}

	return &ds, nil
}

// DomainStops converts the stop records in file order.
func (ds *Dataset) DomainStops() []domain.Stop {
	out := make([]domain.Stop, 0, len(ds.Stops))
	for _, s := range ds.Stops {
		out = append(out, domain.Stop{
			Name:        s.Name,
			Lat:         s.Lat,
			Lng:         s.Lng,
			Block:       s.Block,
			Panchayat:   s.Panchayat,
			VillageCode: s.VillageCode,
		})
	}
	return out
}

// DomainNodes converts the network records.
func (ds *Dataset) DomainNodes() []domain.NetworkNode {
	out := make([]domain.NetworkNode, 0, len(ds.Network))
	for _, n := range ds.Network {
		nodeType := domain.NodeTypeStop
		if n.Type == string(domain.NodeTypeHub) {
			nodeType = domain.NodeTypeHub
		}
		out = append(out, domain.NetworkNode{
			Key:         n.Key,
			ID:          n.ID,
			Name:        n.Name,
			Type:        nodeType,
			Connections: append([]string(nil), n.Connections...),
		})
	}
	return out
}

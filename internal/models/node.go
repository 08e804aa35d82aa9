package models

// Node represents a physical location in the supply chain that holds inventory.
// Source nodes receive raw goods, assembly nodes cook them into products and
// distribution nodes hand them out.
type Node struct {
	Base
	Name      string   `gorm:"not null" json:"node_name"`
	Type      NodeType `gorm:"not null" json:"node_type"`
	Address   string   `json:"node_address,omitempty"`
	Latitude  *float64 `json:"node_latitude,omitempty"`
	Longitude *float64 `json:"node_longitude,omitempty"`
	Status    Status   `gorm:"not null;default:'Active'" json:"node_status"`
}

// NodeType represents the role a node plays in the chain
type NodeType string

const (
	// Node types
	NodeTypeSource       NodeType = "Source"
	NodeTypeAssembly     NodeType = "Assembly"
	NodeTypeDistribution NodeType = "Distribution"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeSource, NodeTypeAssembly, NodeTypeDistribution:
		return true
	}
	return false
}

package models

// RelationshipStatus is the state of a directed friendship edge.
type RelationshipStatus string

const (
	StatusPending  RelationshipStatus = "pending"
	StatusAccepted RelationshipStatus = "accepted"
	StatusRejected RelationshipStatus = "rejected"
)

// Relationship is a directed edge owner -> peer. An accepted friendship is
// stored as two accepted edges, one per direction.
type Relationship struct {
	OwnerID string
	PeerID  string
	Status  RelationshipStatus
}

// Block is a directed edge owner -> blocked identity.
type Block struct {
	OwnerID   string
	BlockedID string
}

// Contact is an identity reference resolved to its username.
type Contact struct {
	ID       string
	UserName string
}

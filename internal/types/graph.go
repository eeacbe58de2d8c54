package types

import "time"

// NodeKind enumerates the kinds of nodes the relationship graph holds.
type NodeKind string

const (
	NodeMemory    NodeKind = "Memory"
	NodeComponent NodeKind = "Component"
	NodeDecision  NodeKind = "Decision"
)

// EdgeKind enumerates every typed edge the graph supports.
type EdgeKind string

const (
	EdgeRelatesTo     EdgeKind = "RELATES_TO"
	EdgeDependsOn     EdgeKind = "DEPENDS_ON"
	EdgeSupersedes    EdgeKind = "SUPERSEDES"
	EdgeRespondsTo    EdgeKind = "RESPONDS_TO"
	EdgeExtends       EdgeKind = "EXTENDS"
	EdgeConflictsWith EdgeKind = "CONFLICTS_WITH"
	EdgeDescribes     EdgeKind = "DESCRIBES"
	EdgeJustifies     EdgeKind = "JUSTIFIES"
)

// MemoryEdgeKinds are the edge kinds valid between two Memory nodes.
var MemoryEdgeKinds = map[EdgeKind]bool{
	EdgeRelatesTo:     true,
	EdgeDependsOn:     true,
	EdgeSupersedes:    true,
	EdgeRespondsTo:    true,
	EdgeExtends:       true,
	EdgeConflictsWith: true,
}

// Node is one vertex of the relationship graph.
type Node struct {
	ID        string    `json:"id"`
	Kind      NodeKind  `json:"kind"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Edge is one directed, typed connection between two nodes.
type Edge struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Kind      EdgeKind  `json:"kind"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Component is a named, typed system part that memories can describe and
// that can depend on other components.
type Component struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision is a recorded design decision with structured rationale.
type Decision struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	OwnerID      string    `json:"owner_id"`
	Pros         []string  `json:"pros,omitempty"`
	Cons         []string  `json:"cons,omitempty"`
	Alternatives []string  `json:"alternatives,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RelatedNode is one hop result from a graph traversal.
type RelatedNode struct {
	NodeID string     `json:"node_id"`
	Kinds  []EdgeKind `json:"edge_kinds"`
	Depth  int        `json:"depth"`
}

// PathStep is one edge-labelled hop in a shortest-path result.
type PathStep struct {
	NodeID string   `json:"node_id"`
	Via    EdgeKind `json:"via,omitempty"`
}

// ComponentImpact is one entry in an impact-analysis result: a component
// that would be affected, and how many memories describe it.
type ComponentImpact struct {
	Name        string `json:"name"`
	MemoryCount int    `json:"memory_count"`
	Distance    int    `json:"distance"`
}

// IntelligenceSummary is the top-level numeric summary of a graph state.
type IntelligenceSummary struct {
	TotalMemories    int     `json:"total_memories"`
	AvgConnections   float64 `json:"avg_connections"`
	IsolatedMemories int     `json:"isolated_memories"`
	ObsoleteMemories int     `json:"obsolete_memories"`
	KnowledgeHealth  float64 `json:"knowledge_health_score"`
}

// ConflictEdge names two memories joined by a CONFLICTS_WITH edge.
type ConflictEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// IntelligenceInsights is the §4.4 "insights" block.
type IntelligenceInsights struct {
	ConflictingKnowledge []ConflictEdge `json:"conflicting_knowledge"`
	Clusters             map[string]int `json:"clusters"`
	CentralMemories      []string       `json:"central_memories"`
}

// IntelligenceReport is the full analyze_memory_intelligence result.
type IntelligenceReport struct {
	Summary         IntelligenceSummary  `json:"summary"`
	Insights        IntelligenceInsights `json:"insights"`
	Recommendations []string             `json:"recommendations"`
}

package graph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// kindCaser normalizes a freeform component kind ("database", "DATABASE")
// to a single Title-case display form so callers registering the same
// kind of component under different casing don't fragment
// impact-analysis grouping. Only casing is normalized: "data base"
// becomes "Data Base", not "Database".
var kindCaser = cases.Title(language.English)

// TrustWeights configures calculate_trust_score. Exact weights are left
// open by the spec; these are this repo's documented, deterministic
// choice (see DESIGN.md).
type TrustWeights struct {
	CitationWeight  float64
	RecencyWeight   float64
	ConflictPenalty float64
	RecencyHalfLife time.Duration
}

// DefaultTrustWeights is the weighting used unless overridden.
func DefaultTrustWeights() TrustWeights {
	return TrustWeights{
		CitationWeight:  0.5,
		RecencyWeight:   0.3,
		ConflictPenalty: 0.1,
		RecencyHalfLife: 90 * 24 * time.Hour,
	}
}

// Engine is the in-process adjacency cache over the durable Store. All
// reads are served from memory; all writes go through the Store first
// and are applied to the cache only once durable, grounded on
// manager.go's mutex-protected map-of-slices shape, generalized to
// typed multi-kind edges.
type Engine struct {
	store   *Store
	weights TrustWeights

	mu         sync.RWMutex
	nodes      map[string]types.Node
	edgesOut   map[string][]types.Edge
	edgesIn    map[string][]types.Edge
	components map[string]types.Component
	decisions  map[string]types.Decision
	memByOwner map[string]map[string]types.Memory // owner -> memoryID -> content snapshot
}

// NewEngine builds an Engine backed by store, with the default trust
// weights. Call Load before serving traffic.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store:      store,
		weights:    DefaultTrustWeights(),
		nodes:      make(map[string]types.Node),
		edgesOut:   make(map[string][]types.Edge),
		edgesIn:    make(map[string][]types.Edge),
		components: make(map[string]types.Component),
		decisions:  make(map[string]types.Decision),
		memByOwner: make(map[string]map[string]types.Memory),
	}
}

// Load rebuilds the adjacency cache from the durable store.
func (e *Engine) Load(ctx context.Context) error {
	nodes, edges, components, decisions, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("graph: load cache: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, n := range nodes {
		e.nodes[n.ID] = n
	}
	for _, ed := range edges {
		e.indexEdgeLocked(ed)
	}
	for _, c := range components {
		e.components[c.Name] = c
	}
	for _, d := range decisions {
		e.decisions[d.ID] = d
	}
	return nil
}

func (e *Engine) indexEdgeLocked(ed types.Edge) {
	e.edgesOut[ed.From] = append(e.edgesOut[ed.From], ed)
	e.edgesIn[ed.To] = append(e.edgesIn[ed.To], ed)
}

// NoteMemory registers a memory's existence (owner, content) in the
// cache so traversal/evolution/intelligence queries can see it even
// before it has any edges. Call this once per insert/update.
func (e *Engine) NoteMemory(mem types.Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.nodes[mem.ID]; !ok {
		e.nodes[mem.ID] = types.Node{ID: mem.ID, Kind: types.NodeMemory, OwnerID: mem.OwnerID, CreatedAt: mem.CreatedAt}
	}
	if e.memByOwner[mem.OwnerID] == nil {
		e.memByOwner[mem.OwnerID] = make(map[string]types.Memory)
	}
	e.memByOwner[mem.OwnerID][mem.ID] = mem
}

// ForgetMemory removes a memory (and, by cascade, its edges) from the
// cache, used on delete/reset.
func (e *Engine) ForgetMemory(ownerID, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.nodes, id)
	if owned := e.memByOwner[ownerID]; owned != nil {
		delete(owned, id)
	}

	// Every edge touching id also lives in the matching slice on its
	// other endpoint; drop it there too or that endpoint keeps a
	// dangling reference to a node that no longer exists.
	for _, ed := range e.edgesOut[id] {
		e.edgesIn[ed.To] = removeEdgeByID(e.edgesIn[ed.To], ed.ID)
	}
	for _, ed := range e.edgesIn[id] {
		e.edgesOut[ed.From] = removeEdgeByID(e.edgesOut[ed.From], ed.ID)
	}
	delete(e.edgesOut, id)
	delete(e.edgesIn, id)
}

func removeEdgeByID(edges []types.Edge, id string) []types.Edge {
	out := make([]types.Edge, 0, len(edges))
	for _, ed := range edges {
		if ed.ID != id {
			out = append(out, ed)
		}
	}
	return out
}

// ProjectMemory durably creates a memory node for mem (or no-ops if it
// already exists) and attaches DESCRIBES edges to every component named
// in mem.Metadata["components"]. This is the unit of work the background
// projection worker pool retries on failure.
func (e *Engine) ProjectMemory(ctx context.Context, mem types.Memory) error {
	node := types.Node{ID: mem.ID, Kind: types.NodeMemory, OwnerID: mem.OwnerID, CreatedAt: mem.CreatedAt}
	if err := e.store.UpsertNode(ctx, node); err != nil {
		return fmt.Errorf("graph: project memory %s: %w", mem.ID, err)
	}
	e.NoteMemory(mem)

	for _, name := range componentNames(mem.Metadata) {
		if _, err := e.LinkMemoryToComponent(ctx, mem.ID, name); err != nil {
			return fmt.Errorf("graph: link memory %s to component %s: %w", mem.ID, name, err)
		}
	}
	return nil
}

func componentNames(metadata map[string]interface{}) []string {
	raw, ok := metadata["components"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// RemoveMemoryNode durably deletes a memory's node (cascading its edges)
// and evicts it from the cache. Used on memory delete and reset.
func (e *Engine) RemoveMemoryNode(ctx context.Context, ownerID, id string) error {
	if err := e.store.DeleteNode(ctx, id); err != nil {
		return fmt.Errorf("graph: remove memory node %s: %w", id, err)
	}
	e.ForgetMemory(ownerID, id)
	return nil
}

// LinkMemories creates an edge between two memory nodes. If kind is
// SUPERSEDES the superseded node (to) is subsequently reported as
// obsolete by every analysis that asks.
func (e *Engine) LinkMemories(ctx context.Context, from, to string, kind types.EdgeKind) (*types.Edge, error) {
	if !types.MemoryEdgeKinds[kind] {
		return nil, fmt.Errorf("graph: %s is not a valid memory-to-memory edge kind", kind)
	}
	return e.link(ctx, from, to, kind, "")
}

func (e *Engine) link(ctx context.Context, from, to string, kind types.EdgeKind, tag string) (*types.Edge, error) {
	ed := types.Edge{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Kind:      kind,
		Tag:       tag,
		CreatedAt: now(),
	}
	if err := e.store.AddEdge(ctx, ed); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.indexEdgeLocked(ed)
	e.mu.Unlock()
	return &ed, nil
}

// GetRelatedMemories returns every memory node reachable from id within
// depth edges via BFS, deduplicated, excluding the origin, each tagged
// with the edge kinds that connected it. Edges are walked in both
// directions: relatedness is symmetric even though the underlying edge
// is directed.
func (e *Engine) GetRelatedMemories(id string, depth int) []types.RelatedNode {
	if depth <= 0 {
		depth = 2
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	type frontierEntry struct {
		id    string
		depth int
	}

	visited := map[string]bool{id: true}
	kindsSeen := make(map[string]map[types.EdgeKind]bool)
	firstDepth := make(map[string]int)
	queue := []frontierEntry{{id, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		for _, nb := range e.neighborsLocked(cur.id) {
			if !visited[nb.node] {
				visited[nb.node] = true
				firstDepth[nb.node] = cur.depth + 1
				queue = append(queue, frontierEntry{nb.node, cur.depth + 1})
			}
			if kindsSeen[nb.node] == nil {
				kindsSeen[nb.node] = make(map[types.EdgeKind]bool)
			}
			kindsSeen[nb.node][nb.kind] = true
		}
	}

	var out []types.RelatedNode
	for nodeID, kinds := range kindsSeen {
		if nodeID == id {
			continue
		}
		var ks []types.EdgeKind
		for k := range kinds {
			ks = append(ks, k)
		}
		sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
		out = append(out, types.RelatedNode{NodeID: nodeID, Kinds: ks, Depth: firstDepth[nodeID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

type neighbor struct {
	node string
	kind types.EdgeKind
}

func (e *Engine) neighborsLocked(id string) []neighbor {
	var out []neighbor
	for _, ed := range e.edgesOut[id] {
		out = append(out, neighbor{ed.To, ed.Kind})
	}
	for _, ed := range e.edgesIn[id] {
		out = append(out, neighbor{ed.From, ed.Kind})
	}
	return out
}

// FindPath returns the shortest edge-labelled path from a to b, or nil
// if no path exists.
func (e *Engine) FindPath(a, b string) []types.PathStep {
	if a == b {
		return []types.PathStep{{NodeID: a}}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	type queued struct {
		id   string
		path []types.PathStep
	}
	visited := map[string]bool{a: true}
	queue := []queued{{a, []types.PathStep{{NodeID: a}}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range e.neighborsLocked(cur.id) {
			if visited[nb.node] {
				continue
			}
			visited[nb.node] = true
			path := append(append([]types.PathStep{}, cur.path...), types.PathStep{NodeID: nb.node, Via: nb.kind})
			if nb.node == b {
				return path
			}
			queue = append(queue, queued{nb.node, path})
		}
	}
	return nil
}

// GetMemoryEvolution returns memory nodes whose content matches topic
// by substring, or are linked by EXTENDS/SUPERSEDES from such a node,
// ordered by created_at, restricted to [since, until].
func (e *Engine) GetMemoryEvolution(topic string, since, until time.Time) []types.Memory {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seeds := make(map[string]bool)
	all := make(map[string]types.Memory)
	for _, owned := range e.memByOwner {
		for id, mem := range owned {
			all[id] = mem
			if strings.Contains(strings.ToLower(mem.Content), strings.ToLower(topic)) {
				seeds[id] = true
			}
		}
	}

	linked := make(map[string]bool)
	for id := range seeds {
		linked[id] = true
	}
	changed := true
	for changed {
		changed = false
		for id := range linked {
			for _, ed := range e.edgesIn[id] {
				if (ed.Kind == types.EdgeExtends || ed.Kind == types.EdgeSupersedes) && !linked[ed.From] {
					linked[ed.From] = true
					changed = true
				}
			}
			for _, ed := range e.edgesOut[id] {
				if (ed.Kind == types.EdgeExtends || ed.Kind == types.EdgeSupersedes) && !linked[ed.To] {
					linked[ed.To] = true
					changed = true
				}
			}
		}
	}

	var out []types.Memory
	for id := range linked {
		mem, ok := all[id]
		if !ok {
			continue
		}
		if !since.IsZero() && mem.CreatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && mem.CreatedAt.After(until) {
			continue
		}
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FindSupersededMemories returns every memory node belonging to userID
// with an incoming SUPERSEDES edge from another owned node.
func (e *Engine) FindSupersededMemories(userID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []string
	for id := range e.memByOwner[userID] {
		for _, ed := range e.edgesIn[id] {
			if _, owned := e.memByOwner[userID][ed.From]; ed.Kind == types.EdgeSupersedes && owned {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) isObsoleteLocked(id string) bool {
	for _, ed := range e.edgesIn[id] {
		if ed.Kind == types.EdgeSupersedes {
			return true
		}
	}
	return false
}

// CreateComponent upserts a component node; name is unique.
func (e *Engine) CreateComponent(ctx context.Context, name, kind string) error {
	c := types.Component{Name: name, Kind: kindCaser.String(strings.TrimSpace(kind)), CreatedAt: now()}
	if err := e.store.UpsertComponent(ctx, c); err != nil {
		return err
	}
	if err := e.store.UpsertNode(ctx, types.Node{ID: "component:" + name, Kind: types.NodeComponent, CreatedAt: c.CreatedAt}); err != nil {
		return err
	}

	e.mu.Lock()
	e.components[name] = c
	e.nodes["component:"+name] = types.Node{ID: "component:" + name, Kind: types.NodeComponent, CreatedAt: c.CreatedAt}
	e.mu.Unlock()
	return nil
}

// LinkComponentDependency creates a DEPENDS_ON edge between two
// component nodes (from depends on to).
func (e *Engine) LinkComponentDependency(ctx context.Context, from, to, tag string) (*types.Edge, error) {
	return e.link(ctx, "component:"+from, "component:"+to, types.EdgeDependsOn, tag)
}

// LinkMemoryToComponent creates a DESCRIBES edge from a memory to a
// component.
func (e *Engine) LinkMemoryToComponent(ctx context.Context, memoryID, componentName string) (*types.Edge, error) {
	return e.link(ctx, memoryID, "component:"+componentName, types.EdgeDescribes, "")
}

// GetImpactAnalysis returns, for component name, the transitive set of
// components reachable via reversed DEPENDS_ON (what would break if
// name changed), paired with the count of memories describing each and
// its distance from name.
func (e *Engine) GetImpactAnalysis(name string) []types.ComponentImpact {
	root := "component:" + name

	e.mu.RLock()
	defer e.mu.RUnlock()

	type frontierEntry struct {
		id    string
		depth int
	}
	visited := map[string]int{root: 0}
	queue := []frontierEntry{{root, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		// reversed DEPENDS_ON: walk edges whose To == cur.id (i.e. the
		// components that declared a dependency on cur.id).
		for _, ed := range e.edgesIn[cur.id] {
			if ed.Kind != types.EdgeDependsOn {
				continue
			}
			if _, seen := visited[ed.From]; seen {
				continue
			}
			visited[ed.From] = cur.depth + 1
			queue = append(queue, frontierEntry{ed.From, cur.depth + 1})
		}
	}

	var out []types.ComponentImpact
	for id, depth := range visited {
		if id == root {
			continue
		}
		compName := strings.TrimPrefix(id, "component:")
		count := 0
		for _, ed := range e.edgesIn[id] {
			if ed.Kind == types.EdgeDescribes {
				count++
			}
		}
		out = append(out, types.ComponentImpact{Name: compName, MemoryCount: count, Distance: depth})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CreateDecision creates a decision node and returns its id.
func (e *Engine) CreateDecision(ctx context.Context, text, ownerID string, pros, cons, alternatives []string) (string, error) {
	d := types.Decision{
		ID:           uuid.NewString(),
		Text:         text,
		OwnerID:      ownerID,
		Pros:         pros,
		Cons:         cons,
		Alternatives: alternatives,
		CreatedAt:    now(),
	}
	if err := e.store.InsertDecision(ctx, d); err != nil {
		return "", err
	}
	if err := e.store.UpsertNode(ctx, types.Node{ID: d.ID, Kind: types.NodeDecision, OwnerID: ownerID, CreatedAt: d.CreatedAt}); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.decisions[d.ID] = d
	e.nodes[d.ID] = types.Node{ID: d.ID, Kind: types.NodeDecision, OwnerID: ownerID, CreatedAt: d.CreatedAt}
	e.mu.Unlock()
	return d.ID, nil
}

// LinkMemoryJustifiesDecision creates a JUSTIFIES edge from a memory to
// a decision.
func (e *Engine) LinkMemoryJustifiesDecision(ctx context.Context, memoryID, decisionID string) (*types.Edge, error) {
	return e.link(ctx, memoryID, decisionID, types.EdgeJustifies, "")
}

// DecisionRationale is the full decision node plus the memories that
// justify it.
type DecisionRationale struct {
	Decision types.Decision
	Memories []string
}

// GetDecisionRationale returns the decision node plus the IDs of
// memories linked to it via JUSTIFIES.
func (e *Engine) GetDecisionRationale(id string) (*DecisionRationale, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d, ok := e.decisions[id]
	if !ok {
		return nil, fmt.Errorf("graph: decision %s not found", id)
	}

	var memories []string
	for _, ed := range e.edgesIn[id] {
		if ed.Kind == types.EdgeJustifies {
			memories = append(memories, ed.From)
		}
	}
	sort.Strings(memories)
	return &DecisionRationale{Decision: d, Memories: memories}, nil
}

// DetectMemoryCommunities partitions the memory subgraph of ownerID
// into clusters using label propagation: every node starts labelled
// with its own id, then repeatedly takes the most common label among
// its neighbors (ties broken by the smallest label), adopting it only
// when it sorts before the node's current label, until stable or a
// fixed iteration cap is hit, to guarantee termination on any input.
func (e *Engine) DetectMemoryCommunities(ownerID string) map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.detectMemoryCommunitiesLocked(e.memByOwner[ownerID])
}

// CalculateTrustScore computes a deterministic [0,1] trust score for a
// memory: a weighted sum of inbound-citation count (RESPONDS_TO/EXTENDS
// in), recency decay with the configured half-life, and a negative
// contribution per CONFLICTS_WITH edge.
func (e *Engine) CalculateTrustScore(memoryID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trustScoreLocked(memoryID)
}

func (e *Engine) trustScoreLocked(memoryID string) float64 {
	citations := 0
	conflicts := 0
	for _, ed := range e.edgesIn[memoryID] {
		switch ed.Kind {
		case types.EdgeRespondsTo, types.EdgeExtends:
			citations++
		case types.EdgeConflictsWith:
			conflicts++
		}
	}
	for _, ed := range e.edgesOut[memoryID] {
		if ed.Kind == types.EdgeConflictsWith {
			conflicts++
		}
	}

	normalizedCitations := float64(citations) / float64(citations+1)

	var recency float64
	for _, m := range e.memByOwner {
		if mem, ok := m[memoryID]; ok {
			ageDays := time.Since(mem.CreatedAt).Hours() / 24
			halfLifeDays := e.weights.RecencyHalfLife.Hours() / 24
			recency = math.Exp(-math.Ln2 * ageDays / halfLifeDays)
			break
		}
	}

	score := e.weights.CitationWeight*normalizedCitations +
		e.weights.RecencyWeight*recency -
		e.weights.ConflictPenalty*float64(conflicts)

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AnalyzeMemoryIntelligence computes the full analyze_memory_intelligence
// report for ownerID.
func (e *Engine) AnalyzeMemoryIntelligence(ownerID string) types.IntelligenceReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	owned := e.memByOwner[ownerID]
	total := len(owned)

	degree := make(map[string]int, total)
	isolated := 0
	obsolete := 0
	var conflicts []types.ConflictEdge
	totalConnections := 0

	for id := range owned {
		d := len(e.edgesOut[id]) + len(e.edgesIn[id])
		degree[id] = d
		totalConnections += d
		if d == 0 {
			isolated++
		}
		if e.isObsoleteLocked(id) {
			obsolete++
		}
		for _, ed := range e.edgesOut[id] {
			if ed.Kind == types.EdgeConflictsWith {
				conflicts = append(conflicts, types.ConflictEdge{From: ed.From, To: ed.To})
			}
		}
	}

	var avgConnections float64
	if total > 0 {
		avgConnections = float64(totalConnections) / float64(total)
	}

	isolationRatio := ratio(isolated, total)
	obsoleteRatio := ratio(obsolete, total)
	conflictRatio := ratio(len(conflicts), total)
	avgClustering := e.averageClusteringLocked(owned)

	health := knowledgeHealthScore(isolationRatio, obsoleteRatio, conflictRatio, avgClustering)

	clusters := e.detectMemoryCommunitiesLocked(owned)

	central := make([]string, 0, total)
	for id := range owned {
		central = append(central, id)
	}
	sort.Slice(central, func(i, j int) bool {
		if degree[central[i]] != degree[central[j]] {
			return degree[central[i]] > degree[central[j]]
		}
		return central[i] < central[j]
	})
	if len(central) > 5 {
		central = central[:5]
	}

	return types.IntelligenceReport{
		Summary: types.IntelligenceSummary{
			TotalMemories:    total,
			AvgConnections:   avgConnections,
			IsolatedMemories: isolated,
			ObsoleteMemories: obsolete,
			KnowledgeHealth:  health,
		},
		Insights: types.IntelligenceInsights{
			ConflictingKnowledge: conflicts,
			Clusters:             clusters,
			CentralMemories:      central,
		},
		Recommendations: recommendations(isolationRatio, obsoleteRatio, conflictRatio),
	}
}

// knowledgeHealthScore is this repo's documented formula for
// knowledge_health_score ∈ [0, 10] (an Open Question the spec leaves
// unformalized, see DESIGN.md): it starts from perfect health and
// subtracts weighted penalties for isolation, obsolescence and
// conflict, then adds a small bonus for clustering, clamped to range.
func knowledgeHealthScore(isolationRatio, obsoleteRatio, conflictRatio, avgClustering float64) float64 {
	raw := 1.0 - 0.4*isolationRatio - 0.3*obsoleteRatio - 0.3*conflictRatio + 0.1*avgClustering
	return clamp01(raw) * 10
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func recommendations(isolationRatio, obsoleteRatio, conflictRatio float64) []string {
	var out []string
	if isolationRatio > 0.3 {
		out = append(out, "a large share of memories have no relationships; consider linking related memories")
	}
	if obsoleteRatio > 0.2 {
		out = append(out, "many memories have been superseded; review whether obsolete ones should be pruned")
	}
	if conflictRatio > 0.1 {
		out = append(out, "conflicting memories detected; review CONFLICTS_WITH edges for contradictions")
	}
	if len(out) == 0 {
		out = append(out, "knowledge graph looks healthy")
	}
	return out
}

// averageClusteringLocked computes the average local clustering
// coefficient over owned nodes: for each node, the fraction of pairs
// of its neighbors that are themselves connected.
func (e *Engine) averageClusteringLocked(owned map[string]types.Memory) float64 {
	if len(owned) == 0 {
		return 0
	}

	var sum float64
	for id := range owned {
		neighbors := map[string]bool{}
		for _, nb := range e.neighborsLocked(id) {
			neighbors[nb.node] = true
		}
		k := len(neighbors)
		if k < 2 {
			continue
		}

		links := 0
		ids := make([]string, 0, k)
		for n := range neighbors {
			ids = append(ids, n)
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if e.connectedLocked(ids[i], ids[j]) {
					links++
				}
			}
		}
		possible := k * (k - 1) / 2
		sum += float64(links) / float64(possible)
	}
	return sum / float64(len(owned))
}

func (e *Engine) connectedLocked(a, b string) bool {
	for _, ed := range e.edgesOut[a] {
		if ed.To == b {
			return true
		}
	}
	for _, ed := range e.edgesIn[a] {
		if ed.From == b {
			return true
		}
	}
	return false
}

// detectMemoryCommunitiesLocked is DetectMemoryCommunities' body
// factored out so AnalyzeMemoryIntelligence can reuse it while already
// holding the read lock.
func (e *Engine) detectMemoryCommunitiesLocked(owned map[string]types.Memory) map[string]int {
	if len(owned) == 0 {
		return map[string]int{}
	}

	ids := make([]string, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	const maxIterations = 20
	for iter := 0; iter < maxIterations; iter++ {
		changedAny := false
		for _, id := range ids {
			counts := make(map[string]int)
			for _, nb := range e.neighborsLocked(id) {
				if _, isOwned := owned[nb.node]; !isOwned {
					continue
				}
				counts[labels[nb.node]]++
			}
			if len(counts) == 0 {
				continue
			}
			bestCount := -1
			for _, c := range counts {
				if c > bestCount {
					bestCount = c
				}
			}
			best := labels[id]
			var candidates []string
			for label, c := range counts {
				if c == bestCount {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)
			if len(candidates) > 0 && candidates[0] < best {
				best = candidates[0]
			}
			if best != labels[id] {
				labels[id] = best
				changedAny = true
			}
		}
		if !changedAny {
			break
		}
	}

	clusters := make(map[string]int)
	for _, label := range labels {
		clusters[label]++
	}
	return clusters
}

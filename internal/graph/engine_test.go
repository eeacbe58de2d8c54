package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// newTestEngine builds an Engine with no backing Store, for tests that
// only exercise the in-memory cache via NoteMemory/indexEdgeLocked.
func newTestEngine() *Engine {
	return NewEngine(nil)
}

func (e *Engine) testLinkMemories(from, to string, kind types.EdgeKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indexEdgeLocked(types.Edge{ID: from + "-" + to + "-" + string(kind), From: from, To: to, Kind: kind, CreatedAt: time.Now()})
}

func TestGetRelatedMemories_ExcludesOriginAndDedups(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "a", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "b", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "c", OwnerID: "u1", CreatedAt: time.Now()})
	e.testLinkMemories("a", "b", types.EdgeRelatesTo)
	e.testLinkMemories("b", "c", types.EdgeRelatesTo)

	related := e.GetRelatedMemories("a", 2)
	ids := map[string]bool{}
	for _, r := range related {
		ids[r.NodeID] = true
	}
	assert.False(t, ids["a"])
	assert.True(t, ids["b"])
	assert.True(t, ids["c"])
}

func TestGetRelatedMemories_RespectsDepth(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "a", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "b", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "c", OwnerID: "u1", CreatedAt: time.Now()})
	e.testLinkMemories("a", "b", types.EdgeRelatesTo)
	e.testLinkMemories("b", "c", types.EdgeRelatesTo)

	related := e.GetRelatedMemories("a", 1)
	require.Len(t, related, 1)
	assert.Equal(t, "b", related[0].NodeID)
}

func TestFindPath_ReturnsShortestPath(t *testing.T) {
	e := newTestEngine()
	e.testLinkMemories("a", "b", types.EdgeRelatesTo)
	e.testLinkMemories("b", "c", types.EdgeRelatesTo)
	e.testLinkMemories("a", "c", types.EdgeConflictsWith)

	path := e.FindPath("a", "c")
	require.NotEmpty(t, path)
	assert.Equal(t, "c", path[len(path)-1].NodeID)
	assert.Len(t, path, 2)
}

func TestFindPath_ReturnsNilWhenUnreachable(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "isolated1", OwnerID: "u1"})
	e.NoteMemory(types.Memory{ID: "isolated2", OwnerID: "u1"})

	assert.Nil(t, e.FindPath("isolated1", "isolated2"))
}

func TestFindSupersededMemories_FindsIncomingSupersedes(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "old", OwnerID: "u1"})
	e.NoteMemory(types.Memory{ID: "new", OwnerID: "u1"})
	e.testLinkMemories("new", "old", types.EdgeSupersedes)

	superseded := e.FindSupersededMemories("u1")
	assert.Equal(t, []string{"old"}, superseded)
}

func TestForgetMemory_RemovesReverseEdgesOnSurvivingNeighbors(t *testing.T) {
	e := newTestEngine()
	e.mu.Lock()
	e.nodes["a"] = types.Node{ID: "a", Kind: types.NodeMemory}
	e.nodes["b"] = types.Node{ID: "b", Kind: types.NodeMemory}
	e.mu.Unlock()
	e.testLinkMemories("a", "b", types.EdgeExtends)

	e.ForgetMemory("", "b")

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Empty(t, e.edgesOut["a"], "a's outgoing edge to the forgotten node b must be removed, not left dangling")
	_, stillThere := e.edgesIn["b"]
	assert.False(t, stillThere)
}

func TestKindCaser_NormalizesFreeformKindToTitleCase(t *testing.T) {
	assert.Equal(t, "Database", kindCaser.String("database"))
	assert.Equal(t, "Database", kindCaser.String("DATABASE"))
	assert.Equal(t, "Message Queue", kindCaser.String("message queue"))
}

func TestGetImpactAnalysis_FollowsReversedDependsOn(t *testing.T) {
	e := newTestEngine()
	e.mu.Lock()
	e.nodes["component:db"] = types.Node{ID: "component:db", Kind: types.NodeComponent}
	e.nodes["component:api"] = types.Node{ID: "component:api", Kind: types.NodeComponent}
	e.nodes["component:web"] = types.Node{ID: "component:web", Kind: types.NodeComponent}
	e.mu.Unlock()
	// api depends on db, web depends on api: changing db impacts api and web.
	e.testLinkMemories("component:api", "component:db", types.EdgeDependsOn)
	e.testLinkMemories("component:web", "component:api", types.EdgeDependsOn)

	impact := e.GetImpactAnalysis("db")
	require.Len(t, impact, 2)
	assert.Equal(t, "api", impact[0].Name)
	assert.Equal(t, 1, impact[0].Distance)
	assert.Equal(t, "web", impact[1].Name)
	assert.Equal(t, 2, impact[1].Distance)
}

func TestDetectMemoryCommunities_IsolatedNodesFormSingletonClusters(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "a", OwnerID: "u1"})
	e.NoteMemory(types.Memory{ID: "b", OwnerID: "u1"})

	clusters := e.DetectMemoryCommunities("u1")
	assert.Len(t, clusters, 2)
}

func TestDetectMemoryCommunities_ConnectedNodesConverge(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "a", OwnerID: "u1"})
	e.NoteMemory(types.Memory{ID: "b", OwnerID: "u1"})
	e.NoteMemory(types.Memory{ID: "c", OwnerID: "u1"})
	e.testLinkMemories("a", "b", types.EdgeRelatesTo)
	e.testLinkMemories("b", "c", types.EdgeRelatesTo)

	clusters := e.DetectMemoryCommunities("u1")
	assert.Len(t, clusters, 1)
}

func TestCalculateTrustScore_HigherWithCitationsLowerWithConflicts(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "m1", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "m2", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "m3", OwnerID: "u1", CreatedAt: time.Now()})

	baseline := e.CalculateTrustScore("m1")

	e.testLinkMemories("m2", "m1", types.EdgeRespondsTo)
	cited := e.CalculateTrustScore("m1")
	assert.Greater(t, cited, baseline)

	e.testLinkMemories("m1", "m3", types.EdgeConflictsWith)
	conflicted := e.CalculateTrustScore("m1")
	assert.Less(t, conflicted, cited)
}

func TestCalculateTrustScore_StaysInUnitRange(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "m1", OwnerID: "u1", CreatedAt: time.Now()})
	score := e.CalculateTrustScore("m1")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestAnalyzeMemoryIntelligence_CountsIsolatedAndObsolete(t *testing.T) {
	e := newTestEngine()
	e.NoteMemory(types.Memory{ID: "a", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "b", OwnerID: "u1", CreatedAt: time.Now()})
	e.NoteMemory(types.Memory{ID: "c", OwnerID: "u1", CreatedAt: time.Now()})
	e.testLinkMemories("c", "b", types.EdgeSupersedes)

	report := e.AnalyzeMemoryIntelligence("u1")
	assert.Equal(t, 3, report.Summary.TotalMemories)
	assert.Equal(t, 1, report.Summary.IsolatedMemories) // "a" has no edges
	assert.Equal(t, 1, report.Summary.ObsoleteMemories) // "b" is superseded
	assert.GreaterOrEqual(t, report.Summary.KnowledgeHealth, 0.0)
	assert.LessOrEqual(t, report.Summary.KnowledgeHealth, 10.0)
}

func TestKnowledgeHealthScore_WorstCaseIsZero(t *testing.T) {
	score := knowledgeHealthScore(1.0, 1.0, 1.0, 0.0)
	assert.Equal(t, 0.0, score)
}

func TestKnowledgeHealthScore_BestCaseIsTen(t *testing.T) {
	score := knowledgeHealthScore(0.0, 0.0, 0.0, 1.0)
	assert.Equal(t, 10.0, score)
}

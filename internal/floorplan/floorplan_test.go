package floorplan

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirdFloor = `{
  "nodes": [
    {"id": 1340, "name": "1340", "position": [0, 0, 0]},
    {"id": 1341, "name": "Corridor", "position": [4.5, 0, 0]},
    {"id": "elev", "name": "3F Elevator", "position": [9, 0, 1.5]}
  ],
  "edges": [
    {"start": 1340, "end": 1341, "length": 4.5, "directionality": "bidirectional"},
    {"start": 1341, "end": "elev", "length": 4.7, "directionality": "unidirectional"}
  ],
  "markers": [
    {"id": "marker-1", "position": [0, 0, 0], "orientation": [0]}
  ]
}`

func TestNodeID_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("Number", func(t *testing.T) {
		t.Parallel()
		var id NodeID
		require.NoError(t, json.Unmarshal([]byte(`1340`), &id))
		assert.Equal(t, NodeID("1340"), id)
	})

	t.Run("String", func(t *testing.T) {
		t.Parallel()
		var id NodeID
		require.NoError(t, json.Unmarshal([]byte(`"lobby-a"`), &id))
		assert.Equal(t, NodeID("lobby-a"), id)
	})

	t.Run("Rejected", func(t *testing.T) {
		t.Parallel()
		var id NodeID
		assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
	})

	t.Run("MarshalRoundTripKeepsNumbers", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal([]NodeID{"1340", "elev"})
		require.NoError(t, err)
		assert.JSONEq(t, `[1340, "elev"]`, string(data))
	})

	t.Run("NonCanonicalIntegersStayStrings", func(t *testing.T) {
		t.Parallel()
		var id NodeID
		require.NoError(t, json.Unmarshal([]byte(`"007"`), &id))

		data, err := json.Marshal(Node{ID: id, Name: "Bond"})
		require.NoError(t, err)

		var node Node
		require.NoError(t, json.Unmarshal(data, &node))
		assert.Equal(t, NodeID("007"), node.ID)

		data, err = json.Marshal([]NodeID{"+5", "-3", "-0"})
		require.NoError(t, err)
		assert.JSONEq(t, `["+5", -3, "-0"]`, string(data))
	})
}

func TestSchema(t *testing.T) {
	t.Parallel()

	resolved, err := Schema().Resolve(nil)
	require.NoError(t, err)

	var doc any
	require.NoError(t, json.Unmarshal([]byte(thirdFloor), &doc))
	assert.NoError(t, resolved.Validate(doc))
}

func TestEdge_Reversed(t *testing.T) {
	t.Parallel()

	e := Edge{ID: "e1", Start: "A", End: "B", Length: 2, Directionality: Bidirectional}
	r := e.Reversed()

	assert.Equal(t, NodeID("B"), r.Start)
	assert.Equal(t, NodeID("A"), r.End)
	assert.Equal(t, 2.0, r.Length)
	assert.Equal(t, NodeID("A"), e.Start, "original edge must not change")
}

func TestIndex(t *testing.T) {
	t.Parallel()

	nodes := []Node{
		{ID: "1", Name: "Lobby"},
		{ID: "2", Name: "Stairs"},
		{ID: "3", Name: "Lobby"},
	}
	idx := NewIndex(nodes)

	t.Run("ByID", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "Stairs", idx.ByID("2").Name)
		assert.Nil(t, idx.ByID("missing"))
	})

	t.Run("ByNameFirstMatchWins", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, NodeID("1"), idx.ByName("Lobby").ID)
		assert.Nil(t, idx.ByName("Roof"))
	})

	t.Run("IDsInDeclaredOrder", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []NodeID{"1", "2", "3"}, idx.IDs())
		assert.Equal(t, 3, idx.Len())
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	nodes := []Node{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}}

	t.Run("WellFormed", func(t *testing.T) {
		t.Parallel()
		err := Validate(nodes, []Edge{{Start: "A", End: "B", Length: 1, Directionality: Bidirectional}})
		assert.NoError(t, err)
	})

	t.Run("ReportsEveryIssue", func(t *testing.T) {
		t.Parallel()
		bad := append([]Node{{ID: "A", Name: "again"}, {ID: "", Name: "blank"}}, nodes...)
		edges := []Edge{
			{Start: "A", End: "Z", Length: 1, Directionality: Bidirectional},
			{ID: "neg", Start: "A", End: "B", Length: -2, Directionality: Unidirectional},
			{Start: "B", End: "A", Length: math.Inf(1), Directionality: "sideways"},
		}

		err := Validate(bad, edges)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedGraph))

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Len(t, cfgErr.Issues, 6)
		assert.Contains(t, err.Error(), `missing end node "Z"`)
		assert.Contains(t, err.Error(), `edge "neg" has negative length -2`)
		assert.Contains(t, err.Error(), `duplicate node id "A"`)
	})

	t.Run("ZeroLengthAllowed", func(t *testing.T) {
		t.Parallel()
		err := Validate(nodes, []Edge{{Start: "A", End: "B", Length: 0, Directionality: Unidirectional}})
		assert.NoError(t, err)
	})
}

func TestDuplicateNames(t *testing.T) {
	t.Parallel()

	nodes := []Node{
		{ID: "1", Name: "Lobby"},
		{ID: "2", Name: "WC"},
		{ID: "3", Name: "Lobby"},
		{ID: "4", Name: "WC"},
		{ID: "5", Name: "Lobby"},
	}
	assert.Equal(t, []string{"Lobby", "WC"}, DuplicateNames(nodes))
	assert.Empty(t, DuplicateNames(nodes[:2]))
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("ThirdFloor", func(t *testing.T) {
		t.Parallel()
		plan, err := Parse([]byte(thirdFloor), "3F_graph_map")
		require.NoError(t, err)

		assert.Equal(t, "3F_graph_map", plan.Name)
		assert.Len(t, plan.Nodes, 3)
		assert.Equal(t, NodeID("1340"), plan.Nodes[0].ID)
		assert.Equal(t, Vec3{9, 0, 1.5}, plan.Nodes[2].Position)
		assert.Equal(t, Unidirectional, plan.Edges[1].Directionality)
		assert.Equal(t, NodeID("elev"), plan.Edges[1].End)
		assert.Len(t, plan.Markers, 1)
		assert.Equal(t, map[string]int{"nodes": 3, "edges": 2, "markers": 1}, plan.Stats())
	})

	t.Run("DocumentNameWins", func(t *testing.T) {
		t.Parallel()
		plan, err := Parse([]byte(`{"name":"east","level":3,"nodes":[],"edges":[]}`), "fallback")
		require.NoError(t, err)
		assert.Equal(t, "east", plan.Name)
		assert.Equal(t, "3", plan.Level)
	})

	t.Run("EscapedLevel", func(t *testing.T) {
		t.Parallel()
		plan, err := Parse([]byte(`{"name":"east","level":"Mezzanine \"M\"\u00e9","nodes":[],"edges":[]}`), "x")
		require.NoError(t, err)
		assert.Equal(t, `Mezzanine "M"é`, plan.Level)
	})

	t.Run("SchemaRejectsDirectionality", func(t *testing.T) {
		t.Parallel()
		doc := `{"nodes":[{"id":1,"name":"a","position":[0,0,0]}],
		         "edges":[{"start":1,"end":1,"length":1,"directionality":"both"}]}`
		_, err := Parse([]byte(doc), "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedGraph))
	})

	t.Run("SchemaRejectsShortPosition", func(t *testing.T) {
		t.Parallel()
		doc := `{"nodes":[{"id":1,"name":"a","position":[0,0]}],"edges":[]}`
		_, err := Parse([]byte(doc), "x")
		assert.ErrorIs(t, err, ErrMalformedGraph)
	})

	t.Run("MissingEdges", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"nodes":[]}`), "x")
		assert.ErrorIs(t, err, ErrMalformedGraph)
	})

	t.Run("DanglingEdge", func(t *testing.T) {
		t.Parallel()
		doc := `{"nodes":[{"id":1,"name":"a","position":[0,0,0]}],
		         "edges":[{"start":1,"end":2,"length":1,"directionality":"unidirectional"}]}`
		_, err := Parse([]byte(doc), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing end node "2"`)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{`), "x")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrMalformedGraph))
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("NamesPlanAfterFile", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "3F_graph_map.json")
		require.NoError(t, os.WriteFile(path, []byte(thirdFloor), 0o644))

		plan, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "3F_graph_map", plan.Name)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

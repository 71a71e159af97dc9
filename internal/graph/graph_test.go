package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtree-data/devtree/internal/model"
)

func snapshotOf(devices ...model.SnapshotDevice) *model.Snapshot {
	return &model.Snapshot{Results: devices}
}

func device(id, name, applicant string) model.SnapshotDevice {
	return model.SnapshotDevice{KNumber: id, DeviceName: name, Applicant: applicant}
}

func predsOf(pairs map[string][]string) map[string]model.AggregatedPredicate {
	out := make(map[string]model.AggregatedPredicate, len(pairs))
	for id, preds := range pairs {
		out[id] = model.AggregatedPredicate{DeviceID: id, Predicates: preds, Tag: model.TagPatternPDFText}
	}
	return out
}

func TestBuildBasic(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "Widget", "Acme"),
		device("K200002", "Gadget", "Acme"),
	)
	g := Build(snap, predsOf(map[string][]string{"K100001": {"K200002"}}))

	assert.Equal(t, 2, g.Metadata.TotalNodes)
	assert.Equal(t, 1, g.Metadata.TotalEdges)
	assert.Equal(t, 0, g.Metadata.OrphanPredicates)
	assert.Equal(t, 1, g.Metadata.NodesWithPredicates)
	assert.Equal(t, 1, g.Metadata.NodesWithoutPredicates)
}

func TestBuildUnknownFallbacks(t *testing.T) {
	snap := snapshotOf(model.SnapshotDevice{KNumber: "K100001"})
	g := Build(snap, nil)

	node := g.Nodes["K100001"]
	assert.Equal(t, "Unknown", node.DeviceName)
	assert.Equal(t, "Unknown", node.Applicant)
}

func TestBuildOrphanEdgesKeptAndCounted(t *testing.T) {
	snap := snapshotOf(device("K100001", "Widget", "Acme"))
	g := Build(snap, predsOf(map[string][]string{"K100001": {"K999999"}}))

	assert.Equal(t, 1, g.Metadata.OrphanPredicates)
	require.Len(t, g.Edges, 1, "orphan edge survives in the raw graph")
	assert.Equal(t, "K999999", g.Edges[0].Target)
}

func TestBuildDropsSelfLoopsAndDuplicates(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "Widget", "Acme"),
		device("K200002", "Gadget", "Acme"),
	)
	g := Build(snap, predsOf(map[string][]string{
		"K100001": {"K100001", "K200002", "K200002"},
	}))

	require.Len(t, g.Edges, 1)
	assert.Equal(t, Edge{Source: "K100001", Target: "K200002"}, g.Edges[0])
}

func TestExportCytoscapeFiltersOrphans(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "Widget", "Acme"),
		device("K200002", "Gadget", "Acme"),
	)
	g := Build(snap, predsOf(map[string][]string{
		"K100001": {"K200002", "K999999"},
	}))

	path := filepath.Join(t.TempDir(), "cytoscape.json")
	require.NoError(t, g.ExportCytoscape(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Elements struct {
			Nodes []struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"nodes"`
			Edges []struct {
				Data struct {
					Source       string `json:"source"`
					Target       string `json:"target"`
					Relationship string `json:"relationship"`
				} `json:"data"`
			} `json:"edges"`
		} `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Len(t, doc.Elements.Nodes, 2)
	require.Len(t, doc.Elements.Edges, 1, "orphan edge dropped from visualization export")
	assert.Equal(t, "K200002", doc.Elements.Edges[0].Data.Target)
	assert.Equal(t, "predicate", doc.Elements.Edges[0].Data.Relationship)
}

func TestExportLoadRoundTrip(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "Widget", "Acme"),
		device("K200002", "Gadget", "Bolt"),
	)
	g := Build(snap, predsOf(map[string][]string{"K100001": {"K200002"}}))

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.Export(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g.Metadata.TotalNodes, loaded.Metadata.TotalNodes)
	assert.Equal(t, g.Edges, loaded.Edges)
	assert.Equal(t, "Bolt", loaded.Nodes["K200002"].Applicant)
}

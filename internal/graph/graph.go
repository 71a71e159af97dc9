// Package graph builds the device citation graph from the dataset
// snapshot and aggregated predicates, exports it in raw and Cytoscape
// form, and computes structural and company-level analytics over it.
package graph

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/model"
)

// Node carries the snapshot metadata attached to one device.
type Node struct {
	DeviceName   string `json:"device_name"`
	Applicant    string `json:"applicant"`
	Contact      string `json:"contact,omitempty"`
	DecisionDate string `json:"decision_date,omitempty"`
	DeviceClass  string `json:"device_class,omitempty"`
	ProductCode  string `json:"product_code,omitempty"`
	Specialty    string `json:"specialty,omitempty"`
	DateReceived string `json:"date_received,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	State        string `json:"state,omitempty"`
}

// Edge is one predicate citation: source cites target as a predicate.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Metadata summarizes a built graph.
type Metadata struct {
	GeneratedAt            string `json:"generated_at"`
	TotalNodes             int    `json:"total_nodes"`
	TotalEdges             int    `json:"total_edges"`
	NodesWithPredicates    int    `json:"nodes_with_predicates"`
	NodesWithoutPredicates int    `json:"nodes_without_predicates"`
	OrphanPredicates       int    `json:"orphan_predicates"`
}

// Graph is the complete citation graph.
type Graph struct {
	Metadata Metadata        `json:"metadata"`
	Nodes    map[string]Node `json:"nodes"`
	Edges    []Edge          `json:"edges"`
}

// Build constructs the graph: one node per snapshot record, one edge per
// (device, predicate) pair. Self-citations are dropped, duplicate edges
// collapsed. Edges whose target is not a node (orphans: predicates
// predating the dataset window) are kept and counted; the Cytoscape
// export filters them.
func Build(snapshot *model.Snapshot, preds map[string]model.AggregatedPredicate) *Graph {
	nodes := make(map[string]Node, len(snapshot.Results))
	for _, d := range snapshot.Results {
		if d.KNumber == "" {
			continue
		}
		nodes[d.KNumber] = nodeFrom(d)
	}

	var edges []Edge
	seen := make(map[Edge]struct{})
	orphans := 0
	withPreds := 0

	for _, id := range sortedKeys(preds) {
		agg := preds[id]
		if len(agg.Predicates) > 0 {
			withPreds++
		}
		for _, target := range agg.Predicates {
			if target == id {
				continue
			}
			e := Edge{Source: id, Target: target}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
			if _, ok := nodes[target]; !ok {
				orphans++
			}
		}
	}

	g := &Graph{
		Metadata: Metadata{
			GeneratedAt:            time.Now().UTC().Format(time.RFC3339),
			TotalNodes:             len(nodes),
			TotalEdges:             len(edges),
			NodesWithPredicates:    withPreds,
			NodesWithoutPredicates: len(nodes) - withPreds,
			OrphanPredicates:       orphans,
		},
		Nodes: nodes,
		Edges: edges,
	}

	zap.L().Info("graph built",
		zap.Int("nodes", g.Metadata.TotalNodes),
		zap.Int("edges", g.Metadata.TotalEdges),
		zap.Int("orphan_predicates", orphans),
	)
	return g
}

func nodeFrom(d model.SnapshotDevice) Node {
	name := d.DeviceName
	if name == "" {
		name = "Unknown"
	}
	applicant := d.Applicant
	if applicant == "" {
		applicant = "Unknown"
	}
	return Node{
		DeviceName:   name,
		Applicant:    applicant,
		Contact:      d.Contact,
		DecisionDate: d.DecisionDate,
		DeviceClass:  d.OpenFDA.DeviceClass,
		ProductCode:  d.ProductCode,
		Specialty:    d.Specialty,
		DateReceived: d.DateReceived,
		CountryCode:  d.CountryCode,
		State:        d.State,
	}
}

// Load reads a previously exported graph.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "graph: read %s", path)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrapf(err, "graph: parse %s", path)
	}
	return &g, nil
}

// Export writes the raw graph JSON.
func (g *Graph) Export(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return eris.Wrap(err, "graph: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "graph: write %s", path)
	}
	return nil
}

// cytoscapeDoc is the Cytoscape.js export shape.
type cytoscapeDoc struct {
	Metadata Metadata          `json:"metadata"`
	Elements cytoscapeElements `json:"elements"`
}

type cytoscapeElements struct {
	Nodes []cytoscapeNode `json:"nodes"`
	Edges []cytoscapeEdge `json:"edges"`
}

type cytoscapeNode struct {
	Data cytoscapeNodeData `json:"data"`
}

type cytoscapeNodeData struct {
	ID string `json:"id"`
	Node
}

type cytoscapeEdge struct {
	Data cytoscapeEdgeData `json:"data"`
}

type cytoscapeEdgeData struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// ExportCytoscape writes the graph in Cytoscape.js element form,
// restricted to edges with both endpoints present. Node and edge order
// is deterministic.
func (g *Graph) ExportCytoscape(path string) error {
	doc := cytoscapeDoc{Metadata: g.Metadata}

	for _, id := range sortedKeys(g.Nodes) {
		doc.Elements.Nodes = append(doc.Elements.Nodes, cytoscapeNode{
			Data: cytoscapeNodeData{ID: id, Node: g.Nodes[id]},
		})
	}

	skipped := 0
	for i, e := range g.Edges {
		_, srcOK := g.Nodes[e.Source]
		_, dstOK := g.Nodes[e.Target]
		if !srcOK || !dstOK {
			skipped++
			continue
		}
		doc.Elements.Edges = append(doc.Elements.Edges, cytoscapeEdge{
			Data: cytoscapeEdgeData{
				ID:           "e" + strconv.Itoa(i),
				Source:       e.Source,
				Target:       e.Target,
				Relationship: "predicate",
			},
		})
	}
	if skipped > 0 {
		zap.L().Info("cytoscape export skipped orphan edges", zap.Int("skipped", skipped))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "graph: marshal cytoscape")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "graph: write %s", path)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}


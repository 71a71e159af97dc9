package graph

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxCycles caps cycle enumeration. Predicate cycles are dataset defects
// and number in the dozens; the cap guards against pathological inputs.
const maxCycles = 1000

// Options tunes the analysis pass.
type Options struct {
	TopChains       int
	TopDevices      int
	TopCompanies    int
	MinCompanyEdges int
	ChainWorkers    int
	MinVariants     int
	MinDevices      int
}

// DefaultOptions returns the standard analysis tuning.
func DefaultOptions() Options {
	return Options{
		TopChains:       20,
		TopDevices:      50,
		TopCompanies:    50,
		MinCompanyEdges: 5,
		ChainWorkers:    8,
		MinVariants:     5,
		MinDevices:      200,
	}
}

// Stats summarizes graph structure.
type Stats struct {
	TotalNodes      int     `json:"total_nodes"`
	TotalEdges      int     `json:"total_edges"`
	Density         float64 `json:"density"`
	ConnectedComps  int     `json:"num_weakly_connected_components"`
	LargestCompSize int     `json:"largest_wcc_size"`
	RootNodes       int     `json:"num_root_nodes"`
	LeafNodes       int     `json:"num_leaf_nodes"`
	AvgInDegree     float64 `json:"avg_in_degree"`
	AvgOutDegree    float64 `json:"avg_out_degree"`
	MaxInDegree     int     `json:"max_in_degree"`
	MaxOutDegree    int     `json:"max_out_degree"`
}

// ChainInfo describes one predicate chain from a root device.
type ChainInfo struct {
	Chain       []string `json:"chain"`
	Length      int      `json:"length"`
	StartDevice string   `json:"start_device"`
	EndDevice   string   `json:"end_device"`
	StartYear   int      `json:"start_year,omitempty"`
	EndYear     int      `json:"end_year,omitempty"`
	SpanYears   int      `json:"span_years,omitempty"`
}

// DeviceMetrics ranks one device by citations.
type DeviceMetrics struct {
	DeviceID   string `json:"device_id"`
	InDegree   int    `json:"in_degree"`
	OutDegree  int    `json:"out_degree"`
	Applicant  string `json:"applicant"`
	DeviceName string `json:"device_name"`
}

// ContactCount is one entry in the contact leaderboard.
type ContactCount struct {
	Contact string `json:"contact"`
	Devices int    `json:"devices"`
}

// Analysis is the complete analysis output.
type Analysis struct {
	GeneratedAt    string                `json:"generated_at"`
	Stats          Stats                 `json:"graph_stats"`
	LongestChains  []ChainInfo           `json:"longest_chains"`
	MostCited      []DeviceMetrics       `json:"most_cited_devices"`
	RootNodes      []string              `json:"root_nodes"`
	Cycles         [][]string            `json:"cycles"`
	TopCompanies   []CompanyMetrics      `json:"top_companies"`
	CompanyNetwork []CompanyRelationship `json:"company_network"`
	ContactLeaders []ContactCount        `json:"contact_leaderboard"`
}

// adjacency is the in-memory index the analyses run over. Only edges
// with both endpoints present count; orphan edges belong to exports,
// not structure.
type adjacency struct {
	nodes []string            // sorted
	out   map[string][]string // sorted successor lists
	inDeg map[string]int
}

func (g *Graph) index() *adjacency {
	adj := &adjacency{
		nodes: sortedKeys(g.Nodes),
		out:   make(map[string][]string, len(g.Nodes)),
		inDeg: make(map[string]int, len(g.Nodes)),
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.Source]; !ok {
			continue
		}
		if _, ok := g.Nodes[e.Target]; !ok {
			continue
		}
		adj.out[e.Source] = append(adj.out[e.Source], e.Target)
		adj.inDeg[e.Target]++
	}
	for _, succs := range adj.out {
		sort.Strings(succs)
	}
	return adj
}

func (a *adjacency) edgeCount() int {
	n := 0
	for _, succs := range a.out {
		n += len(succs)
	}
	return n
}

// Analyze runs the full analysis pass.
func Analyze(ctx context.Context, g *Graph, opts Options) (*Analysis, error) {
	adj := g.index()
	zap.L().Info("analyzing graph",
		zap.Int("nodes", len(adj.nodes)),
		zap.Int("edges", adj.edgeCount()),
	)

	stats, roots := computeStats(adj)
	chains, err := longestChains(ctx, g, adj, roots, opts)
	if err != nil {
		return nil, err
	}
	cycles := findCycles(adj)
	if len(cycles) > 0 {
		zap.L().Warn("citation cycles found", zap.Int("count", len(cycles)))
	}

	clusters := ClusterCompanies(applicantCounts(g), opts.MinVariants, opts.MinDevices)
	canonical := clusters.Lookup()

	analysis := &Analysis{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Stats:          stats,
		LongestChains:  chains,
		MostCited:      mostCited(g, adj, opts.TopDevices),
		RootNodes:      truncate(roots, 1000),
		Cycles:         cycles,
		TopCompanies:   companyMetrics(g, adj, canonical, opts.TopCompanies),
		CompanyNetwork: companyNetwork(g, adj, canonical, opts.MinCompanyEdges),
		ContactLeaders: contactLeaderboard(g, 10),
	}
	return analysis, nil
}

// Export writes the analysis JSON.
func (a *Analysis) Export(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "graph: marshal analysis")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "graph: write %s", path)
	}
	return nil
}

func computeStats(adj *adjacency) (Stats, []string) {
	n := len(adj.nodes)
	edges := adj.edgeCount()

	var roots, leaves []string
	maxIn, maxOut := 0, 0
	for _, id := range adj.nodes {
		in := adj.inDeg[id]
		out := len(adj.out[id])
		if in == 0 {
			roots = append(roots, id)
		}
		if out == 0 {
			leaves = append(leaves, id)
		}
		if in > maxIn {
			maxIn = in
		}
		if out > maxOut {
			maxOut = out
		}
	}

	density := 0.0
	if n > 1 {
		density = float64(edges) / float64(n*(n-1))
	}
	avg := 0.0
	if n > 0 {
		avg = float64(edges) / float64(n)
	}

	comps, largest := weaklyConnected(adj)
	return Stats{
		TotalNodes:      n,
		TotalEdges:      edges,
		Density:         density,
		ConnectedComps:  comps,
		LargestCompSize: largest,
		RootNodes:       len(roots),
		LeafNodes:       len(leaves),
		AvgInDegree:     avg,
		AvgOutDegree:    avg,
		MaxInDegree:     maxIn,
		MaxOutDegree:    maxOut,
	}, roots
}

// weaklyConnected counts components with union-find over the undirected
// edge set.
func weaklyConnected(adj *adjacency) (count, largest int) {
	parent := make(map[string]string, len(adj.nodes))
	var find func(string) string
	find = func(x string) string {
		for parent[x] != x {
			parent[x] = parent[parent[x]] // path halving
			x = parent[x]
		}
		return x
	}
	for _, id := range adj.nodes {
		parent[id] = id
	}
	for src, succs := range adj.out {
		for _, dst := range succs {
			a, b := find(src), find(dst)
			if a != b {
				parent[a] = b
			}
		}
	}

	sizes := make(map[string]int)
	for _, id := range adj.nodes {
		sizes[find(id)]++
	}
	for _, sz := range sizes {
		if sz > largest {
			largest = sz
		}
	}
	return len(sizes), largest
}

func mostCited(g *Graph, adj *adjacency, topN int) []DeviceMetrics {
	metrics := make([]DeviceMetrics, 0, len(adj.nodes))
	for _, id := range adj.nodes {
		node := g.Nodes[id]
		metrics = append(metrics, DeviceMetrics{
			DeviceID:   id,
			InDegree:   adj.inDeg[id],
			OutDegree:  len(adj.out[id]),
			Applicant:  node.Applicant,
			DeviceName: node.DeviceName,
		})
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].InDegree > metrics[j].InDegree
	})
	if len(metrics) > topN {
		metrics = metrics[:topN]
	}
	return metrics
}

// longestChains runs a per-root longest-path search in parallel. The
// search is an iterative DFS with an on-path set, so cyclic regions
// cannot loop it and deep chains cannot blow the goroutine stack.
func longestChains(ctx context.Context, g *Graph, adj *adjacency, roots []string, opts Options) ([]ChainInfo, error) {
	workers := opts.ChainWorkers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var allChains [][]string

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, root := range roots {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chain := longestFrom(adj.out, root)
			if len(chain) > 1 {
				mu.Lock()
				allChains = append(allChains, chain)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, eris.Wrap(err, "graph: chain search canceled")
	}

	sort.SliceStable(allChains, func(i, j int) bool {
		if len(allChains[i]) != len(allChains[j]) {
			return len(allChains[i]) > len(allChains[j])
		}
		return allChains[i][0] < allChains[j][0]
	})
	if len(allChains) > opts.TopChains {
		allChains = allChains[:opts.TopChains]
	}

	chains := make([]ChainInfo, 0, len(allChains))
	for _, chain := range allChains {
		info := ChainInfo{
			Chain:       chain,
			Length:      len(chain),
			StartDevice: chain[0],
			EndDevice:   chain[len(chain)-1],
		}
		info.StartYear = deviceYear(g, chain[0])
		info.EndYear = deviceYear(g, chain[len(chain)-1])
		if info.StartYear != 0 && info.EndYear != 0 {
			info.SpanYears = info.EndYear - info.StartYear
		}
		chains = append(chains, info)
	}
	return chains, nil
}

// longestFrom finds the longest simple path starting at root with an
// explicit stack.
func longestFrom(out map[string][]string, root string) []string {
	type frame struct {
		node string
		next int
	}
	stack := []frame{{node: root}}
	path := []string{root}
	onPath := map[string]bool{root: true}
	best := []string{root}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := out[top.node]

		advanced := false
		for top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if onPath[s] {
				continue
			}
			stack = append(stack, frame{node: s})
			path = append(path, s)
			onPath[s] = true
			advanced = true
			break
		}
		if advanced {
			continue
		}

		if len(path) > len(best) {
			best = append([]string(nil), path...)
		}
		node := top.node
		stack = stack[:len(stack)-1]
		delete(onPath, node)
		path = path[:len(path)-1]
	}
	return best
}

// findCycles enumerates simple cycles with an iterative DFS restricted
// to nodes ordered at or after each start node, so every cycle is
// reported exactly once, anchored at its smallest member. Enumeration
// stops at maxCycles.
func findCycles(adj *adjacency) [][]string {
	order := make(map[string]int, len(adj.nodes))
	for i, id := range adj.nodes {
		order[id] = i
	}

	var cycles [][]string

	for _, start := range adj.nodes {
		if len(cycles) >= maxCycles {
			break
		}
		type frame struct {
			node string
			next int
		}
		stack := []frame{{node: start}}
		path := []string{start}
		onPath := map[string]bool{start: true}

		for len(stack) > 0 && len(cycles) < maxCycles {
			top := &stack[len(stack)-1]
			succs := adj.out[top.node]

			advanced := false
			for top.next < len(succs) {
				s := succs[top.next]
				top.next++
				if s == start {
					cycles = append(cycles, append([]string(nil), path...))
					continue
				}
				if order[s] < order[start] || onPath[s] {
					continue
				}
				stack = append(stack, frame{node: s})
				path = append(path, s)
				onPath[s] = true
				advanced = true
				break
			}
			if advanced {
				continue
			}
			node := top.node
			stack = stack[:len(stack)-1]
			delete(onPath, node)
			path = path[:len(path)-1]
		}
	}
	return cycles
}

var kYearPattern = regexp.MustCompile(`^[Kk](\d{2})`)

// deviceYear returns the clearance year from the decision date, falling
// back to the K-number's embedded two-digit year. Zero means unknown.
func deviceYear(g *Graph, id string) int {
	if node, ok := g.Nodes[id]; ok && len(node.DecisionDate) >= 4 {
		if y, err := strconv.Atoi(node.DecisionDate[:4]); err == nil {
			return y
		}
	}
	m := kYearPattern.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	if yy >= 76 {
		return 1900 + yy
	}
	return 2000 + yy
}

func contactLeaderboard(g *Graph, topN int) []ContactCount {
	counts := make(map[string]int)
	for _, node := range g.Nodes {
		if node.Contact == "" {
			continue
		}
		counts[node.Contact]++
	}
	leaders := make([]ContactCount, 0, len(counts))
	for contact, n := range counts {
		leaders = append(leaders, ContactCount{Contact: contact, Devices: n})
	}
	sort.SliceStable(leaders, func(i, j int) bool {
		if leaders[i].Devices != leaders[j].Devices {
			return leaders[i].Devices > leaders[j].Devices
		}
		return leaders[i].Contact < leaders[j].Contact
	})
	if len(leaders) > topN {
		leaders = leaders[:topN]
	}
	return leaders
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

package graph

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Corporate suffixes stripped during normalization, longest forms first.
var suffixPattern = regexp.MustCompile(`(?i)(,?\s*incorporated|,?\s*corporation|,?\s*company|,?\s*limited|,?\s*l\.?l\.?c\.?|,?\s*l\.?l\.?p\.?|,?\s*inc\.?|,?\s*corp\.?|,?\s*ltd\.?|,?\s*co\.?|,?\s*plc\.?|,?\s*gmbh|,?\s*s\.?a\.?s\.?|,?\s*s\.?a\.?|,?\s*b\.?v\.?|,?\s*n\.?v\.?|,?\s*a\.?g\.?|,?\s*a/s)\s*$`)

var (
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)
	trailingPunctPattern = regexp.MustCompile(`[,.\s]+$`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// commonWords are leading words that look like parent-company prefixes
// but are generic; they never anchor a cluster.
var commonWords = map[string]struct{}{
	"american": {}, "medical": {}, "the": {}, "general": {}, "national": {},
	"international": {}, "advanced": {}, "united": {}, "precision": {},
	"global": {}, "bio": {}, "diagnostic": {}, "health": {}, "healthcare": {},
	"surgical": {}, "clinical": {}, "digital": {}, "electronic": {},
	"applied": {}, "professional": {}, "scientific": {}, "shenzhen": {},
	"shanghai": {}, "beijing": {}, "guangzhou": {}, "hangzhou": {},
	"suzhou": {}, "jiangsu": {}, "zhejiang": {}, "new": {}, "first": {},
}

var titleCaser = cases.Title(language.English)

// NormalizeCompany lowercases a company name and strips parentheticals,
// corporate suffixes, trailing punctuation, and excess whitespace.
func NormalizeCompany(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = parentheticalPattern.ReplaceAllString(n, "")
	n = suffixPattern.ReplaceAllString(n, "")
	n = trailingPunctPattern.ReplaceAllString(n, "")
	n = whitespacePattern.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// Clusters maps canonical company names to their observed variants.
type Clusters map[string][]string

// Lookup inverts the clusters into a variant-to-canonical map.
func (c Clusters) Lookup() map[string]string {
	lookup := make(map[string]string)
	for canonical, variants := range c {
		for _, v := range variants {
			lookup[v] = canonical
		}
	}
	return lookup
}

// ClusterCompanies groups applicant name variants under canonical
// company names. Parent companies are detected as 1-2 leading words
// that also appear as a standalone name across enough variants and
// devices; divisions collapse onto the parent.
func ClusterCompanies(nameCounts map[string]int, minVariants, minDevices int) Clusters {
	if minVariants < 1 {
		minVariants = 5
	}
	if minDevices < 1 {
		minDevices = 200
	}

	parents := findParents(nameCounts, minVariants, minDevices)

	clusters := make(Clusters)
	for name := range nameCounts {
		normalized := NormalizeCompany(name)
		if normalized == "" {
			clusters["Unknown"] = append(clusters["Unknown"], name)
			continue
		}
		canonical := normalized
		if parent := parentOf(normalized, parents); parent != "" {
			canonical = parent
		}
		canonical = titleCaser.String(canonical)
		clusters[canonical] = append(clusters[canonical], name)
	}

	// Variants ordered by device count so the dominant spelling leads.
	for _, variants := range clusters {
		sort.SliceStable(variants, func(i, j int) bool {
			if nameCounts[variants[i]] != nameCounts[variants[j]] {
				return nameCounts[variants[i]] > nameCounts[variants[j]]
			}
			return variants[i] < variants[j]
		})
	}
	return clusters
}

// parentOf returns the parent name a division collapses onto, or "".
// Longer prefixes are checked first so "boston scientific vascular"
// lands on "boston scientific", not a one-word anchor.
func parentOf(normalized string, parents map[string]struct{}) string {
	words := strings.Fields(normalized)
	if len(words) < 2 {
		return ""
	}
	limit := len(words) - 1
	if limit > 3 {
		limit = 3
	}
	for i := limit; i > 0; i-- {
		candidate := strings.Join(words[:i], " ")
		if _, ok := parents[candidate]; ok && candidate != normalized {
			return candidate
		}
	}
	return ""
}

// twoWordMinVariants and twoWordMinDevices bound two-word parent
// detection; multi-word names need less evidence to anchor a cluster.
const (
	twoWordMinVariants = 3
	twoWordMinDevices  = 100
)

func findParents(nameCounts map[string]int, minVariants, minDevices int) map[string]struct{} {
	type variant struct {
		normalized string
		count      int
	}
	firstWordGroups := make(map[string][]variant)
	for name, count := range nameCounts {
		normalized := NormalizeCompany(name)
		if normalized == "" {
			continue
		}
		first := strings.Fields(normalized)[0]
		if _, common := commonWords[first]; common {
			continue
		}
		firstWordGroups[first] = append(firstWordGroups[first], variant{normalized, count})
	}

	parents := make(map[string]struct{})
	for first, group := range firstWordGroups {
		if len(first) < 4 {
			continue
		}

		unique := make(map[string]struct{})
		standalone := false
		devices := 0
		for _, v := range group {
			unique[v.normalized] = struct{}{}
			devices += v.count
			if v.normalized == first {
				standalone = true
			}
		}
		if standalone && len(unique) >= minVariants && devices >= minDevices {
			parents[first] = struct{}{}
		}

		twoWordGroups := make(map[string][]variant)
		for _, v := range group {
			words := strings.Fields(v.normalized)
			if len(words) >= 2 {
				key := words[0] + " " + words[1]
				twoWordGroups[key] = append(twoWordGroups[key], v)
			}
		}
		for twoWord, twGroup := range twoWordGroups {
			twUnique := make(map[string]struct{})
			twStandalone := false
			twDevices := 0
			for _, v := range twGroup {
				twUnique[v.normalized] = struct{}{}
				twDevices += v.count
				if v.normalized == twoWord {
					twStandalone = true
				}
			}
			if twStandalone && len(twUnique) >= twoWordMinVariants && twDevices >= twoWordMinDevices {
				parents[twoWord] = struct{}{}
			}
		}
	}
	return parents
}

// CompanyMetrics summarizes one company's footprint in the graph.
type CompanyMetrics struct {
	Name                 string  `json:"name"`
	TotalDevices         int     `json:"total_devices"`
	DevicesAsPredicates  int     `json:"devices_as_predicates"`
	PredicateCitations   int     `json:"total_predicate_citations"`
	UniquePredicatesUsed int     `json:"unique_predicates_used"`
	CrossCompanyCount    int     `json:"cross_company_predicate_count"`
	CrossCompanyRatio    float64 `json:"cross_company_predicate_ratio"`
}

// CompanyRelationship is one cross-company citation flow.
type CompanyRelationship struct {
	SourceCompany string `json:"source_company"`
	TargetCompany string `json:"target_company"`
	EdgeCount     int    `json:"edge_count"`
}

func applicantCounts(g *Graph) map[string]int {
	counts := make(map[string]int)
	for _, node := range g.Nodes {
		counts[node.Applicant]++
	}
	return counts
}

// companyName resolves a device's applicant to its canonical cluster.
func companyName(g *Graph, canonical map[string]string, id string) string {
	applicant := g.Nodes[id].Applicant
	if name, ok := canonical[applicant]; ok {
		return name
	}
	if applicant == "" {
		return "Unknown"
	}
	return titleCaser.String(NormalizeCompany(applicant))
}

func companyMetrics(g *Graph, adj *adjacency, canonical map[string]string, topN int) []CompanyMetrics {
	companyDevices := make(map[string][]string)
	for _, id := range adj.nodes {
		name := companyName(g, canonical, id)
		companyDevices[name] = append(companyDevices[name], id)
	}

	metrics := make([]CompanyMetrics, 0, len(companyDevices))
	for name, devices := range companyDevices {
		m := CompanyMetrics{Name: name, TotalDevices: len(devices)}
		uniquePreds := make(map[string]struct{})
		for _, id := range devices {
			if in := adj.inDeg[id]; in > 0 {
				m.DevicesAsPredicates++
				m.PredicateCitations += in
			}
			for _, pred := range adj.out[id] {
				uniquePreds[pred] = struct{}{}
				if companyName(g, canonical, pred) != name {
					m.CrossCompanyCount++
				}
			}
		}
		m.UniquePredicatesUsed = len(uniquePreds)
		if m.UniquePredicatesUsed > 0 {
			m.CrossCompanyRatio = float64(m.CrossCompanyCount) / float64(m.UniquePredicatesUsed)
		}
		metrics = append(metrics, m)
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		if metrics[i].PredicateCitations != metrics[j].PredicateCitations {
			return metrics[i].PredicateCitations > metrics[j].PredicateCitations
		}
		return metrics[i].Name < metrics[j].Name
	})
	if len(metrics) > topN {
		metrics = metrics[:topN]
	}
	return metrics
}

func companyNetwork(g *Graph, adj *adjacency, canonical map[string]string, minEdges int) []CompanyRelationship {
	type pair struct{ src, dst string }
	counts := make(map[pair]int)
	for src, succs := range adj.out {
		srcCompany := companyName(g, canonical, src)
		for _, dst := range succs {
			dstCompany := companyName(g, canonical, dst)
			if srcCompany == dstCompany {
				continue
			}
			counts[pair{srcCompany, dstCompany}]++
		}
	}

	var rels []CompanyRelationship
	for p, n := range counts {
		if n < minEdges {
			continue
		}
		rels = append(rels, CompanyRelationship{
			SourceCompany: p.src,
			TargetCompany: p.dst,
			EdgeCount:     n,
		})
	}
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].EdgeCount != rels[j].EdgeCount {
			return rels[i].EdgeCount > rels[j].EdgeCount
		}
		if rels[i].SourceCompany != rels[j].SourceCompany {
			return rels[i].SourceCompany < rels[j].SourceCompany
		}
		return rels[i].TargetCompany < rels[j].TargetCompany
	})
	return rels
}

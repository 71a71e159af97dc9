package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Medical, Inc.", "acme medical"},
		{"Acme Medical Corp", "acme medical"},
		{"ACME MEDICAL CORPORATION", "acme medical"},
		{"Acme Medical GmbH", "acme medical"},
		{"Acme Medical (USA) Ltd.", "acme medical"},
		{"  Acme   Medical  ", "acme medical"},
		{"Siemens AG", "siemens"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCompany(tt.in), "input %q", tt.in)
	}
}

func TestClusterCompaniesVariantsCollapse(t *testing.T) {
	counts := map[string]int{
		"Acme Medical, Inc.": 10,
		"Acme Medical Corp":  5,
		"Bolt Devices LLC":   3,
	}

	clusters := ClusterCompanies(counts, 5, 200)

	require.Contains(t, clusters, "Acme Medical")
	assert.ElementsMatch(t, []string{"Acme Medical, Inc.", "Acme Medical Corp"}, clusters["Acme Medical"])
	assert.Equal(t, "Acme Medical, Inc.", clusters["Acme Medical"][0], "dominant spelling leads")
	assert.Contains(t, clusters, "Bolt Devices")
}

func TestClusterCompaniesParentDetection(t *testing.T) {
	counts := map[string]int{
		"Medtronic":                 150,
		"Medtronic Vascular":        60,
		"Medtronic Neuromodulation": 40,
		"Medtronic Diabetes":        30,
		"Medtronic Surgical":        20,
		"Unrelated Devices":         5,
	}

	clusters := ClusterCompanies(counts, 5, 200)

	require.Contains(t, clusters, "Medtronic")
	assert.Len(t, clusters["Medtronic"], 5, "divisions collapse onto the standalone parent")
}

func TestClusterCompaniesCommonWordsNeverAnchor(t *testing.T) {
	counts := map[string]int{
		"Medical":          300,
		"Medical Widgets":  100,
		"Medical Gadgets":  100,
		"Medical Implants": 100,
		"Medical Optics":   100,
	}

	clusters := ClusterCompanies(counts, 2, 100)
	assert.NotContains(t, clusters["Medical"], "Medical Widgets",
		"generic leading word must not absorb distinct companies")
}

func TestClusterLookup(t *testing.T) {
	clusters := Clusters{
		"Acme Medical": {"Acme Medical, Inc.", "Acme Medical Corp"},
	}
	lookup := clusters.Lookup()
	assert.Equal(t, "Acme Medical", lookup["Acme Medical, Inc."])
	assert.Equal(t, "Acme Medical", lookup["Acme Medical Corp"])
}

func TestCompanyMetricsAndNetwork(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "A", "Acme Medical, Inc."),
		device("K100002", "B", "Acme Medical Corp"),
		device("K100003", "C", "Bolt Devices LLC"),
	)
	// Acme's K100002 cites Acme's K100001; Bolt cites Acme.
	g := Build(snap, predsOf(map[string][]string{
		"K100002": {"K100001"},
		"K100003": {"K100001"},
	}))

	opts := DefaultOptions()
	opts.MinCompanyEdges = 1
	analysis, err := Analyze(context.Background(), g, opts)
	require.NoError(t, err)

	require.NotEmpty(t, analysis.TopCompanies)
	top := analysis.TopCompanies[0]
	assert.Equal(t, "Acme Medical", top.Name, "name variants cluster into one company")
	assert.Equal(t, 2, top.TotalDevices)
	assert.Equal(t, 2, top.PredicateCitations)
	assert.Equal(t, 1, top.DevicesAsPredicates)

	require.Len(t, analysis.CompanyNetwork, 1, "intra-company edges excluded")
	rel := analysis.CompanyNetwork[0]
	assert.Equal(t, "Bolt Devices", rel.SourceCompany)
	assert.Equal(t, "Acme Medical", rel.TargetCompany)
	assert.Equal(t, 1, rel.EdgeCount)
}

func TestCompanyNetworkMinEdgeThreshold(t *testing.T) {
	snap := snapshotOf(
		device("K100001", "A", "Acme"),
		device("K100002", "B", "Bolt"),
	)
	g := Build(snap, predsOf(map[string][]string{"K100002": {"K100001"}}))

	opts := DefaultOptions()
	opts.MinCompanyEdges = 5
	analysis, err := Analyze(context.Background(), g, opts)
	require.NoError(t, err)
	assert.Empty(t, analysis.CompanyNetwork)
}

package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/pubsync/internal/domain"
)

func TestCanonicalLinkPrefersDOI(t *testing.T) {
	cases := []struct {
		name string
		pub  domain.Publication
		want Link
		ok   bool
	}{
		{
			name: "doi in url with trailing punctuation",
			pub:  domain.Publication{Title: "x", URL: "https://example.org/10.1016/j.apenergy.2023.120001.;"},
			want: Link{URL: "https://doi.org/10.1016/j.apenergy.2023.120001", Kind: LinkDOI},
			ok:   true,
		},
		{
			name: "doi in title when url has none",
			pub:  domain.Publication{Title: "Data (10.1016/j.apenergy.2023.120001), part 2", URL: "https://scholar.google.com/citations?x=1"},
			want: Link{URL: "https://doi.org/10.1016/j.apenergy.2023.120001", Kind: LinkDOI},
			ok:   true,
		},
		{
			name: "scholar fallback",
			pub:  domain.Publication{Title: "x", URL: "https://scholar.google.com.tw/citations?view_op=view_citation"},
			want: Link{URL: "https://scholar.google.com.tw/citations?view_op=view_citation", Kind: LinkScholar},
			ok:   true,
		},
		{
			name: "no link",
			pub:  domain.Publication{Title: "x", URL: "https://example.org/paper"},
		},
		{
			name: "short registrant is not a doi",
			pub:  domain.Publication{Title: "10.12/abc"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CanonicalLink(tc.pub)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLinkKindLabel(t *testing.T) {
	assert.Equal(t, "Read Paper", LinkDOI.Label())
	assert.Equal(t, "View on Google Scholar", LinkScholar.Label())
	assert.Empty(t, LinkNone.Label())
}

func TestDefaultTableFirstMatchWins(t *testing.T) {
	table := DefaultTable()

	v, ok := table.ImpactFactor("Applied Energy, 2023")
	require.True(t, ok)
	assert.Equal(t, 11.2, v)

	// "Remote Sensing" precedes "Sensors".
	v, ok = table.ImpactFactor("remote sensing 15 (3)")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	v, ok = table.ImpactFactor("IEEE Transactions on Power Electronics")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = table.ImpactFactor("Nature")
	assert.False(t, ok)
	_, ok = table.ImpactFactor("")
	assert.False(t, ok)
}

func TestFormatImpactFactor(t *testing.T) {
	assert.Equal(t, "11.2", FormatImpactFactor(11.2))
	assert.Equal(t, "5.0", FormatImpactFactor(5))
	assert.Equal(t, "3.95", FormatImpactFactor(3.95))
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "if.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
impact_factors:
  - venue: Energy
    impact_factor: 9.0
  - venue: Batteries
    impact_factor: 4.6
`), 0o644))
	table, err := LoadTable(yamlPath)
	require.NoError(t, err)
	require.Len(t, table, 2)
	v, ok := table.ImpactFactor("Batteries 9 (2)")
	require.True(t, ok)
	assert.Equal(t, 4.6, v)

	jsonPath := filepath.Join(dir, "if.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"impact_factors":[{"venue":"Energy","impact_factor":9}]}`), 0o644))
	table, err = LoadTable(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, Table{{Venue: "Energy", ImpactFactor: 9}}, table)

	table, err = LoadTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable(), table)

	badPath := filepath.Join(dir, "if.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"impact_factors":[{"venue":" ","impact_factor":1}]}`), 0o644))
	_, err = LoadTable(badPath)
	assert.Error(t, err)

	_, err = LoadTable(filepath.Join(dir, "if.toml"))
	assert.Error(t, err)
}

package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s2Reply = `{"data":[
 {"paperId":"p1","title":"Old paper","venue":"Sensors","year":2019,"citationCount":5,"url":"https://www.semanticscholar.org/paper/p1","authors":[{"authorId":"1","name":"A Chen"}],"externalIds":{}},
 {"paperId":"p2","title":"New paper","venue":"Applied Energy","year":2024,"citationCount":1,"url":"https://www.semanticscholar.org/paper/p2","authors":[{"authorId":"1","name":"A Chen"},{"authorId":"2","name":"B Lin"}],"externalIds":{"DOI":"10.1016/j.apenergy.2024.122001"}}
]}`

func TestSemanticScholarLookup(t *testing.T) {
	client := mockHTTPClient{
		t:         t,
		expectURL: "https://s2.test/graph/v1/author/12345/papers?fields=title%2Cauthors%2Cvenue%2Cyear%2CcitationCount%2CexternalIds%2Curl&limit=100",
		expect:    map[string]string{"x-api-key": "secret"},
		body:      s2Reply,
	}
	lookup := NewSemanticScholarLookup(client, "https://s2.test/graph/v1/", "secret", 100)

	entries, err := lookup.Lookup(context.Background(), "12345", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1, "limit applies after sorting")

	e := entries[0]
	assert.Equal(t, "New paper", e.Bib.Title, "newest paper first")
	assert.Equal(t, "2024", e.Bib.PubYear)
	assert.Equal(t, "https://doi.org/10.1016/j.apenergy.2024.122001", e.PubURL)
	assert.Equal(t, []string{"A Chen", "B Lin"}, e.Bib.Authors)
	assert.Equal(t, 1, e.NumCitations)
}

func TestSemanticScholarLookupErrors(t *testing.T) {
	lookup := NewSemanticScholarLookup(mockHTTPClient{t: t}, "", "", 100)
	_, err := lookup.Lookup(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrLookupUnavailable, "no author id")

	notFound := NewSemanticScholarLookup(mockHTTPClient{t: t, status: 404, body: `{"error":"Author not found"}`}, "", "", 100)
	_, err = notFound.Lookup(context.Background(), "1", 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLookupUnavailable)
	assert.Contains(t, err.Error(), "404")
}

package sources

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/pubsync/internal/acquire"
)

type fakeLookup struct {
	entries []LookupEntry
	err     error
	gotID   string
}

func (f *fakeLookup) Backend() string { return "fake" }

func (f *fakeLookup) Lookup(_ context.Context, authorID string, _ int) ([]LookupEntry, error) {
	f.gotID = authorID
	return f.entries, f.err
}

func TestStructuredSourceNormalizesEntries(t *testing.T) {
	lookup := &fakeLookup{entries: []LookupEntry{
		{
			Bib:          LookupBib{Title: "Battery aging", Authors: []string{"A Chen", " ", "B Lin"}, Venue: "Applied Energy", PubYear: "2024"},
			PubURL:       "https://doi.org/10.1016/j.apenergy.2024.1",
			NumCitations: 7,
		},
		{Error: "fill failed"},
		{Bib: LookupBib{Title: "   "}},
		{Bib: LookupBib{Title: "Sensors review"}, NumCitations: -4},
	}}

	res := NewStructuredSource(lookup, " FDrOozwAAAAJ ", 20, nil).Fetch(context.Background())

	require.Equal(t, acquire.StatusRecords, res.Status, "err: %v", res.Err)
	assert.Equal(t, "FDrOozwAAAAJ", lookup.gotID)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "A Chen, B Lin", res.Records[0].Authors)
	assert.Equal(t, "7", res.Records[0].Citations)
	assert.Equal(t, "2024", res.Records[0].Year)
	assert.Equal(t, "0", res.Records[1].Citations, "negative citations clamp to 0")
}

func TestStructuredSourceCapsEntries(t *testing.T) {
	entries := make([]LookupEntry, 0, 30)
	for i := 0; i < 30; i++ {
		entries = append(entries, LookupEntry{Bib: LookupBib{Title: fmt.Sprintf("Paper %d", i)}})
	}
	res := NewStructuredSource(&fakeLookup{entries: entries}, "id", 0, nil).Fetch(context.Background())
	assert.Len(t, res.Records, defaultLookupLimit)
}

func TestStructuredSourceClassifiesErrors(t *testing.T) {
	cases := map[string]struct {
		src  *StructuredSource
		want acquire.Status
	}{
		"unavailable": {NewStructuredSource(&fakeLookup{err: fmt.Errorf("%w: no python", ErrLookupUnavailable)}, "id", 5, nil), acquire.StatusUnavailable},
		"failed":      {NewStructuredSource(&fakeLookup{err: errors.New("captcha")}, "id", 5, nil), acquire.StatusFailed},
		"empty":       {NewStructuredSource(&fakeLookup{}, "id", 5, nil), acquire.StatusEmpty},
		"no lookup":   {NewStructuredSource(nil, "", 5, nil), acquire.StatusUnavailable},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, tc.src.Fetch(context.Background()).Status, name)
	}
}

func TestBuildStructuredBackends(t *testing.T) {
	src, remedy, err := BuildStructured(LookupConfig{Backend: "scholarly", ScholarUserID: "abc"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "structured:scholarly", src.Name())
	assert.IsType(t, &ScholarlyInstaller{}, remedy)

	src, remedy, err = BuildStructured(LookupConfig{Backend: "semanticscholar"}, mockHTTPClient{t: t}, nil)
	require.NoError(t, err)
	assert.Equal(t, "structured:semanticscholar", src.Name())
	assert.Nil(t, remedy, "nothing to install for the graph api")

	src, remedy, err = BuildStructured(LookupConfig{Backend: "none"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, remedy)
	assert.Equal(t, acquire.StatusUnavailable, src.Fetch(context.Background()).Status)

	_, _, err = BuildStructured(LookupConfig{Backend: "ruby"}, nil, nil)
	assert.Error(t, err)
}

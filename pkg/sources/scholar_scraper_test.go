package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/pubsync/internal/acquire"
	"github.com/samvad-hq/pubsync/pkg/httpclient"
)

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }

type mockHTTPClient struct {
	t         *testing.T
	expect    map[string]string
	expectURL string
	status    int
	body      string
	err       error
	calls     *int
}

func (m mockHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	if m.calls != nil {
		*m.calls++
	}
	if m.expectURL != "" {
		require.Equal(m.t, m.expectURL, url)
	}
	for key, want := range m.expect {
		require.Equal(m.t, want, headers[key], "header %s", key)
	}
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return mockResponse{body: []byte(m.body), statusCode: status}, nil
}

const profilePage = `<html><body>
<table id="gsc_a_t"><tbody id="gsc_a_b">
  <tr class="gsc_a_tr">
    <td class="gsc_a_t">
      <a href="/citations?view_op=view_citation&amp;citation_for_view=X:1" class="gsc_a_at">State of health estimation for lithium batteries</a>
      <div class="gs_gray">A Chen, B Lin, C Wu</div>
      <div class="gs_gray">Applied Energy 330, 120001, 2023</div>
    </td>
    <td class="gsc_a_c"><a href="/scholar?cites=1" class="gsc_a_ac gs_ibl">42</a></td>
    <td class="gsc_a_y"><span class="gsc_a_h gsc_a_hc gs_ibl">2023</span></td>
  </tr>
  <tr class="gsc_a_tr">
    <td class="gsc_a_t">
      <a href="https://example.org/paper" class="gsc_a_at">Remote sensing of coastal change</a>
      <div class="gs_gray">D Lee</div>
    </td>
    <td class="gsc_a_c"></td>
    <td class="gsc_a_y"></td>
  </tr>
  <tr class="gsc_a_tr">
    <td class="gsc_a_t"><div class="gs_gray">orphan row without title</div></td>
  </tr>
</tbody></table>
</body></html>`

func TestScraperFetchParsesRows(t *testing.T) {
	calls := 0
	client := mockHTTPClient{
		t:         t,
		expectURL: "https://scholar.google.com/citations?user=abc",
		expect: map[string]string{
			"User-Agent":      browserHeaders["User-Agent"],
			"Accept-Language": "en-US,en;q=0.9,zh-TW;q=0.8",
		},
		body:  profilePage,
		calls: &calls,
	}

	scraper := NewScholarScraper(client, ScraperConfig{
		ProfileURL: "https://scholar.google.com/citations?user=abc",
	}, nil)
	res := scraper.Fetch(context.Background())

	require.Equal(t, acquire.StatusRecords, res.Status, "err: %v", res.Err)
	assert.Equal(t, 1, calls, "exactly one request")
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "State of health estimation for lithium batteries", first.Title)
	assert.Equal(t, "https://scholar.google.com/citations?view_op=view_citation&citation_for_view=X:1", first.URL)
	assert.Equal(t, "A Chen, B Lin, C Wu", first.Authors)
	assert.Equal(t, "Applied Energy 330, 120001", first.Venue)
	assert.Equal(t, "2023", first.Year)
	assert.Equal(t, "42", first.Citations)

	second := res.Records[1]
	assert.Empty(t, second.Venue)
	assert.Empty(t, second.Year)
	assert.Equal(t, "0", second.Citations)
	assert.Equal(t, "https://example.org/paper", second.URL, "absolute urls are kept")
}

func TestScraperFallbackSelectors(t *testing.T) {
	page := `<table><tbody>
<tr class="row gsc_a_tr_v2"><td>
  <a class="gsc_a_at_alt" href="/p/1">Pattern matched title</a>
  <div class="gs_gray_x">Authors</div>
  <div class="gs_gray_x">Sensors, 2021</div>
</td></tr>
</tbody></table>`
	scraper := NewScholarScraper(mockHTTPClient{t: t, body: page}, ScraperConfig{ProfileURL: "https://scholar.google.com/x"}, nil)
	res := scraper.Fetch(context.Background())
	require.Len(t, res.Records, 1, "status %s err %v", res.Status, res.Err)
	assert.Equal(t, "Sensors", res.Records[0].Venue)
	assert.Equal(t, "2021", res.Records[0].Year)

	byID := `<table><tbody><tr id="gsc_a_tr_0"><td><a class="gsc_a_at" href="/p/2">Id matched</a></td></tr></tbody></table>`
	scraper = NewScholarScraper(mockHTTPClient{t: t, body: byID}, ScraperConfig{ProfileURL: "https://scholar.google.com/x"}, nil)
	res = scraper.Fetch(context.Background())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Id matched", res.Records[0].Title)
}

func TestScraperNonSuccessStatusFails(t *testing.T) {
	scraper := NewScholarScraper(mockHTTPClient{t: t, status: 429, body: "slow down"}, ScraperConfig{ProfileURL: "https://scholar.google.com/x"}, nil)
	res := scraper.Fetch(context.Background())
	assert.Equal(t, acquire.StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "429")
}

func TestScraperTransportErrorFails(t *testing.T) {
	scraper := NewScholarScraper(mockHTTPClient{t: t, err: errors.New("dial tcp: timeout")}, ScraperConfig{ProfileURL: "https://scholar.google.com/x"}, nil)
	res := scraper.Fetch(context.Background())
	assert.Equal(t, acquire.StatusFailed, res.Status)
	assert.Empty(t, res.Records)
}

func TestScraperDelayHonoursCancellation(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scraper := NewScholarScraper(mockHTTPClient{t: t, calls: &calls}, ScraperConfig{
		ProfileURL: "https://scholar.google.com/x",
		Delay:      time.Hour,
	}, nil)
	assert.Equal(t, acquire.StatusFailed, scraper.Fetch(ctx).Status)
	assert.Zero(t, calls, "request must not be sent after cancellation")
}

func TestSplitVenueYear(t *testing.T) {
	cases := []struct {
		in, venue, year string
	}{
		{"Applied Energy, 2023", "Applied Energy", "2023"},
		{"Journal of Energy Storage 55, 105, 2022", "Journal of Energy Storage 55, 105", "2022"},
		{"Sensors 21 (4), 120001", "Sensors 21 (4), 120001", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		venue, year := splitVenueYear(tc.in)
		assert.Equal(t, tc.venue, venue, tc.in)
		assert.Equal(t, tc.year, year, tc.in)
	}
}

func TestResolveURLHandlesRelative(t *testing.T) {
	assert.Equal(t, "https://example.com/img.png", resolveURL("/img.png", "https://example.com/articles/1"))
	assert.Empty(t, resolveURL("", "https://example.com"))
}

func TestBrowserHeadersOverrides(t *testing.T) {
	h := BrowserHeaders(map[string]string{"User-Agent": "custom", "X-Empty": " "})
	assert.Equal(t, "custom", h["User-Agent"])
	assert.NotContains(t, h, "X-Empty", "empty override is skipped")
	assert.NotEqual(t, "custom", browserHeaders["User-Agent"], "defaults must not be mutated")
}

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

const validResourceID = "65a1b2c3d4e5f6a7b8c9d0e1"

func TestEncodeParseJob_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := crawler.CrawlJob{
		WebsiteResourceID: validResourceID,
		CampaignID:        "camp-1",
		URL:               "https://example.com",
		Timestamp:         ts,
	}

	body, err := EncodeJob(job)
	require.NoError(t, err)

	parsed, err := ParseJob(body)
	require.NoError(t, err)
	require.Equal(t, job.WebsiteResourceID, parsed.WebsiteResourceID)
	require.Equal(t, job.CampaignID, parsed.CampaignID)
	require.Equal(t, job.URL, parsed.URL)
	require.True(t, ts.Equal(parsed.Timestamp))
}

func TestEncodeJob_FillsZeroTimestamp(t *testing.T) {
	t.Parallel()

	body, err := EncodeJob(crawler.CrawlJob{
		WebsiteResourceID: validResourceID,
		URL:               "https://example.com",
	})
	require.NoError(t, err)

	parsed, err := ParseJob(body)
	require.NoError(t, err)
	require.False(t, parsed.Timestamp.IsZero())
}

func TestParseJob_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{{{"},
		{name: "missing resource id", body: `{"url":"https://example.com"}`},
		{name: "short resource id", body: `{"websiteResourceId":"abc","url":"https://example.com"}`},
		{name: "non-hex resource id", body: `{"websiteResourceId":"zzzzzzzzzzzzzzzzzzzzzzzz","url":"https://example.com"}`},
		{name: "missing url", body: `{"websiteResourceId":"` + validResourceID + `"}`},
		{name: "bad timestamp", body: `{"websiteResourceId":"` + validResourceID + `","url":"https://example.com","timestamp":"yesterday"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseJob([]byte(tc.body))
			require.Error(t, err)
		})
	}
}

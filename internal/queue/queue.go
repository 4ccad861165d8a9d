// Package queue defines the crawl job queue bridge: at-least-once
// delivery with explicit acknowledgment, independent of the underlying
// queue technology.
package queue

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

var hexID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// wireJob is the JSON shape exchanged with producers.
type wireJob struct {
	WebsiteResourceID string `json:"websiteResourceId"`
	CampaignID        string `json:"campaignId"`
	URL               string `json:"url"`
	Timestamp         string `json:"timestamp"`
}

// EncodeJob serializes a crawl job into its queue message body.
func EncodeJob(job crawler.CrawlJob) ([]byte, error) {
	ts := job.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	data, err := json.Marshal(wireJob{
		WebsiteResourceID: job.WebsiteResourceID,
		CampaignID:        job.CampaignID,
		URL:               job.URL,
		Timestamp:         ts.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal crawl job: %w", err)
	}
	return data, nil
}

// ParseJob deserializes and validates a queue message body. Malformed
// messages are the caller's cue to ack-and-drop rather than retry.
func ParseJob(data []byte) (crawler.CrawlJob, error) {
	var wire wireJob
	if err := json.Unmarshal(data, &wire); err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("unmarshal crawl job: %w", err)
	}
	if !hexID.MatchString(wire.WebsiteResourceID) {
		return crawler.CrawlJob{}, fmt.Errorf("invalid websiteResourceId %q", wire.WebsiteResourceID)
	}
	if wire.URL == "" {
		return crawler.CrawlJob{}, fmt.Errorf("url is required")
	}
	job := crawler.CrawlJob{
		WebsiteResourceID: wire.WebsiteResourceID,
		CampaignID:        wire.CampaignID,
		URL:               wire.URL,
	}
	if wire.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, wire.Timestamp)
		if err != nil {
			return crawler.CrawlJob{}, fmt.Errorf("parse timestamp: %w", err)
		}
		job.Timestamp = ts
	}
	return job, nil
}

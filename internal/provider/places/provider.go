package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

// Sentinel errors surfaced as terminal job failures. There is no automatic
// fallback to the browser provider; the caller chooses the other provider
// explicitly on a later attempt.
var (
	ErrQuotaExhausted = errors.New("places daily quota exhausted")
	ErrNoAPIKey       = errors.New("places api key is not configured")
)

// hardPageCap bounds pagination per query regardless of configuration.
const hardPageCap = 3

// Provider runs metered text searches under the daily quota.
type Provider struct {
	log      *zap.Logger
	client   *Client
	settings leads.SettingsStore
	blobs    leads.BlobStore
	clock    leads.Clock
	hub      progress.Emitter
	outDir   string
}

// NewProvider constructs a Provider writing artifacts under outDir. A nil
// hub disables page-level progress events.
func NewProvider(
	log *zap.Logger,
	client *Client,
	settings leads.SettingsStore,
	blobs leads.BlobStore,
	clock leads.Clock,
	hub progress.Emitter,
	outDir string,
) *Provider {
	return &Provider{
		log:      log,
		client:   client,
		settings: settings,
		blobs:    blobs,
		clock:    clock,
		hub:      hub,
		outDir:   outDir,
	}
}

// Type identifies this provider on jobs and lineage.
func (p *Provider) Type() leads.ProviderType {
	return leads.ProviderPlaces
}

// CheckLimit reports whether a metered call is currently allowed and how
// much of today's budget remains. A stale reset date rolls the counter over
// to the new day first, and the rollover is persisted.
func (p *Provider) CheckLimit(ctx context.Context) (bool, int, error) {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.PlacesAPIKey == "" {
		return false, 0, nil
	}

	quota, err := p.rolledOver(ctx, settings.Quota)
	if err != nil {
		return false, 0, err
	}
	remaining := settings.PlacesDailyLimit - quota.CallsToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining, nil
}

// rolledOver resets the counter on the first access of a new calendar day
// and persists the reset so a crash cannot re-grant spent budget.
func (p *Provider) rolledOver(ctx context.Context, quota leads.QuotaCounter) (leads.QuotaCounter, error) {
	today := p.clock.Now().Format("2006-01-02")
	if quota.LastReset == today {
		return quota, nil
	}
	quota = leads.QuotaCounter{CallsToday: 0, LastReset: today}
	if err := p.settings.UpdateQuota(ctx, quota); err != nil {
		return quota, fmt.Errorf("failed to persist quota rollover: %w", err)
	}
	p.log.Info("places quota rolled over", zap.String("date", today))
	return quota, nil
}

// ExecuteScrape paginates every query under the live quota, persists the
// updated counter, and writes all collected items to one artifact.
//
// Each page fetch consumes one quota unit and is individually gated, so
// mid-pagination exhaustion stops immediately while keeping the pages
// already collected. If quota ran out before any page succeeded the caller
// receives ErrQuotaExhausted rather than a silent empty success.
func (p *Provider) ExecuteScrape(ctx context.Context, req leads.ScrapeRequest) (leads.RawOutput, error) {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.PlacesAPIKey == "" {
		return leads.RawOutput{}, ErrNoAPIKey
	}

	quota, err := p.rolledOver(ctx, settings.Quota)
	if err != nil {
		return leads.RawOutput{}, err
	}
	if settings.PlacesDailyLimit-quota.CallsToday <= 0 {
		return leads.RawOutput{}, fmt.Errorf("%w: %d calls used today", ErrQuotaExhausted, quota.CallsToday)
	}

	maxPages := req.Config.MaxPages
	if maxPages <= 0 {
		maxPages = settings.DefaultMaxPages
	}
	if maxPages <= 0 || maxPages > hardPageCap {
		maxPages = hardPageCap
	}
	level := req.Config.FieldsLevel
	if level == "" {
		level = settings.DefaultFieldsLevel
	}

	var sections []artifactSection
	collected := 0
	exhausted := false

queries:
	for _, query := range req.Queries {
		section := artifactSection{Query: query, Items: []json.RawMessage{}}
		token := ""
		for page := 0; page < maxPages; page++ {
			if settings.PlacesDailyLimit-quota.CallsToday <= 0 {
				exhausted = true
				sections = append(sections, section)
				p.log.Warn("places quota exhausted mid-job",
					zap.String("job_id", req.JobID),
					zap.String("query", query),
					zap.Int("collected", collected))
				break queries
			}
			quota.CallsToday++

			result, err := p.client.SearchText(ctx, settings.PlacesAPIKey, query, token, req.Config.Language, level)
			if err != nil {
				if persistErr := p.settings.UpdateQuota(ctx, quota); persistErr != nil {
					p.log.Error("failed to persist quota after search error", zap.Error(persistErr))
				}
				return leads.RawOutput{}, fmt.Errorf("places search for %q failed: %w", query, err)
			}
			section.Items = append(section.Items, result.Places...)
			collected += len(result.Places)
			p.emit(progress.Event{
				JobID:    req.JobID,
				TS:       p.clock.Now(),
				Stage:    progress.StageProviderPage,
				Provider: leads.ProviderPlaces,
				Query:    query,
				Items:    int64(len(result.Places)),
			})

			// An empty page is never trusted to carry a valid token.
			if len(result.Places) == 0 || result.NextPageToken == "" {
				break
			}
			token = result.NextPageToken
		}
		sections = append(sections, section)
	}

	if err := p.settings.UpdateQuota(ctx, quota); err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to persist quota: %w", err)
	}

	if collected == 0 && exhausted {
		return leads.RawOutput{}, fmt.Errorf("%w: no pages fetched for job %s", ErrQuotaExhausted, req.JobID)
	}

	return p.writeArtifact(ctx, req.JobID, sections, collected)
}

func (p *Provider) emit(evt progress.Event) {
	if p.hub != nil {
		p.hub.Emit(evt)
	}
}

// artifactSection keeps the items one query produced next to that query, so
// the merge engine can attribute provenance per item.
type artifactSection struct {
	Query string            `json:"query"`
	Items []json.RawMessage `json:"items"`
}

// writeArtifact stores the per-query sections as a JSON array on local disk
// and best-effort copies it to blob storage for audit.
func (p *Provider) writeArtifact(ctx context.Context, jobID string, sections []artifactSection, items int) (leads.RawOutput, error) {
	if sections == nil {
		sections = []artifactSection{}
	}
	content, err := json.Marshal(sections)
	if err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to encode artifact: %w", err)
	}

	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(p.outDir, fmt.Sprintf("places_%s.json", jobID))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	uri := ""
	if p.blobs != nil {
		blobPath := fmt.Sprintf("raw/%s/places.json", jobID)
		uri, err = p.blobs.PutObject(ctx, blobPath, "application/json", bytes.NewReader(content))
		if err != nil {
			p.log.Warn("failed to write audit copy", zap.String("job_id", jobID), zap.Error(err))
			uri = ""
		}
	}

	p.log.Info("places artifact written",
		zap.String("job_id", jobID),
		zap.Int("queries", len(sections)),
		zap.Int("items", items),
		zap.String("path", path))
	return leads.RawOutput{Path: path, URI: uri, Provider: leads.ProviderPlaces}, nil
}

// Package browser adapts the external headless-scraper executable. The
// scraper is an opaque collaborator: this package only prepares its inputs,
// runs it in a bounded subprocess, and validates its output artifact.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Config controls how the scraper executable is invoked.
type Config struct {
	// Binary is the scraper executable path, or the image entrypoint when
	// running under docker.
	Binary string
	// UseDocker wraps the invocation in `docker run` with resource caps.
	UseDocker   bool
	DockerImage string
	CPUs        string
	Memory      string
	ShmSize     string
	// Concurrency and Debug are passed through to the scraper environment.
	Concurrency int
	Debug       bool
	// Timeout bounds the whole subprocess run.
	Timeout time.Duration
	// WorkDir holds per-job scratch directories.
	WorkDir string
}

// Provider runs the browser scraper as an isolated subprocess. It consumes
// no metered quota.
type Provider struct {
	log   *zap.Logger
	cfg   Config
	blobs leads.BlobStore
}

// NewProvider constructs a Provider.
func NewProvider(log *zap.Logger, cfg Config, blobs leads.BlobStore) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Provider{log: log, cfg: cfg, blobs: blobs}
}

// Type identifies this provider on jobs and lineage.
func (p *Provider) Type() leads.ProviderType {
	return leads.ProviderBrowser
}

// ExecuteScrape writes the query list to a scratch file, invokes the scraper
// with a deterministic output path, and verifies the output. A zero-byte
// output file is a failure, not an empty success.
func (p *Provider) ExecuteScrape(ctx context.Context, req leads.ScrapeRequest) (leads.RawOutput, error) {
	scratch := filepath.Join(p.cfg.WorkDir, req.JobID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	queriesPath := filepath.Join(scratch, "queries.txt")
	outputPath := filepath.Join(scratch, "results.json")
	queryFile := strings.Join(req.Queries, "\n") + "\n"
	if err := os.WriteFile(queriesPath, []byte(queryFile), 0o644); err != nil {
		return leads.RawOutput{}, fmt.Errorf("failed to write queries file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := p.buildCommand(runCtx, scratch, queriesPath, outputPath, req.Config)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.log.Info("launching browser scraper",
		zap.String("job_id", req.JobID),
		zap.Int("queries", len(req.Queries)),
		zap.Bool("docker", p.cfg.UseDocker))
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return leads.RawOutput{}, fmt.Errorf("scraper process failed: %w (stderr: %s)", err, tail(stderr.String(), 512))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return leads.RawOutput{}, fmt.Errorf("scraper produced no output file: %w", err)
	}
	if info.Size() == 0 {
		return leads.RawOutput{}, fmt.Errorf("scraper output file %s is empty", outputPath)
	}
	p.log.Info("browser scraper finished",
		zap.String("job_id", req.JobID),
		zap.Int64("output_bytes", info.Size()),
		zap.Duration("took", time.Since(start)))

	uri := p.auditCopy(ctx, req.JobID, outputPath)
	return leads.RawOutput{Path: outputPath, URI: uri, Provider: leads.ProviderBrowser}, nil
}

// buildCommand assembles either a direct invocation or a docker run with
// CPU/memory/shared-memory caps. The scraper contract is environment-variable
// driven in both modes.
func (p *Provider) buildCommand(ctx context.Context, scratch, queriesPath, outputPath string, cfg leads.JobConfig) *exec.Cmd {
	env := map[string]string{
		"SCRAPER_QUERIES_FILE": queriesPath,
		"SCRAPER_OUTPUT_FILE":  outputPath,
		"SCRAPER_MAX_RESULTS":  strconv.Itoa(cfg.MaxResults),
		"SCRAPER_DEPTH":        strconv.Itoa(cfg.Depth),
		"SCRAPER_CONCURRENCY":  strconv.Itoa(p.cfg.Concurrency),
		"SCRAPER_LANGUAGE":     cfg.Language,
		"SCRAPER_DEBUG":        strconv.FormatBool(p.cfg.Debug),
	}

	if !p.cfg.UseDocker {
		cmd := exec.CommandContext(ctx, p.cfg.Binary)
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return cmd
	}

	args := []string{"run", "--rm"}
	if p.cfg.CPUs != "" {
		args = append(args, "--cpus", p.cfg.CPUs)
	}
	if p.cfg.Memory != "" {
		args = append(args, "--memory", p.cfg.Memory)
	}
	if p.cfg.ShmSize != "" {
		args = append(args, "--shm-size", p.cfg.ShmSize)
	}
	args = append(args, "-v", scratch+":"+scratch)
	for k, v := range env {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, p.cfg.DockerImage)
	if p.cfg.Binary != "" {
		args = append(args, p.cfg.Binary)
	}
	return exec.CommandContext(ctx, "docker", args...)
}

// auditCopy pushes the artifact to blob storage, best effort.
func (p *Provider) auditCopy(ctx context.Context, jobID, path string) string {
	if p.blobs == nil {
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("failed to read artifact for audit copy", zap.Error(err))
		return ""
	}
	uri, err := p.blobs.PutObject(ctx, fmt.Sprintf("raw/%s/browser.json", jobID), "application/json", bytes.NewReader(content))
	if err != nil {
		p.log.Warn("failed to write audit copy", zap.String("job_id", jobID), zap.Error(err))
		return ""
	}
	return uri
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package browser

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/memory"
)

// fakeScraper writes a shell script standing in for the scraper executable.
func fakeScraper(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "scraper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newBrowserProvider(t *testing.T, binary string) (*Provider, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	provider := NewProvider(zap.NewNop(), Config{
		Binary:  binary,
		Timeout: 30 * time.Second,
		WorkDir: t.TempDir(),
	}, blobs)
	return provider, blobs
}

func TestExecuteScrape_Success(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `
cp "$SCRAPER_QUERIES_FILE" /dev/null
echo '[{"place_id":"p1","phone":"555"}]' > "$SCRAPER_OUTPUT_FILE"
`)
	provider, blobs := newBrowserProvider(t, binary)

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"plumbers in austin", "cafes in portland"},
		Config:  leads.JobConfig{MaxResults: 20, Depth: 1},
	})
	require.NoError(t, err)
	require.Equal(t, leads.ProviderBrowser, out.Provider)

	content, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(content), "p1")

	audit, err := blobs.GetObject("raw/j1/browser.json")
	require.NoError(t, err)
	require.Equal(t, content, audit)
	require.Equal(t, "memory://raw/j1/browser.json", out.URI)
}

func TestExecuteScrape_QueriesFileContents(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `
cp "$SCRAPER_QUERIES_FILE" "$SCRAPER_OUTPUT_FILE".queries
echo '[{"place_id":"p1"}]' > "$SCRAPER_OUTPUT_FILE"
`)
	provider, _ := newBrowserProvider(t, binary)

	out, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{
		JobID:   "j1",
		Queries: []string{"one", "two"},
	})
	require.NoError(t, err)

	queries, err := os.ReadFile(out.Path + ".queries")
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", string(queries))
}

func TestExecuteScrape_NonZeroExit(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `
echo "browser crashed" >&2
exit 3
`)
	provider, _ := newBrowserProvider(t, binary)

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{JobID: "j1", Queries: []string{"x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "browser crashed")
}

func TestExecuteScrape_MissingOutput(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `exit 0`)
	provider, _ := newBrowserProvider(t, binary)

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{JobID: "j1", Queries: []string{"x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no output file")
}

func TestExecuteScrape_EmptyOutputIsFailure(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `: > "$SCRAPER_OUTPUT_FILE"`)
	provider, _ := newBrowserProvider(t, binary)

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{JobID: "j1", Queries: []string{"x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestExecuteScrape_Timeout(t *testing.T) {
	t.Parallel()

	binary := fakeScraper(t, `sleep 5`)
	blobs := memory.NewBlobStore()
	provider := NewProvider(zap.NewNop(), Config{
		Binary:  binary,
		Timeout: 200 * time.Millisecond,
		WorkDir: t.TempDir(),
	}, blobs)

	_, err := provider.ExecuteScrape(context.Background(), leads.ScrapeRequest{JobID: "j1", Queries: []string{"x"}})
	require.Error(t, err)
}

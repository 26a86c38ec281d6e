package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perks/internal/cache"
	"perks/internal/config"
	"perks/internal/log"
	"perks/internal/sheets/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		ExpansionInclusion: "intersect",
		ExpansionCacheSize: 8,
		ExpansionCacheTTL:  time.Minute,
	}
}

func TestNewTracker_DefaultCatalog(t *testing.T) {
	manager := cache.NewManager(nil)
	tracker, err := NewTracker(testConfig(), memory.New(), manager, log.Discard())
	require.NoError(t, err)

	assert.Equal(t, "alex", tracker.Catalog().DefaultUser())

	instances, err := tracker.Instances(context.Background(), "alex", 2025)
	require.NoError(t, err)
	assert.NotEmpty(t, instances)

	// The expansion cache was registered with the manager.
	assert.Equal(t, 0, manager.CleanNow())
}

func TestNewTracker_CatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	doc := `
[[cards]]
key = "amex_gold"
name = "Amex Gold"

[[cards.credits]]
credit_id = "uber"
cadence = "monthly"
amount = 10
period_type = "calendar"

[[users]]
id = "robin"

[[users.cards]]
id = "amex_gold"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg := testConfig()
	cfg.CatalogPath = path
	cfg.ExpansionCacheSize = 0

	tracker, err := NewTracker(cfg, memory.New(), nil, log.Discard())
	require.NoError(t, err)

	instances, err := tracker.Instances(context.Background(), "robin", 2025)
	require.NoError(t, err)
	assert.Len(t, instances, 12)
}

func TestNewTracker_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.toml")
	_, err := NewTracker(cfg, memory.New(), nil, log.Discard())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ExpansionInclusion = "overlap"
	_, err = NewTracker(cfg, memory.New(), nil, log.Discard())
	assert.Error(t, err)
}

func TestGracefulShutdownWithoutSignal(t *testing.T) {
	ctx, done := GracefulShutdown(log.Discard(), time.Second, nil)
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled without a signal")
	case <-done:
		t.Fatal("done closed without a signal")
	default:
	}
}

package bootstrap

import (
	"context"
	"testing"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../config/app.yaml")
	require.NoError(t, err)
	cfg.Reference.Path = "../../config/reference.yaml"
	cfg.Cache.Backend = "memory"
	cfg.Meilisearch.Enabled = false
	return cfg
}

func TestNew_FileReference(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })

	assert.Nil(t, app.Mongo)
	assert.Nil(t, app.Searcher)
	assert.Equal(t, "sample-2024.1", app.AddressService.ReferenceVersion())

	res, _, err := app.AddressService.Resolve(ctx, services.ResolveInput{Address: "Phường Hưng Bình, Thành phố Vinh, Nghệ An"})
	require.NoError(t, err)
	assert.True(t, res.IsValidStatus())
	assert.NotNil(t, res.Province)

	checks := app.HealthChecks()
	assert.Contains(t, checks, "cache")
	assert.NotContains(t, checks, "mongodb")
	assert.NoError(t, checks["cache"](ctx))

	// không có Mongo thì quality và alias báo thiếu store
	_, err = app.QualityService.ClassifyStored(ctx, services.ClassifyOptions{})
	assert.ErrorIs(t, err, services.ErrNoStore)
}

func TestNew_MissingReferenceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reference.Path = "does/not/exist.yaml"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadReference_MongoWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reference.Source = "mongo"
	app := &App{Config: cfg, Logger: zap.NewNop()}

	_, err := app.loadReference(context.Background())
	assert.ErrorIs(t, err, services.ErrNoStore)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := NewLogger(env)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

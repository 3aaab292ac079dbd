package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "cero", cfg.NonStockCostSnapshot)
	assert.False(t, cfg.CostoCatalogoEnServicios())
	assert.Equal(t, "@every 15m", cfg.AlertasCron)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("NON_STOCK_COST_SNAPSHOT", "catalogo")
	t.Setenv("WORKER_POOL_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 7, cfg.WorkerPoolSize)
	assert.True(t, cfg.CostoCatalogoEnServicios())
}

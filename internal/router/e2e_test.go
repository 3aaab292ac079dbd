//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tallerfranco/internal/config"
	"tallerfranco/internal/infra"
	"tallerfranco/internal/middleware"
	"tallerfranco/internal/model"
	"tallerfranco/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

type e2eEnv struct {
	server *httptest.Server
	db     *gorm.DB
	token  string
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("taller_test"),
		tcPostgres.WithUsername("taller"),
		tcPostgres.WithPassword("taller"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:            "test",
		JWTSecret:      testSecret,
		DatabaseURL:    pgURL,
		RedisURL:       rdURL,
		WorkerPoolSize: 1,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.CloseDatabase(db) })
	require.NoError(t, infra.Migrate(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	dispatcher := worker.NewDispatcher(rdb, infra.NewCircuitBreaker(infra.DefaultCBConfig("redis-queue")))
	pool := worker.NewPool(rdb)
	pool.Register(worker.QueueAlertas, worker.JobAlertaStock, worker.NewAlertaStockHandler(rdb))
	pool.Start(workerCtx, cfg.WorkerPoolSize)

	srv := httptest.NewServer(New(cfg, db, rdb, dispatcher))
	t.Cleanup(srv.Close)

	return &e2eEnv{server: srv, db: db, token: token(t, middleware.RolAdministrador)}
}

func (e *e2eEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func (e *e2eEnv) producto(t *testing.T, p model.Producto) *model.Producto {
	t.Helper()
	p.CodigoBarras = uuid.NewString()[:13]
	p.PrecioCosto = decimal.NewFromInt(60)
	p.PrecioVenta = decimal.NewFromInt(100)
	if p.Capacidad.IsZero() {
		p.Capacidad = decimal.NewFromInt(1)
	}
	p.Activo = true
	require.NoError(t, e.db.Create(&p).Error)
	return &p
}

func (e *e2eEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p model.Producto
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p.StockActual
}

func TestE2E_CicloCompletoConAlerta(t *testing.T) {
	env := setupE2E(t)
	filtro := env.producto(t, model.Producto{Nombre: "Filtro", StockActual: 3, StockMinimo: 2})

	status, body := env.do(t, http.MethodPost, "/v1/ventas", ventaBody("e2e-1", linea(filtro, "2", nil)))
	require.Equal(t, http.StatusCreated, status, string(body))
	var venta struct {
		ID     string `json:"id"`
		Numero int    `json:"numero"`
	}
	require.NoError(t, json.Unmarshal(body, &venta))
	assert.Equal(t, 1, env.stock(t, filtro.ID))

	// the worker pool picks the alert job up and fills the cache
	assert.Eventually(t, func() bool {
		status, body := env.do(t, http.MethodGet, "/v1/inventario/alertas", nil)
		var resp struct {
			Fuente string `json:"fuente"`
			Data   []struct {
				ProductoID string `json:"producto_id"`
			} `json:"data"`
		}
		if status != http.StatusOK || json.Unmarshal(body, &resp) != nil {
			return false
		}
		return resp.Fuente == "cache" && len(resp.Data) == 1 && resp.Data[0].ProductoID == filtro.ID.String()
	}, 10*time.Second, 100*time.Millisecond)

	status, _ = env.do(t, http.MethodDelete, "/v1/ventas/"+venta.ID, map[string]any{"motivo": "prueba"})
	require.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 3, env.stock(t, filtro.ID))

	assert.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/v1/inventario/alertas", nil)
		var resp struct {
			Data []any `json:"data"`
		}
		return json.Unmarshal(body, &resp) == nil && len(resp.Data) == 0
	}, 10*time.Second, 100*time.Millisecond)
}

func TestE2E_SerialConcurrenteSeVendeUnaVez(t *testing.T) {
	env := setupE2E(t)
	bateria := env.producto(t, model.Producto{Nombre: "Batería", RequiereSerial: true})
	require.NoError(t, env.db.Create(&model.UnidadSerial{ProductoID: bateria.ID, CodigoSerial: "SN-RACE"}).Error)

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], _ = env.do(t, http.MethodPost, "/v1/ventas",
				ventaBody(uuid.NewString(), linea(bateria, "1", map[string]any{"serial_code": "SN-RACE"})))
		}(i)
	}
	wg.Wait()

	creadas := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			creadas++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, creadas)
}

func TestE2E_IdempotenciaConcurrente(t *testing.T) {
	env := setupE2E(t)
	filtro := env.producto(t, model.Producto{Nombre: "Filtro", StockActual: 50})

	const n = 6
	var wg sync.WaitGroup
	codes := make([]int, n)
	bodies := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], bodies[i] = env.do(t, http.MethodPost, "/v1/ventas", ventaBody("misma-clave", linea(filtro, "1", nil)))
		}(i)
	}
	wg.Wait()

	var id string
	for i, c := range codes {
		if c == http.StatusCreated {
			var v struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(bodies[i], &v))
			id = v.ID
		}
	}
	require.NotEmpty(t, id)
	for i, c := range codes {
		if c == http.StatusCreated {
			continue
		}
		require.Equal(t, http.StatusConflict, c, string(bodies[i]))
		var dup struct {
			VentaID string `json:"venta_id"`
		}
		require.NoError(t, json.Unmarshal(bodies[i], &dup))
		assert.Equal(t, id, dup.VentaID)
	}
	assert.Equal(t, 49, env.stock(t, filtro.ID))
}

func TestE2E_NumerosUnicosBajoConcurrencia(t *testing.T) {
	env := setupE2E(t)
	mano := env.producto(t, model.Producto{Nombre: "Mano de obra", Tipo: model.TipoServicio})

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	numeros := map[int]bool{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body := env.do(t, http.MethodPost, "/v1/ventas", ventaBody(uuid.NewString(), linea(mano, "1", nil)))
			if status != http.StatusCreated {
				return
			}
			var v struct {
				Numero int `json:"numero"`
			}
			if json.Unmarshal(body, &v) == nil {
				mu.Lock()
				numeros[v.Numero] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, numeros, n)
}

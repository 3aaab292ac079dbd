package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tallerfranco/internal/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func alerta(id string, actual, minimo int) AlertaStock {
	return AlertaStock{ProductoID: id, Nombre: "Producto " + id, StockActual: actual, StockMinimo: minimo, DetectadaAt: time.Now().UTC()}
}

func TestDispatcher_EncolaJob(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewDispatcher(rdb, infra.NewCircuitBreaker(infra.DefaultCBConfig("test")))

	require.NoError(t, d.EnqueueAlertaStock(context.Background(), alerta("p1", 1, 2)))

	items, err := mr.List(QueueAlertas)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	assert.Equal(t, JobAlertaStock, job.Type)
	assert.Zero(t, job.Attempts)
	var a AlertaStock
	require.NoError(t, json.Unmarshal(job.Payload, &a))
	assert.Equal(t, "p1", a.ProductoID)
}

func TestDispatcher_BreakerAbreSinRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "test", FailureThreshold: 1, OpenTimeout: time.Hour})
	d := NewDispatcher(rdb, cb)
	mr.Close()

	err := d.EnqueueAlertaStock(context.Background(), alerta("p1", 0, 1))
	require.Error(t, err)
	assert.Equal(t, infra.CBOpen, d.Breaker().State())

	err = d.EnqueueAlertaStock(context.Background(), alerta("p1", 0, 1))
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
}

func TestAlertaStockHandler(t *testing.T) {
	mr, rdb := newRedis(t)
	h := NewAlertaStockHandler(rdb)
	ctx := context.Background()

	payload, _ := json.Marshal(alerta("p1", 1, 2))
	require.NoError(t, h(ctx, payload))
	assert.True(t, mr.Exists(HashAlertas))

	alertas, err := LeerAlertas(ctx, rdb)
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, 1, alertas[0].StockActual)

	repuesto, _ := json.Marshal(alerta("p1", 5, 2))
	require.NoError(t, h(ctx, repuesto))
	alertas, err = LeerAlertas(ctx, rdb)
	require.NoError(t, err)
	assert.Empty(t, alertas)

	assert.ErrorIs(t, h(ctx, json.RawMessage(`{"producto_id":`)), ErrJobPermanente)
	assert.ErrorIs(t, h(ctx, json.RawMessage(`{"nombre":"x"}`)), ErrJobPermanente)
}

func TestLeerAlertas_OrdenaPorNombreEIgnoraBasura(t *testing.T) {
	mr, rdb := newRedis(t)
	for _, a := range []AlertaStock{
		{ProductoID: "2", Nombre: "Correa"},
		{ProductoID: "1", Nombre: "Bujía"},
	} {
		data, _ := json.Marshal(a)
		mr.HSet(HashAlertas, a.ProductoID, string(data))
	}
	mr.HSet(HashAlertas, "3", "{no json")

	alertas, err := LeerAlertas(context.Background(), rdb)
	require.NoError(t, err)
	require.Len(t, alertas, 2)
	assert.Equal(t, "Bujía", alertas[0].Nombre)
	assert.Equal(t, "Correa", alertas[1].Nombre)
}

func TestProcessJob_ReintentaYLuegoDLQ(t *testing.T) {
	mr, rdb := newRedis(t)
	p := NewPool(rdb)
	var llamadas int32
	p.Register(QueueAlertas, JobAlertaStock, func(context.Context, json.RawMessage) error {
		atomic.AddInt32(&llamadas, 1)
		return errors.New("redis caído")
	})
	ctx := context.Background()

	raw, _ := json.Marshal(Job{Type: JobAlertaStock, Payload: json.RawMessage(`{}`)})
	p.processJob(ctx, QueueAlertas, string(raw))

	// requeued with attempts=1
	items, err := mr.List(QueueAlertas)
	require.NoError(t, err)
	require.Len(t, items, 1)
	for i := 1; i < MaxJobAttempts; i++ {
		next, err := rdb.RPop(ctx, QueueAlertas).Result()
		require.NoError(t, err)
		p.processJob(ctx, QueueAlertas, next)
	}

	assert.Equal(t, int32(MaxJobAttempts), atomic.LoadInt32(&llamadas))
	assert.False(t, mr.Exists(QueueAlertas))
	n, err := DLQLength(ctx, rdb, QueueAlertas)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := peekDLQ(ctx, rdb, QueueAlertas, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MaxJobAttempts, entries[0].Attempts)
	assert.Equal(t, "redis caído", entries[0].Reason)
}

func TestProcessJob_PermanenteVaDirectoADLQ(t *testing.T) {
	mr, rdb := newRedis(t)
	p := NewPool(rdb)
	p.Register(QueueAlertas, JobAlertaStock, NewAlertaStockHandler(rdb))
	ctx := context.Background()

	raw, _ := json.Marshal(Job{Type: JobAlertaStock, Payload: json.RawMessage(`"texto"`)})
	p.processJob(ctx, QueueAlertas, string(raw))
	p.processJob(ctx, QueueAlertas, "{basura")
	otro, _ := json.Marshal(Job{Type: "desconocido", Payload: json.RawMessage(`{}`)})
	p.processJob(ctx, QueueAlertas, string(otro))

	assert.False(t, mr.Exists(QueueAlertas))
	entries, err := peekDLQ(ctx, rdb, QueueAlertas, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[2].Attempts)
}

func TestPool_ConsumeCola(t *testing.T) {
	_, rdb := newRedis(t)
	p := NewPool(rdb)
	p.Register(QueueAlertas, JobAlertaStock, NewAlertaStockHandler(rdb))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, 2)

	d := NewDispatcher(rdb, nil)
	require.NoError(t, d.EnqueueAlertaStock(ctx, alerta("p9", 0, 3)))

	assert.Eventually(t, func() bool {
		alertas, err := LeerAlertas(ctx, rdb)
		return err == nil && len(alertas) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSweepAlertas(t *testing.T) {
	_, rdb := newRedis(t)
	locker := redislock.New(rdb)
	ctx := context.Background()

	// stale alert for a product restocked outside the sale flow
	stale, _ := json.Marshal(alerta("viejo", 0, 1))
	require.NoError(t, rdb.HSet(ctx, HashAlertas, "viejo", stale).Err())

	fuente := func(context.Context) ([]AlertaStock, error) {
		return []AlertaStock{alerta("a", 1, 2), alerta("b", 0, 0)}, nil
	}
	require.NoError(t, SweepAlertas(ctx, rdb, locker, fuente))

	ids, err := rdb.HKeys(ctx, HashAlertas).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSweepAlertas_OtraInstanciaTieneElLock(t *testing.T) {
	_, rdb := newRedis(t)
	locker := redislock.New(rdb)
	ctx := context.Background()

	held, err := locker.Obtain(ctx, lockAlertasSweep, time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	llamada := false
	fuente := func(context.Context) ([]AlertaStock, error) {
		llamada = true
		return nil, nil
	}
	require.NoError(t, SweepAlertas(ctx, rdb, locker, fuente))
	assert.False(t, llamada)
}

func TestSweepAlertas_ErrorDeFuente(t *testing.T) {
	_, rdb := newRedis(t)
	locker := redislock.New(rdb)
	ctx := context.Background()
	stale, _ := json.Marshal(alerta("viejo", 0, 1))
	require.NoError(t, rdb.HSet(ctx, HashAlertas, "viejo", stale).Err())

	err := SweepAlertas(ctx, rdb, locker, func(context.Context) ([]AlertaStock, error) {
		return nil, errors.New("db caída")
	})
	require.Error(t, err)
	n, err := rdb.HLen(ctx, HashAlertas).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "hash is left untouched")

	// lock was released
	_, err = locker.Obtain(ctx, lockAlertasSweep, time.Second, nil)
	assert.NoError(t, err)
}

func TestStartAlertasCron_SpecInvalido(t *testing.T) {
	_, rdb := newRedis(t)
	_, err := StartAlertasCron(context.Background(), "cada rato", rdb, nil)
	assert.Error(t, err)
}

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tallerfranco/internal/dto"
	"tallerfranco/internal/model"
	"tallerfranco/internal/repository"
	"tallerfranco/internal/testutil"
	"tallerfranco/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngresarSeriales(t *testing.T) {
	e := nuevoEntorno(t)
	bateria := testutil.Serializado(t, e.db, "Batería 12V", "EXISTE-1")
	filtro := testutil.Discreto(t, e.db, "Filtro", 3)
	ctx := context.Background()

	out, err := e.inv.IngresarSeriales(ctx, dto.IngresarSerialesRequest{
		ProductoID: bateria.ID.String(),
		Seriales:   []string{" N-1 ", "N-2"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "N-1", out[0].CodigoSerial)
	assert.Equal(t, model.SerialDisponible, out[0].Estado)

	_, err = e.inv.IngresarSeriales(ctx, dto.IngresarSerialesRequest{
		ProductoID: bateria.ID.String(),
		Seriales:   []string{"N-3", "N-3"},
	})
	assert.ErrorIs(t, err, ErrSerialDuplicado)

	_, err = e.inv.IngresarSeriales(ctx, dto.IngresarSerialesRequest{
		ProductoID: bateria.ID.String(),
		Seriales:   []string{"N-4", "EXISTE-1"},
	})
	assert.ErrorIs(t, err, ErrSerialDuplicado)

	_, err = e.inv.IngresarSeriales(ctx, dto.IngresarSerialesRequest{
		ProductoID: filtro.ID.String(),
		Seriales:   []string{"X"},
	})
	assert.ErrorIs(t, err, ErrItemInvalido)

	_, err = e.inv.IngresarSeriales(ctx, dto.IngresarSerialesRequest{
		ProductoID: uuid.NewString(),
		Seriales:   []string{"X"},
	})
	assert.ErrorIs(t, err, ErrProductoNoEncontrado)

	disponibles, err := e.inv.ListarSeriales(ctx, bateria.ID, model.SerialDisponible)
	require.NoError(t, err)
	assert.Len(t, disponibles, 3)
}

func TestListarSeriales_PorEstado(t *testing.T) {
	e := nuevoEntorno(t)
	bateria := testutil.Serializado(t, e.db, "Batería", "A", "B")
	resp := e.registrar(t, item(bateria, "1", conSerial("A")))

	vendidos, err := e.inv.ListarSeriales(context.Background(), bateria.ID, model.SerialVendido)
	require.NoError(t, err)
	require.Len(t, vendidos, 1)
	require.NotNil(t, vendidos[0].VentaID)
	assert.Equal(t, resp.ID, *vendidos[0].VentaID)

	todos, err := e.inv.ListarSeriales(context.Background(), bateria.ID, "")
	require.NoError(t, err)
	assert.Len(t, todos, 2)
}

func TestListarParciales(t *testing.T) {
	e := nuevoEntorno(t)
	aceite := testutil.Fraccionado(t, e.db, "Aceite", "1", 5)
	e.registrar(t, item(aceite, "0.5", nil))
	e.registrar(t, item(aceite, "0.995", nil)) // leaves 0.005, inactive

	activos, err := e.inv.ListarParciales(context.Background(), dto.ParcialFilter{ProductoID: aceite.ID.String()})
	require.NoError(t, err)
	require.Len(t, activos, 1)
	assert.Equal(t, "Aceite", activos[0].Producto)
	assert.Equal(t, "litro", activos[0].UnidadMedida)
	assertDecimal(t, "0.5", activos[0].CantidadRestante)
	assert.NotNil(t, activos[0].VentaOrigenID)

	todos, err := e.inv.ListarParciales(context.Background(), dto.ParcialFilter{Todos: true})
	require.NoError(t, err)
	assert.Len(t, todos, 2)

	_, err = e.inv.ListarParciales(context.Background(), dto.ParcialFilter{ProductoID: "x"})
	assert.ErrorIs(t, err, ErrFiltroInvalido)
}

func TestListarParciales_Sobregirado(t *testing.T) {
	e := nuevoEntorno(t)
	aceite := testutil.Fraccionado(t, e.db, "Aceite 20W-50", "4", 5)
	ctx := context.Background()

	v1 := e.registrar(t, item(aceite, "1", nil))
	rem := testutil.Parciales(t, e.db, aceite.ID)[0]
	e.registrar(t, item(aceite, "2", conRemanente(rem.ID.String())))
	require.NoError(t, e.svc.AnularVenta(ctx, uuid.MustParse(v1.ID), nil))

	activos, err := e.inv.ListarParciales(ctx, dto.ParcialFilter{ProductoID: aceite.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, activos)

	todos, err := e.inv.ListarParciales(ctx, dto.ParcialFilter{ProductoID: aceite.ID.String(), Todos: true})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assertDecimal(t, "-2", todos[0].CantidadRestante)
	assert.False(t, todos[0].Activo)
	assert.True(t, todos[0].Sobregirado)
}

func TestListarMovimientos(t *testing.T) {
	e := nuevoEntorno(t)
	a := testutil.Discreto(t, e.db, "Filtro", 10)
	b := testutil.Discreto(t, e.db, "Bujía", 10)
	v := e.registrar(t, item(a, "1", nil), item(b, "2", nil))
	e.registrar(t, item(a, "1", nil))
	require.NoError(t, e.svc.AnularVenta(context.Background(), uuid.MustParse(v.ID), nil))

	todos, err := e.inv.ListarMovimientos(context.Background(), dto.MovimientoFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), todos.Total)

	deA, err := e.inv.ListarMovimientos(context.Background(), dto.MovimientoFilter{ProductoID: a.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), deA.Total)
	assert.Equal(t, "Filtro", deA.Data[0].Producto)

	deVenta, err := e.inv.ListarMovimientos(context.Background(), dto.MovimientoFilter{
		VentaID: v.ID,
		Tipo:    model.MovimientoRestoreAnulacion,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deVenta.Total)
	for _, m := range deVenta.Data {
		assert.Positive(t, m.Cantidad)
		assert.Equal(t, m.StockAnterior+m.Cantidad, m.StockNuevo)
	}

	_, err = e.inv.ListarMovimientos(context.Background(), dto.MovimientoFilter{VentaID: "nope"})
	assert.ErrorIs(t, err, ErrFiltroInvalido)
}

func TestObtenerAlertas_CacheYFallback(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CrearProducto(t, db, model.Producto{Nombre: "Filtro de aire", StockActual: 1, StockMinimo: 2, Activo: true})
	testutil.CrearProducto(t, db, model.Producto{Nombre: "Correa", StockActual: 9, StockMinimo: 2, Activo: true})
	testutil.Servicio(t, db, "Mano de obra")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inv := NewInventarioService(
		repository.NewProductoRepository(db),
		repository.NewSerialRepository(db),
		repository.NewParcialRepository(db),
		repository.NewMovimientoStockRepository(db),
		rdb,
	)
	ctx := context.Background()

	cacheada, _ := json.Marshal(worker.AlertaStock{
		ProductoID: uuid.NewString(), Nombre: "Desde cache", StockActual: 0, StockMinimo: 1,
		DetectadaAt: time.Now().UTC(),
	})
	mr.HSet(worker.HashAlertas, "x", string(cacheada))

	resp, err := inv.ObtenerAlertas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cache", resp.Fuente)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Desde cache", resp.Data[0].Nombre)

	mr.Close()
	resp, err = inv.ObtenerAlertas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "db", resp.Fuente)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Filtro de aire", resp.Data[0].Nombre)
}

package service

import (
	"context"
	"sync"
	"testing"

	"tallerfranco/internal/dto"
	"tallerfranco/internal/model"
	"tallerfranco/internal/repository"
	"tallerfranco/internal/testutil"
	"tallerfranco/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeAlertas records every enqueued alert instead of talking to Redis.
type fakeAlertas struct {
	mu      sync.Mutex
	alertas []worker.AlertaStock
}

func (f *fakeAlertas) EnqueueAlertaStock(_ context.Context, a worker.AlertaStock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertas = append(f.alertas, a)
	return nil
}

func (f *fakeAlertas) para(productoID uuid.UUID) []worker.AlertaStock {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []worker.AlertaStock
	for _, a := range f.alertas {
		if a.ProductoID == productoID.String() {
			out = append(out, a)
		}
	}
	return out
}

type entorno struct {
	db      *gorm.DB
	svc     VentaService
	inv     InventarioService
	alertas *fakeAlertas
	usuario uuid.UUID
}

func nuevoEntorno(t *testing.T) *entorno {
	return nuevoEntornoConCosto(t, false)
}

func nuevoEntornoConCosto(t *testing.T, costoCatalogo bool) *entorno {
	t.Helper()
	db := testutil.NewDB(t)
	productos := repository.NewProductoRepository(db)
	seriales := repository.NewSerialRepository(db)
	parciales := repository.NewParcialRepository(db)
	movimientos := repository.NewMovimientoStockRepository(db)

	alertas := &fakeAlertas{}
	conciliador := NewConciliador(productos, seriales, parciales, movimientos, costoCatalogo)
	return &entorno{
		db:      db,
		svc:     NewVentaService(repository.NewVentaRepository(db), productos, conciliador, alertas),
		inv:     NewInventarioService(productos, seriales, parciales, movimientos, nil),
		alertas: alertas,
		usuario: uuid.New(),
	}
}

func item(p *model.Producto, cantidad string, extra map[string]interface{}) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{
		ProductoID:     p.ID.String(),
		Cantidad:       decimal.RequireFromString(cantidad),
		PrecioUnitario: p.PrecioVenta,
		DatosExtra:     extra,
	}
}

func conSerial(codigo string) map[string]interface{} {
	return map[string]interface{}{ExtraSerialCode: codigo}
}

func conRemanente(id string) map[string]interface{} {
	return map[string]interface{}{ExtraPartialRemnantID: id}
}

func (e *entorno) registrar(t *testing.T, items ...dto.ItemVentaRequest) *dto.VentaResponse {
	t.Helper()
	resp, err := e.intentar(items...)
	require.NoError(t, err)
	return resp
}

func (e *entorno) intentar(items ...dto.ItemVentaRequest) (*dto.VentaResponse, error) {
	return e.svc.RegistrarVenta(context.Background(), e.usuario, dto.RegistrarVentaRequest{
		IdempotencyKey: uuid.NewString(),
		Items:          items,
	})
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got),
		append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func contarFilas(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tallerfranco/internal/dto"
	"tallerfranco/internal/model"
	"tallerfranco/internal/repository"
	"tallerfranco/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InventarioService covers the inventory ledger outside the sale flow:
// serial intake, open containers, the movement audit and low-stock alerts.
type InventarioService interface {
	IngresarSeriales(ctx context.Context, req dto.IngresarSerialesRequest) ([]dto.UnidadSerialResponse, error)
	ListarSeriales(ctx context.Context, productoID uuid.UUID, estado string) ([]dto.UnidadSerialResponse, error)
	ListarParciales(ctx context.Context, filter dto.ParcialFilter) ([]dto.InventarioParcialResponse, error)
	ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error)
	ObtenerAlertas(ctx context.Context) (*dto.AlertasResponse, error)
	// AlertasDesdeDB is the source for the periodic alert sweep.
	AlertasDesdeDB(ctx context.Context) ([]worker.AlertaStock, error)
}

type inventarioService struct {
	productos   repository.ProductoRepository
	seriales    repository.SerialRepository
	parciales   repository.ParcialRepository
	movimientos repository.MovimientoStockRepository
	rdb         *redis.Client
}

func NewInventarioService(
	productos repository.ProductoRepository,
	seriales repository.SerialRepository,
	parciales repository.ParcialRepository,
	movimientos repository.MovimientoStockRepository,
	rdb *redis.Client,
) InventarioService {
	return &inventarioService{
		productos:   productos,
		seriales:    seriales,
		parciales:   parciales,
		movimientos: movimientos,
		rdb:         rdb,
	}
}

func (s *inventarioService) IngresarSeriales(ctx context.Context, req dto.IngresarSerialesRequest) ([]dto.UnidadSerialResponse, error) {
	pid, err := uuid.Parse(req.ProductoID)
	if err != nil {
		return nil, fmt.Errorf("%w: producto_id inválido", ErrItemInvalido)
	}
	p, err := s.productos.FindByID(ctx, pid)
	if repository.EsNoEncontrado(err) {
		return nil, ErrProductoNoEncontrado
	}
	if err != nil {
		return nil, err
	}
	if !p.RequiereSerial {
		return nil, fmt.Errorf("%w: %s no se controla por número de serie", ErrItemInvalido, p.Nombre)
	}

	vistos := make(map[string]bool, len(req.Seriales))
	unidades := make([]model.UnidadSerial, 0, len(req.Seriales))
	for _, raw := range req.Seriales {
		codigo := strings.TrimSpace(raw)
		if codigo == "" {
			return nil, fmt.Errorf("%w: número de serie vacío", ErrItemInvalido)
		}
		if vistos[codigo] {
			return nil, fmt.Errorf("%w: %s repetido en la carga", ErrSerialDuplicado, codigo)
		}
		vistos[codigo] = true
		unidades = append(unidades, model.UnidadSerial{
			ProductoID:   pid,
			CodigoSerial: codigo,
			Estado:       model.SerialDisponible,
		})
	}

	if err := s.seriales.CreateBatch(ctx, unidades); err != nil {
		if repository.EsViolacionUnica(err) {
			return nil, fmt.Errorf("%w: %v", ErrSerialDuplicado, err)
		}
		return nil, err
	}
	log.Info().Str("producto_id", pid.String()).Int("cantidad", len(unidades)).Msg("seriales ingresados")

	out := make([]dto.UnidadSerialResponse, 0, len(unidades))
	for i := range unidades {
		out = append(out, serialToResponse(&unidades[i]))
	}
	return out, nil
}

func (s *inventarioService) ListarSeriales(ctx context.Context, productoID uuid.UUID, estado string) ([]dto.UnidadSerialResponse, error) {
	unidades, err := s.seriales.ListByProducto(ctx, productoID, estado)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UnidadSerialResponse, 0, len(unidades))
	for i := range unidades {
		out = append(out, serialToResponse(&unidades[i]))
	}
	return out, nil
}

func (s *inventarioService) ListarParciales(ctx context.Context, filter dto.ParcialFilter) ([]dto.InventarioParcialResponse, error) {
	var pid *uuid.UUID
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, fmt.Errorf("%w: producto_id", ErrFiltroInvalido)
		}
		pid = &id
	}
	parciales, err := s.parciales.List(ctx, pid, !filter.Todos)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InventarioParcialResponse, 0, len(parciales))
	for _, p := range parciales {
		r := dto.InventarioParcialResponse{
			ID:               p.ID.String(),
			ProductoID:       p.ProductoID.String(),
			Codigo:           p.Codigo,
			CantidadRestante: p.CantidadRestante,
			Activo:           p.Activo,
			Sobregirado:      p.CantidadRestante.IsNegative(),
			CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		}
		if p.Producto != nil {
			r.Producto = p.Producto.Nombre
			r.UnidadMedida = p.Producto.UnidadMedida
		}
		if p.VentaOrigenID != nil {
			v := p.VentaOrigenID.String()
			r.VentaOrigenID = &v
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *inventarioService) ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	f := repository.MovimientoStockFilter{Tipo: filter.Tipo, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, fmt.Errorf("%w: producto_id", ErrFiltroInvalido)
		}
		f.ProductoID = &id
	}
	if filter.VentaID != "" {
		id, err := uuid.Parse(filter.VentaID)
		if err != nil {
			return nil, fmt.Errorf("%w: venta_id", ErrFiltroInvalido)
		}
		f.ReferenciaID = &id
	}

	movs, total, err := s.movimientos.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovimientoStockResponse, 0, len(movs))
	for _, m := range movs {
		r := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			ProductoID:    m.ProductoID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
		if m.Producto != nil {
			r.Producto = m.Producto.Nombre
		}
		if m.ReferenciaID != nil {
			ref := m.ReferenciaID.String()
			r.ReferenciaID = &ref
		}
		data = append(data, r)
	}
	return &dto.MovimientoListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ObtenerAlertas serves the cached alert hash and falls back to the database
// when Redis is unavailable.
func (s *inventarioService) ObtenerAlertas(ctx context.Context) (*dto.AlertasResponse, error) {
	if s.rdb != nil {
		alertas, err := worker.LeerAlertas(ctx, s.rdb)
		if err == nil {
			return alertasToResponse("cache", alertas), nil
		}
		log.Warn().Err(err).Msg("cache de alertas no disponible, consultando base de datos")
	}
	alertas, err := s.AlertasDesdeDB(ctx)
	if err != nil {
		return nil, err
	}
	return alertasToResponse("db", alertas), nil
}

func (s *inventarioService) AlertasDesdeDB(ctx context.Context) ([]worker.AlertaStock, error) {
	productos, err := s.productos.ListBajoStock(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]worker.AlertaStock, 0, len(productos))
	for _, p := range productos {
		out = append(out, worker.AlertaStock{
			ProductoID:  p.ID.String(),
			Nombre:      p.Nombre,
			StockActual: p.StockActual,
			StockMinimo: p.StockMinimo,
			DetectadaAt: now,
		})
	}
	return out, nil
}

func alertasToResponse(fuente string, alertas []worker.AlertaStock) *dto.AlertasResponse {
	data := make([]dto.AlertaStockResponse, 0, len(alertas))
	for _, a := range alertas {
		data = append(data, dto.AlertaStockResponse{
			ProductoID:  a.ProductoID,
			Nombre:      a.Nombre,
			StockActual: a.StockActual,
			StockMinimo: a.StockMinimo,
			DetectadaAt: a.DetectadaAt.Format(time.RFC3339),
		})
	}
	return &dto.AlertasResponse{Fuente: fuente, Data: data}
}

func serialToResponse(u *model.UnidadSerial) dto.UnidadSerialResponse {
	r := dto.UnidadSerialResponse{
		ID:           u.ID.String(),
		ProductoID:   u.ProductoID.String(),
		CodigoSerial: u.CodigoSerial,
		Estado:       u.Estado,
		FechaIngreso: u.FechaIngreso.Format(time.RFC3339),
	}
	if u.VentaID != nil {
		v := u.VentaID.String()
		r.VentaID = &v
	}
	if u.GarantiaInicio != nil {
		g := u.GarantiaInicio.Format(time.RFC3339)
		r.GarantiaInicio = &g
	}
	if u.GarantiaFin != nil {
		g := u.GarantiaFin.Format(time.RFC3339)
		r.GarantiaFin = &g
	}
	return r
}

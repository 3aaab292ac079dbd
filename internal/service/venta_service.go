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
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VentaService interface {
	RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	EditarVenta(ctx context.Context, id uuid.UUID, req dto.EditarVentaRequest) (*dto.VentaResponse, error)
	AnularVenta(ctx context.Context, id uuid.UUID, motivo *string) error
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

// AlertaDispatcher receives low-stock notifications after a commit.
// *worker.Dispatcher satisfies it.
type AlertaDispatcher interface {
	EnqueueAlertaStock(ctx context.Context, payload worker.AlertaStock) error
}

type ventaService struct {
	repo         repository.VentaRepository
	productoRepo repository.ProductoRepository
	conciliador  *Conciliador
	dispatcher   AlertaDispatcher
}

func NewVentaService(
	repo repository.VentaRepository,
	productoRepo repository.ProductoRepository,
	conciliador *Conciliador,
	dispatcher AlertaDispatcher,
) VentaService {
	return &ventaService{
		repo:         repo,
		productoRepo: productoRepo,
		conciliador:  conciliador,
		dispatcher:   dispatcher,
	}
}

// runTx executes fn inside a GORM transaction. Any error rolls back every
// write made through tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
//   1. Idempotency pre-check (fast path)
//   2. Resolve and classify every line, check the discount (outside TX)
//   3. BEGIN TX: ticket number, header, apply lines in order, insert lines
//   4. COMMIT (a unique violation here is the race path of step 1)
//   5. (async) low-stock alerts

func (s *ventaService) RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, fmt.Errorf("%w: idempotency_key requerido", ErrItemInvalido)
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err == nil {
		log.Info().Str("idempotency_key", key).Str("venta_id", existing.ID.String()).Msg("venta duplicada rechazada")
		return nil, &DuplicadaError{VentaID: existing.ID}
	}
	if !repository.EsNoEncontrado(err) {
		return nil, err
	}

	items, subtotal, err := s.prepararItems(ctx, req.Items)
	if err != nil {
		return nil, s.logFallo("registrar", err)
	}
	total, err := totalConDescuento(subtotal, req.Descuento)
	if err != nil {
		return nil, s.logFallo("registrar", err)
	}

	var venta model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		numero, err := s.repo.NextNumeroTx(tx)
		if err != nil {
			return err
		}
		venta = model.Venta{
			Numero:         numero,
			UsuarioID:      usuarioID,
			Cliente:        strings.TrimSpace(req.Cliente),
			Subtotal:       subtotal,
			Descuento:      req.Descuento,
			Total:          total,
			Estado:         estadoOrDefault(req.Estado),
			IdempotencyKey: key,
		}
		if err := s.repo.CreateTx(tx, &venta); err != nil {
			return err
		}
		lineas, err := s.aplicarItems(tx, &venta, items)
		if err != nil {
			return err
		}
		if err := s.repo.CreateItemsTx(tx, lineas); err != nil {
			return err
		}
		venta.Items = lineas
		return nil
	})
	if txErr != nil {
		if repository.EsViolacionUnica(txErr) {
			return nil, s.logFallo("registrar", s.resolverDuplicada(ctx, key, txErr))
		}
		return nil, s.logFallo("registrar", txErr)
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Int("numero", venta.Numero).
		Int("items", len(venta.Items)).
		Str("total", venta.Total.StringFixed(2)).
		Msg("venta registrada")

	s.notificarAlertas(ctx, items)
	return ventaToResponse(&venta), nil
}

// resolverDuplicada tells an idempotency race apart from any other unique
// collision (e.g. ticket number) by looking the key up after the rollback.
func (s *ventaService) resolverDuplicada(ctx context.Context, key string, cause error) error {
	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err == nil {
		return &DuplicadaError{VentaID: existing.ID}
	}
	return fmt.Errorf("violación de unicidad al registrar venta: %w", cause)
}

// ── EditarVenta ───────────────────────────────────────────────────────────────
// Replace semantics: reverse every current line, delete them, apply the new
// set and rewrite the header, all in one transaction.

func (s *ventaService) EditarVenta(ctx context.Context, id uuid.UUID, req dto.EditarVentaRequest) (*dto.VentaResponse, error) {
	items, subtotal, err := s.prepararItems(ctx, req.Items)
	if err != nil {
		return nil, s.logFallo("editar", err)
	}
	total, err := totalConDescuento(subtotal, req.Descuento)
	if err != nil {
		return nil, s.logFallo("editar", err)
	}

	var venta *model.Venta
	var anteriores []model.VentaItem
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		v, err := s.repo.FindByIDForUpdateTx(tx, id)
		if repository.EsNoEncontrado(err) {
			return ErrVentaNoEncontrada
		}
		if err != nil {
			return err
		}
		if v.Estado == model.VentaAnulada {
			return ErrVentaAnulada
		}

		for i := range v.Items {
			if err := s.conciliador.Revertir(tx, v, &v.Items[i], model.MovimientoRestoreEdicion); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteItemsTx(tx, v.ID); err != nil {
			return err
		}
		anteriores = v.Items

		v.Cliente = strings.TrimSpace(req.Cliente)
		v.Estado = estadoOrDefault(req.Estado)
		v.Subtotal = subtotal
		v.Descuento = req.Descuento
		v.Total = total

		lineas, err := s.aplicarItems(tx, v, items)
		if err != nil {
			return err
		}
		if err := s.repo.CreateItemsTx(tx, lineas); err != nil {
			return err
		}
		if err := s.repo.UpdateHeaderTx(tx, v); err != nil {
			return err
		}
		v.Items = lineas
		venta = v
		return nil
	})
	if txErr != nil {
		return nil, s.logFallo("editar", txErr)
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Int("numero", venta.Numero).
		Int("items_anteriores", len(anteriores)).
		Int("items", len(venta.Items)).
		Str("total", venta.Total.StringFixed(2)).
		Msg("venta editada")

	s.notificarAlertas(ctx, items)
	s.notificarAlertasPorID(ctx, productosDe(anteriores))
	venta.UpdatedAt = time.Now()
	return ventaToResponse(venta), nil
}

// ── AnularVenta ───────────────────────────────────────────────────────────────

func (s *ventaService) AnularVenta(ctx context.Context, id uuid.UUID, motivo *string) error {
	var venta *model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		v, err := s.repo.FindByIDForUpdateTx(tx, id)
		if repository.EsNoEncontrado(err) {
			return ErrVentaNoEncontrada
		}
		if err != nil {
			return err
		}
		if v.Estado == model.VentaAnulada {
			return ErrVentaYaAnulada
		}

		for i := range v.Items {
			if err := s.conciliador.Revertir(tx, v, &v.Items[i], model.MovimientoRestoreAnulacion); err != nil {
				return err
			}
		}

		ok, err := s.repo.AnularTx(tx, v.ID, limpiarMotivo(motivo), time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrVentaYaAnulada
		}
		venta = v
		return nil
	})
	if txErr != nil {
		return s.logFallo("anular", txErr)
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Int("numero", venta.Numero).
		Int("items", len(venta.Items)).
		Msg("venta anulada")

	s.notificarAlertasPorID(ctx, productosDe(venta.Items))
	return nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if repository.EsNoEncontrado(err) {
		return nil, ErrVentaNoEncontrada
	}
	if err != nil {
		return nil, err
	}
	return ventaToResponse(v), nil
}

// ListVentas returns a paginated list of sales. Every filter is optional.
func (s *ventaService) ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	q := repository.VentaQuery{
		Estado:  filter.Estado,
		Cliente: strings.TrimSpace(filter.Cliente),
		Page:    filter.Page,
		Limit:   filter.Limit,
	}
	if filter.Desde != "" {
		d, err := time.ParseInLocation("2006-01-02", filter.Desde, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: desde debe tener formato YYYY-MM-DD", ErrFiltroInvalido)
		}
		q.Desde = &d
	}
	if filter.Hasta != "" {
		h, err := time.ParseInLocation("2006-01-02", filter.Hasta, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: hasta debe tener formato YYYY-MM-DD", ErrFiltroInvalido)
		}
		h = h.AddDate(0, 0, 1)
		q.Hasta = &h
	}
	if filter.UsuarioID != "" {
		uid, err := uuid.Parse(filter.UsuarioID)
		if err != nil {
			return nil, fmt.Errorf("%w: usuario_id", ErrFiltroInvalido)
		}
		q.UsuarioID = &uid
	}

	ventas, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	data := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		data = append(data, *ventaToResponse(&ventas[i]))
	}
	return &dto.VentaListResponse{
		Data:  data,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// prepararItems resolves the products of every line and classifies them.
// Returns the classified lines in submission order and their subtotal.
func (s *ventaService) prepararItems(ctx context.Context, reqItems []dto.ItemVentaRequest) ([]*ItemClasificado, decimal.Decimal, error) {
	if len(reqItems) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: la venta no tiene ítems", ErrItemInvalido)
	}

	ids := make([]uuid.UUID, 0, len(reqItems))
	for i, item := range reqItems {
		pid, err := uuid.Parse(item.ProductoID)
		if err != nil {
			return nil, decimal.Zero, itemInvalido(i, "producto_id inválido")
		}
		ids = append(ids, pid)
	}
	productos, err := s.productoRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]*ItemClasificado, 0, len(reqItems))
	subtotal := decimal.Zero
	for i, item := range reqItems {
		p, ok := productos[ids[i]]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductoNoEncontrado, item.ProductoID)
		}
		it, err := ClasificarItem(i, p, item.Cantidad, item.PrecioUnitario, item.DatosExtra)
		if err != nil {
			return nil, decimal.Zero, err
		}
		subtotal = subtotal.Add(it.Subtotal())
		items = append(items, it)
	}
	return items, subtotal, nil
}

func (s *ventaService) aplicarItems(tx *gorm.DB, venta *model.Venta, items []*ItemClasificado) ([]model.VentaItem, error) {
	lineas := make([]model.VentaItem, 0, len(items))
	for _, it := range items {
		costo, err := s.conciliador.Aplicar(tx, venta, it)
		if err != nil {
			return nil, err
		}
		lineas = append(lineas, model.VentaItem{
			VentaID:        venta.ID,
			ProductoID:     it.Producto.ID,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.Precio,
			CostoUnitario:  costo,
			Subtotal:       it.Subtotal(),
			DatosExtra:     it.Datos,
			Orden:          it.Posicion,
			Producto:       it.Producto,
		})
	}
	return lineas, nil
}

func totalConDescuento(subtotal, descuento decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.GreaterThan(maxImporte) {
		return decimal.Zero, fmt.Errorf("%w: el subtotal de la venta supera el máximo de %s", ErrItemInvalido, maxImporte)
	}
	if descuento.IsNegative() || !descuento.Equal(descuento.Round(2)) || descuento.GreaterThan(subtotal) {
		return decimal.Zero, fmt.Errorf("%w (descuento %s, subtotal %s)",
			ErrDescuentoInvalido, descuento.StringFixed(2), subtotal.StringFixed(2))
	}
	return subtotal.Sub(descuento), nil
}

func estadoOrDefault(estado string) string {
	if estado == model.VentaPendiente {
		return model.VentaPendiente
	}
	return model.VentaCompletada
}

func limpiarMotivo(motivo *string) *string {
	if motivo == nil {
		return nil
	}
	m := strings.TrimSpace(*motivo)
	if m == "" {
		return nil
	}
	return &m
}

// logFallo logs expected rejections at warn and anything else at error, then
// returns err unchanged.
func (s *ventaService) logFallo(op string, err error) error {
	if esErrorDeNegocio(err) {
		log.Warn().Str("op", op).Err(err).Msg("venta rechazada")
	} else {
		log.Error().Str("op", op).Err(err).Msg("error de integridad en venta")
	}
	return err
}

// notificarAlertas enqueues a low-stock job for every stock-tracked product
// left at or below its minimum by items.
func (s *ventaService) notificarAlertas(ctx context.Context, items []*ItemClasificado) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if it.Manejo == ManejoDiscreto || it.Manejo == ManejoFraccionSellado {
			ids = append(ids, it.Producto.ID)
		}
	}
	s.enviarAlertas(ctx, ids, false)
}

// notificarAlertasPorID is used after stock is given back: the job is sent
// even above the minimum so the worker can clear a stale alert.
func (s *ventaService) notificarAlertasPorID(ctx context.Context, ids []uuid.UUID) {
	s.enviarAlertas(ctx, ids, true)
}

func (s *ventaService) enviarAlertas(ctx context.Context, ids []uuid.UUID, restauracion bool) {
	if s.dispatcher == nil || len(ids) == 0 {
		return
	}
	productos, err := s.productoRepo.FindByIDs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("no se pudieron leer productos para alertas de stock")
		return
	}
	for _, p := range productos {
		if !p.ManejaStock() || p.RequiereSerial {
			continue
		}
		if p.StockActual > p.StockMinimo && !restauracion {
			continue
		}
		alerta := worker.AlertaStock{
			ProductoID:  p.ID.String(),
			Nombre:      p.Nombre,
			StockActual: p.StockActual,
			StockMinimo: p.StockMinimo,
			DetectadaAt: time.Now().UTC(),
		}
		if err := s.dispatcher.EnqueueAlertaStock(ctx, alerta); err != nil {
			log.Warn().Err(err).Str("producto_id", alerta.ProductoID).Msg("no se pudo encolar alerta de stock")
		}
	}
}

func productosDe(items []model.VentaItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductoID] {
			seen[it.ProductoID] = true
			ids = append(ids, it.ProductoID)
		}
	}
	return ids
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, 0, len(v.Items))
	for _, item := range v.Items {
		r := dto.ItemVentaResponse{
			ID:             item.ID.String(),
			ProductoID:     item.ProductoID.String(),
			Cantidad:       item.Cantidad,
			PrecioUnitario: item.PrecioUnitario,
			CostoUnitario:  item.CostoUnitario,
			Subtotal:       item.Subtotal,
			DatosExtra:     item.DatosExtra,
		}
		if item.Producto != nil {
			r.Producto = item.Producto.Nombre
			r.CodigoBarras = item.Producto.CodigoBarras
			r.UnidadMedida = item.Producto.UnidadMedida
		}
		if label, ok := item.DatosExtra[ExtraUnitLabelOverride].(string); ok && label != "" {
			r.UnidadMedida = label
		}
		if r.DatosExtra == nil {
			r.DatosExtra = map[string]interface{}{}
		}
		items = append(items, r)
	}
	resp := &dto.VentaResponse{
		ID:              v.ID.String(),
		Numero:          v.Numero,
		UsuarioID:       v.UsuarioID.String(),
		Cliente:         v.Cliente,
		Items:           items,
		Subtotal:        v.Subtotal,
		Descuento:       v.Descuento,
		Total:           v.Total,
		Estado:          v.Estado,
		MotivoAnulacion: v.MotivoAnulacion,
		CreatedAt:       v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       v.UpdatedAt.Format(time.RFC3339),
	}
	if v.AnuladaAt != nil {
		at := v.AnuladaAt.Format(time.RFC3339)
		resp.AnuladaAt = &at
	}
	return resp
}

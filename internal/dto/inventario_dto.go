package dto

import "github.com/shopspring/decimal"

// ─── Seriales ────────────────────────────────────────────────────────────────

type IngresarSerialesRequest struct {
	ProductoID string   `json:"producto_id" validate:"required,uuid"`
	Seriales   []string `json:"seriales"    validate:"required,min=1,max=500,dive,required,max=100"`
}

type UnidadSerialResponse struct {
	ID             string  `json:"id"`
	ProductoID     string  `json:"producto_id"`
	CodigoSerial   string  `json:"codigo_serial"`
	Estado         string  `json:"estado"`
	VentaID        *string `json:"venta_id"`
	FechaIngreso   string  `json:"fecha_ingreso"`
	GarantiaInicio *string `json:"garantia_inicio"`
	GarantiaFin    *string `json:"garantia_fin"`
}

// ─── Inventario parcial ──────────────────────────────────────────────────────

type ParcialFilter struct {
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	Todos      bool   `form:"todos"` // include deactivated remnants
}

type InventarioParcialResponse struct {
	ID               string          `json:"id"`
	ProductoID       string          `json:"producto_id"`
	Producto         string          `json:"producto"`
	UnidadMedida     string          `json:"unidad_medida"`
	Codigo           string          `json:"codigo"`
	CantidadRestante decimal.Decimal `json:"cantidad_restante"`
	Activo           bool            `json:"activo"`
	Sobregirado      bool            `json:"sobregirado"` // below zero after its opening sale was voided
	VentaOrigenID    *string         `json:"venta_origen_id"`
	CreatedAt        string          `json:"created_at"`
}

// ─── Movimientos ─────────────────────────────────────────────────────────────

type MovimientoFilter struct {
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	VentaID    string `form:"venta_id"    validate:"omitempty,uuid"`
	Tipo       string `form:"tipo"        validate:"omitempty,oneof=venta restore_anulacion restore_edicion"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type MovimientoStockResponse struct {
	ID            string  `json:"id"`
	ProductoID    string  `json:"producto_id"`
	Producto      string  `json:"producto"`
	Tipo          string  `json:"tipo"`
	Cantidad      int     `json:"cantidad"`
	StockAnterior int     `json:"stock_anterior"`
	StockNuevo    int     `json:"stock_nuevo"`
	Motivo        string  `json:"motivo"`
	ReferenciaID  *string `json:"referencia_id"`
	CreatedAt     string  `json:"created_at"`
}

type MovimientoListResponse struct {
	Data  []MovimientoStockResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}

// ─── Alertas ─────────────────────────────────────────────────────────────────

type AlertaStockResponse struct {
	ProductoID  string `json:"producto_id"`
	Nombre      string `json:"nombre"`
	StockActual int    `json:"stock_actual"`
	StockMinimo int    `json:"stock_minimo"`
	DetectadaAt string `json:"detectada_at"`
}

type AlertasResponse struct {
	Fuente string                `json:"fuente"` // cache | db
	Data   []AlertaStockResponse `json:"data"`
}

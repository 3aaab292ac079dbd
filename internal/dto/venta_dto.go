package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Desde     string `form:"desde"` // YYYY-MM-DD, inclusive
	Hasta     string `form:"hasta"` // YYYY-MM-DD, inclusive
	Estado    string `form:"estado" validate:"omitempty,oneof=completada pendiente anulada all"`
	Cliente   string `form:"cliente"`
	UsuarioID string `form:"usuario_id" validate:"omitempty,uuid"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemVentaRequest is one cart line. DatosExtra is an open map; the keys the
// server understands are serial_code, partial_remnant_id,
// free_text_description, warranty_months and unit_label_override.
type ItemVentaRequest struct {
	ProductoID     string                 `json:"producto_id"     validate:"required,uuid"`
	Cantidad       decimal.Decimal        `json:"cantidad"        validate:"gt=0"`
	PrecioUnitario decimal.Decimal        `json:"precio_unitario" validate:"min=0"`
	DatosExtra     map[string]interface{} `json:"datos_extra"`
}

type RegistrarVentaRequest struct {
	// IdempotencyKey is generated by the client once per checkout attempt
	// and reused on retries.
	IdempotencyKey string             `json:"idempotency_key" validate:"required,max=64"`
	Cliente        string             `json:"cliente"         validate:"max=120"`
	Estado         string             `json:"estado"          validate:"omitempty,oneof=completada pendiente"`
	Descuento      decimal.Decimal    `json:"descuento"       validate:"min=0"`
	Items          []ItemVentaRequest `json:"items"           validate:"required,min=1,dive"`
}

type EditarVentaRequest struct {
	Cliente   string             `json:"cliente"   validate:"max=120"`
	Estado    string             `json:"estado"    validate:"omitempty,oneof=completada pendiente"`
	Descuento decimal.Decimal    `json:"descuento" validate:"min=0"`
	Items     []ItemVentaRequest `json:"items"     validate:"required,min=1,dive"`
}

type AnularVentaRequest struct {
	Motivo *string `json:"motivo" validate:"omitempty,max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ID             string                 `json:"id"`
	ProductoID     string                 `json:"producto_id"`
	Producto       string                 `json:"producto"`
	CodigoBarras   string                 `json:"codigo_barras"`
	UnidadMedida   string                 `json:"unidad_medida"`
	Cantidad       decimal.Decimal        `json:"cantidad"`
	PrecioUnitario decimal.Decimal        `json:"precio_unitario"`
	CostoUnitario  decimal.Decimal        `json:"costo_unitario"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	DatosExtra     map[string]interface{} `json:"datos_extra"`
}

type VentaResponse struct {
	ID              string              `json:"id"`
	Numero          int                 `json:"numero"`
	UsuarioID       string              `json:"usuario_id"`
	Cliente         string              `json:"cliente"`
	Items           []ItemVentaResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Descuento       decimal.Decimal     `json:"descuento"`
	Total           decimal.Decimal     `json:"total"`
	Estado          string              `json:"estado"`
	MotivoAnulacion *string             `json:"motivo_anulacion,omitempty"`
	AnuladaAt       *string             `json:"anulada_at,omitempty"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

// DuplicadaResponse is the 409 body for a replayed idempotency key.
type DuplicadaResponse struct {
	Detail  string `json:"detail"`
	Code    string `json:"code"`
	VentaID string `json:"venta_id,omitempty"`
}

package handler

import (
	"net/http"

	"tallerfranco/internal/apierror"
	"tallerfranco/internal/dto"
	"tallerfranco/internal/model"
	"tallerfranco/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// IngresarSeriales godoc
// @Summary      Ingresar unidades con número de serie
// @Tags         inventario
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.IngresarSerialesRequest true "Producto y números de serie"
// @Success      201  {array}  dto.UnidadSerialResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/inventario/seriales [post]
func (h *InventarioHandler) IngresarSeriales(c *gin.Context) {
	var req dto.IngresarSerialesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.IngresarSeriales(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListarSeriales godoc
// @Summary      Listar unidades con número de serie de un producto
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Param        producto_id query string true  "UUID del producto"
// @Param        estado      query string false "disponible | vendido"
// @Success      200 {array} dto.UnidadSerialResponse
// @Router       /v1/inventario/seriales [get]
func (h *InventarioHandler) ListarSeriales(c *gin.Context) {
	pid, err := uuid.Parse(c.Query("producto_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewCode(apierror.CodeValidacion, "producto_id requerido"))
		return
	}
	estado := c.Query("estado")
	if estado != "" && estado != model.SerialDisponible && estado != model.SerialVendido {
		c.JSON(http.StatusBadRequest, apierror.NewCode(apierror.CodeValidacion, "estado invalido"))
		return
	}
	resp, err := h.svc.ListarSeriales(c.Request.Context(), pid, estado)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarParciales godoc
// @Summary      Listar envases abiertos
// @Description  Con todos=true incluye envases inactivos. Un envase con sobregirado=true
// @Description  tiene cantidad_restante negativa: la venta que lo abrió fue anulada
// @Description  después de que otras ventas consumieran de él.
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Param        producto_id query string false "UUID del producto"
// @Param        todos       query bool   false "Incluir envases agotados"
// @Success      200 {array} dto.InventarioParcialResponse
// @Router       /v1/inventario/parciales [get]
func (h *InventarioHandler) ListarParciales(c *gin.Context) {
	var filter dto.ParcialFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarParciales(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarMovimientos godoc
// @Summary      Listar movimientos de stock
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Param        producto_id query string false "UUID del producto"
// @Param        venta_id    query string false "UUID de la venta"
// @Param        tipo        query string false "venta | restore_anulacion | restore_edicion"
// @Param        page        query int    false "Página"
// @Param        limit       query int    false "Registros por página"
// @Success      200 {object} dto.MovimientoListResponse
// @Router       /v1/inventario/movimientos [get]
func (h *InventarioHandler) ListarMovimientos(c *gin.Context) {
	var filter dto.MovimientoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerAlertas godoc
// @Summary      Productos con stock bajo
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.AlertasResponse
// @Router       /v1/inventario/alertas [get]
func (h *InventarioHandler) ObtenerAlertas(c *gin.Context) {
	resp, err := h.svc.ObtenerAlertas(c.Request.Context())
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"tallerfranco/internal/apierror"
	"tallerfranco/internal/dto"
	"tallerfranco/internal/middleware"
	"tallerfranco/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report json/form names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewCode(apierror.CodeJSONInvalido, "JSON invalido: "+err.Error()))
		return false
	}
	return validar(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewCode(apierror.CodeValidacion, err.Error()))
		return false
	}
	return validar(c, req)
}

func validar(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.NewCode(apierror.CodeValidacion, err.Error()))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// fieldPath drops the root struct name: "RegistrarVentaRequest.items[0].cantidad" → "items[0].cantidad".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// responderError maps service errors to HTTP responses. Anything it does not
// recognise is an integrity failure: logged in full, answered generically.
func responderError(c *gin.Context, err error) {
	var dup *service.DuplicadaError
	if errors.As(err, &dup) {
		resp := dto.DuplicadaResponse{Detail: err.Error(), Code: apierror.CodeTransaccionDuplicada}
		if dup.VentaID != uuid.Nil {
			resp.VentaID = dup.VentaID.String()
		}
		c.JSON(http.StatusConflict, resp)
		return
	}

	status, code := clasificarError(err)
	if status == http.StatusInternalServerError {
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("error interno")
		c.JSON(status, apierror.NewCode(code, "Error interno del servidor"))
		return
	}
	c.JSON(status, apierror.NewCode(code, err.Error()))
}

func clasificarError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrVentaNoEncontrada):
		return http.StatusNotFound, apierror.CodeNoEncontrado
	case errors.Is(err, service.ErrProductoNoEncontrado):
		return http.StatusUnprocessableEntity, apierror.CodeNoEncontrado
	case errors.Is(err, service.ErrStockInsuficiente):
		return http.StatusConflict, apierror.CodeStockInsuficiente
	case errors.Is(err, service.ErrStockParcialInsuficiente):
		return http.StatusConflict, apierror.CodeParcialInsuficiente
	case errors.Is(err, service.ErrSerialNoDisponible):
		return http.StatusConflict, apierror.CodeSerialNoDisponible
	case errors.Is(err, service.ErrSerialDuplicado):
		return http.StatusConflict, apierror.CodeSerialDuplicado
	case errors.Is(err, service.ErrVentaYaAnulada):
		return http.StatusConflict, apierror.CodeYaAnulada
	case errors.Is(err, service.ErrVentaAnulada):
		return http.StatusConflict, apierror.CodeVentaAnulada
	case errors.Is(err, service.ErrTransaccionDuplicada):
		return http.StatusConflict, apierror.CodeTransaccionDuplicada
	case errors.Is(err, service.ErrSerialRequerido):
		return http.StatusUnprocessableEntity, apierror.CodeSerialRequerido
	case errors.Is(err, service.ErrDescuentoInvalido):
		return http.StatusUnprocessableEntity, apierror.CodeDescuentoInvalido
	case errors.Is(err, service.ErrItemInvalido):
		return http.StatusUnprocessableEntity, apierror.CodeValidacion
	case errors.Is(err, service.ErrFiltroInvalido):
		return http.StatusBadRequest, apierror.CodeValidacion
	}
	return http.StatusInternalServerError, apierror.CodeInterno
}

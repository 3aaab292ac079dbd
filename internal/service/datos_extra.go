package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Claves de datos_extra. Las del cliente se validan en ClasificarItem; las
// del servidor se escriben al aplicar el ítem y congelan lo necesario para
// revertirlo sin depender del catálogo actual.
const (
	ExtraSerialCode          = "serial_code"
	ExtraPartialRemnantID    = "partial_remnant_id"
	ExtraFreeTextDescription = "free_text_description"
	ExtraWarrantyMonths      = "warranty_months"
	ExtraUnitLabelOverride   = "unit_label_override"

	ExtraHandling          = "handling"
	ExtraCreatedRemnantID  = "created_remnant_id"
	ExtraCreatedRemnantQty = "created_remnant_qty"
	ExtraSealedContainers  = "sealed_containers"
	ExtraUnitsDeducted     = "units_deducted"
)

var clavesServidor = []string{
	ExtraHandling, ExtraCreatedRemnantID, ExtraCreatedRemnantQty,
	ExtraSealedContainers, ExtraUnitsDeducted,
}

// DatosExtra is the typed view of a line item's open extra-data map.
type DatosExtra struct {
	SerialCode          string `mapstructure:"serial_code"`
	PartialRemnantID    string `mapstructure:"partial_remnant_id"`
	FreeTextDescription string `mapstructure:"free_text_description"`
	WarrantyMonths      int    `mapstructure:"warranty_months"`
	UnitLabelOverride   string `mapstructure:"unit_label_override"`

	Handling          string `mapstructure:"handling"`
	CreatedRemnantID  string `mapstructure:"created_remnant_id"`
	CreatedRemnantQty string `mapstructure:"created_remnant_qty"`
	SealedContainers  int    `mapstructure:"sealed_containers"`
	UnitsDeducted     int    `mapstructure:"units_deducted"`
}

// RemanenteCreado returns the quantity recorded when the line opened a
// container, or zero.
func (d DatosExtra) RemanenteCreado() decimal.Decimal {
	if d.CreatedRemnantQty == "" {
		return decimal.Zero
	}
	q, err := decimal.NewFromString(d.CreatedRemnantQty)
	if err != nil {
		return decimal.Zero
	}
	return q
}

func trimStringHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}

// DecodificarDatosExtra decodes the recognized keys of m. Unknown keys are
// ignored; numbers arriving as JSON floats or strings are accepted.
func DecodificarDatosExtra(m map[string]interface{}) (DatosExtra, error) {
	var d DatosExtra
	if len(m) == 0 {
		return d, nil
	}
	cfg := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       trimStringHook(),
		Result:           &d,
		TagName:          "mapstructure",
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return d, err
	}
	if err := dec.Decode(m); err != nil {
		return d, fmt.Errorf("datos_extra: %w", err)
	}
	return d, nil
}

// datosCliente copies the client map dropping server-owned keys, so a
// payload can never forge reversal data.
func datosCliente(m map[string]interface{}) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	for _, k := range clavesServidor {
		delete(out, k)
	}
	return out
}

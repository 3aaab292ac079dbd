package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// HashAlertas holds one field per product currently at or below its minimum.
const HashAlertas = "alertas:stock"

// AlertaStock is both the job payload and the cached alert value.
type AlertaStock struct {
	ProductoID  string    `json:"producto_id"`
	Nombre      string    `json:"nombre"`
	StockActual int       `json:"stock_actual"`
	StockMinimo int       `json:"stock_minimo"`
	DetectadaAt time.Time `json:"detectada_at"`
}

func (a AlertaStock) Vigente() bool { return a.StockActual <= a.StockMinimo }

// NewAlertaStockHandler returns the handler for JobAlertaStock. It keeps
// HashAlertas in sync: products back above minimum are removed.
func NewAlertaStockHandler(rdb *redis.Client) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var a AlertaStock
		if err := json.Unmarshal(payload, &a); err != nil {
			return fmt.Errorf("%w: %v", ErrJobPermanente, err)
		}
		if a.ProductoID == "" {
			return fmt.Errorf("%w: producto_id vacío", ErrJobPermanente)
		}

		if !a.Vigente() {
			return rdb.HDel(ctx, HashAlertas, a.ProductoID).Err()
		}
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrJobPermanente, err)
		}
		if err := rdb.HSet(ctx, HashAlertas, a.ProductoID, data).Err(); err != nil {
			return err
		}
		log.Info().
			Str("producto_id", a.ProductoID).
			Int("stock_actual", a.StockActual).
			Int("stock_minimo", a.StockMinimo).
			Msg("alerta de stock bajo registrada")
		return nil
	}
}

// LeerAlertas returns the cached alerts ordered by product name.
func LeerAlertas(ctx context.Context, rdb *redis.Client) ([]AlertaStock, error) {
	raw, err := rdb.HGetAll(ctx, HashAlertas).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AlertaStock, 0, len(raw))
	for id, v := range raw {
		var a AlertaStock
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			log.Warn().Str("producto_id", id).Err(err).Msg("alerta ilegible en cache, ignorada")
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

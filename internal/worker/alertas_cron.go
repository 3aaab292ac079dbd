package worker

// alertas_cron.go
// Periodic sweep that rebuilds alertas:stock from the database, so alerts for
// products restocked outside the sale flow eventually disappear. A redislock
// keeps concurrent instances from sweeping at the same time.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	lockAlertasSweep = "lock:alertas_sweep"
	lockAlertasTTL   = time.Minute
)

// FuenteAlertas lists every product currently at or below its minimum.
type FuenteAlertas func(ctx context.Context) ([]AlertaStock, error)

// StartAlertasCron registers the sweep under spec (robfig syntax, e.g.
// "@every 15m") and starts the scheduler. The caller stops it on shutdown.
func StartAlertasCron(ctx context.Context, spec string, rdb *redis.Client, fuente FuenteAlertas) (*cron.Cron, error) {
	locker := redislock.New(rdb)
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := SweepAlertas(ctx, rdb, locker, fuente); err != nil {
			log.Error().Err(err).Msg("alertas_cron: sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Info().Str("spec", spec).Msg("alertas_cron: started")
	return c, nil
}

// SweepAlertas rebuilds HashAlertas. It returns nil without doing anything
// when another instance holds the lock.
func SweepAlertas(ctx context.Context, rdb *redis.Client, locker *redislock.Client, fuente FuenteAlertas) error {
	lock, err := locker.Obtain(ctx, lockAlertasSweep, lockAlertasTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Debug().Msg("alertas_cron: sweep already running elsewhere, skipping")
		return nil
	} else if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	alertas, err := fuente(ctx)
	if err != nil {
		return err
	}

	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, HashAlertas)
		for _, a := range alertas {
			data, err := json.Marshal(a)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, HashAlertas, a.ProductoID, data)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("alertas", len(alertas)).Msg("alertas_cron: sweep done")
	return nil
}

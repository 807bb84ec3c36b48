package runner

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/config"
	"github.com/fxnlabs/zebench/internal/metrics"
	"github.com/fxnlabs/zebench/internal/store"
)

// Module provides a *Runner. The graph needs a *config.Config, a
// *zap.Logger and a bench.Env supplied by the caller.
var Module = fx.Options(
	fx.Provide(
		newStore,
		newCollectors,
		New,
	),
)

func newStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.Runner.Database, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func newCollectors() *metrics.Collectors {
	return metrics.NewCollectors(prometheus.NewRegistry())
}

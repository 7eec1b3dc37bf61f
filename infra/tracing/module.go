package tracing

import (
	"context"

	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

// Service names the process in exported spans.
type Service struct {
	Name      string
	Namespace string
	Version   string
}

var Module = fx.Module("tracing",
	// [LIFECYCLE] Registered first so pending spans are flushed last.
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, svc Service) error {
		shutdown, err := Setup(context.Background(), cfg.OTel, svc)
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{OnStop: shutdown})
		return nil
	}),
)

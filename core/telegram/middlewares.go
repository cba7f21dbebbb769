package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/flowbot/core/config"
	"github.com/m3rciful/flowbot/core/store"
	"github.com/m3rciful/flowbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customizes DefaultMiddlewares.
type MiddlewareOptions struct {
	// OnLimited answers updates dropped by the rate limiter.
	OnLimited tele.HandlerFunc
	// Users registers every sender before routing, so flows can resolve them.
	Users    store.Users
	Identity middleware.IdentityOptions
}

// DefaultMiddlewares builds the shared middleware chain: recover, rate limit,
// receipt logging, identity registration and message counters.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	if opts.Users != nil {
		mws = append(mws, Middleware{Name: "identity", Use: middleware.Identity(opts.Users, opts.Identity)})
	}
	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
	return mws
}

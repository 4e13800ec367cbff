// Package otp is the one-time-passcode gateway module: it issues email
// challenges and verifies the codes users submit.
package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oncosight/scangate/internal/otp/inbound"
	"github.com/oncosight/scangate/internal/otp/outbound/audit"
	"github.com/oncosight/scangate/internal/otp/outbound/mailer"
	"github.com/oncosight/scangate/internal/otp/outbound/store"
	"github.com/oncosight/scangate/internal/otp/usecase"
	"github.com/oncosight/scangate/internal/pkg/clock"
	"github.com/oncosight/scangate/internal/pkg/codegen"
	"github.com/oncosight/scangate/internal/pkg/config"
	"github.com/oncosight/scangate/internal/pkg/goroutine"
	"github.com/oncosight/scangate/internal/pkg/hash"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/jwt"
	"github.com/oncosight/scangate/internal/pkg/mail"
	"github.com/oncosight/scangate/internal/pkg/messaging"
	"github.com/oncosight/scangate/internal/pkg/ratelimit"
	"github.com/oncosight/scangate/internal/pkg/router"
	"github.com/oncosight/scangate/internal/pkg/uid"
	"github.com/oncosight/scangate/internal/pkg/validator"
	"github.com/redis/go-redis/v9"
)

type Dependency struct {
	Ctx        context.Context
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	CodeGen    codegen.Generator          `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`

	// CacheConn backs the redis store and limiter drivers; optional when
	// both run in memory.
	CacheConn redis.UniversalClient
	// DBConn backs the audit trail; optional.
	DBConn *pgxpool.Pool
	// Messaging backs the audit event stream; optional.
	Messaging messaging.Messaging
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	st, err := newStore(dep)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(dep)
	if err != nil {
		return err
	}

	ml := mailer.NewEmail(dep.Mail, dep.Instrument, dep.Config.GetSecond("mail.send_timeout_seconds"))

	uc := usecase.NewOTP(usecase.Dependency{
		Store:      st,
		Limiter:    limiter,
		Mailer:     ml,
		Audit:      newAudit(dep),
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		CodeGen:    dep.CodeGen,
		Hasher:     dep.HMAC,
		JWT:        dep.JWT,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

func newStore(dep Dependency) (store.Store, error) {
	driver := dep.Config.GetString("modules.otp.store.driver")
	switch driver {
	case "", "memory":
		st := store.NewMemory(dep.Clock)
		startSweeper(dep, st.Sweep)
		return st, nil
	case "redis":
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("otp: store driver %q requires a redis connection", driver)
		}
		return store.NewRedis(dep.CacheConn, dep.Config.GetString("modules.otp.store.key_prefix")), nil
	default:
		return nil, fmt.Errorf("otp: unknown store driver %q", driver)
	}
}

func newLimiter(dep Dependency) (ratelimit.Limiter, error) {
	limit := dep.Config.GetInt64("modules.otp.rate_limit.max_requests")
	if limit <= 0 {
		limit = 10
	}
	window := dep.Config.GetMinute("modules.otp.rate_limit.window_minutes")
	if window <= 0 {
		window = 15 * time.Minute
	}

	driver := dep.Config.GetString("modules.otp.rate_limit.driver")
	switch driver {
	case "", "memory":
		lim, err := ratelimit.NewMemory(limit, window, dep.Clock)
		if err != nil {
			return nil, err
		}
		startSweeper(dep, lim.Sweep)
		return lim, nil
	case "redis":
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("otp: rate limit driver %q requires a redis connection", driver)
		}
		return ratelimit.NewRedis(dep.CacheConn, dep.Config.GetString("modules.otp.rate_limit.key_prefix"), limit, window)
	default:
		return nil, fmt.Errorf("otp: unknown rate limit driver %q", driver)
	}
}

func newAudit(dep Dependency) audit.Recorder {
	var recorders []audit.Recorder

	if dep.DBConn != nil && dep.Config.GetBool("modules.otp.audit.database") {
		recorders = append(recorders, audit.NewDB(dep.DBConn, dep.Instrument))
	}
	if dep.Messaging != nil && dep.Config.GetBool("modules.otp.audit.stream") {
		recorders = append(recorders, audit.NewStream(dep.Messaging, dep.Config.GetString("modules.otp.audit.topic"), dep.Instrument))
	}

	if len(recorders) == 0 {
		return audit.Noop{}
	}

	return audit.NewAsync(audit.NewMulti(recorders...), dep.Goroutine)
}

// startSweeper periodically prunes expired in-memory state. It only runs when
// sweeping is enabled and the module received a lifecycle context.
func startSweeper(dep Dependency, sweep func(ctx context.Context) (int, error)) {
	if dep.Ctx == nil || !dep.Config.GetBool("modules.otp.sweep.enabled") {
		return
	}

	interval := dep.Config.GetMinute("modules.otp.sweep.interval_minutes")
	if interval <= 0 {
		interval = time.Minute
	}

	dep.Goroutine.Go(dep.Ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if dropped, err := sweep(ctx); err == nil && dropped > 0 {
					slog.InfoContext(ctx, "swept expired otp state", "dropped", dropped)
				}
			}
		}
	})
}

package app

import (
	"log/slog"
	"os"

	"github.com/oncosight/scangate/internal/otp"
	"github.com/oncosight/scangate/internal/reports"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.otp.enabled") {
		if err := otp.New(otp.Dependency{
			Ctx:        a.ctx,
			Config:     a.config,
			Instrument: a.ins,
			Router:     a.router,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			UID:        a.uid,
			Clock:      a.clock,
			CodeGen:    a.codegen,
			HMAC:       a.hmac,
			JWT:        a.jwt,
			Mail:       a.mail,
			CacheConn:  a.cacheConn,
			DBConn:     a.dbConn,
			Messaging:  a.messaging,
		}); err != nil {
			slog.Error("failed to init module otp", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.reports.enabled") {
		if err := reports.New(reports.Dependency{
			Config:     a.config,
			Instrument: a.ins,
			Router:     a.router,
			Validator:  a.validator,
			UID:        a.uid,
			Clock:      a.clock,
			Mail:       a.mail,
			Messaging:  a.messaging,
		}); err != nil {
			slog.Error("failed to init module reports", "error", err)
			os.Exit(1)
		}
	}
}

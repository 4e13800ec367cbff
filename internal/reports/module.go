// Package reports delivers scan analysis summaries to referring doctors.
// Report delivery sits behind the session tokens the otp module issues.
package reports

import (
	"github.com/oncosight/scangate/internal/pkg/clock"
	"github.com/oncosight/scangate/internal/pkg/config"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/mail"
	"github.com/oncosight/scangate/internal/pkg/messaging"
	"github.com/oncosight/scangate/internal/pkg/router"
	"github.com/oncosight/scangate/internal/pkg/uid"
	"github.com/oncosight/scangate/internal/pkg/validator"
	"github.com/oncosight/scangate/internal/reports/inbound"
	"github.com/oncosight/scangate/internal/reports/usecase"
)

type Dependency struct {
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`

	// Messaging announces sent reports; optional.
	Messaging messaging.Messaging
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	var publisher messaging.Publisher
	if dep.Messaging != nil {
		publisher = dep.Messaging
	}

	uc := usecase.NewReports(usecase.Dependency{
		RepoMail:   dep.Mail,
		Publisher:  publisher,
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

package app

import (
	"context"
	"errors"

	"github.com/shandysiswandi/otpgate/internal/dskpp"
	"github.com/shandysiswandi/otpgate/internal/oath"
)

var errDSKPPNeedsOath = errors.New("modules.dskpp needs modules.oath enabled")

func (a *App) initModules() {
	if a.config.GetBool("modules.oath.enabled") {
		uc, err := oath.New(a.ctx, oath.Dependency{
			DBConn:      a.dbConn,
			Sealer:      a.sealer,
			Goroutine:   a.goroutine,
			Router:      a.router,
			Idempotency: a.idemp,
			Messaging:   a.messaging,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			OID:         a.oid,
			Signer:      a.signer,
			OCRA:        a.ocra,
			Clock:       a.clock,
			Validator:   a.validator,
		})
		if err != nil {
			fatal("failed to init module oath", err)
		}

		a.oath = uc
		// registered last so expiry timers stop before the store closes
		a.onClose("oath", func(context.Context) error { return uc.Close() })
	}

	if !a.config.GetBool("modules.dskpp.enabled") {
		return
	}
	if a.oath == nil {
		fatal("failed to init module dskpp", errDSKPPNeedsOath)
	}

	err := dskpp.New(dskpp.Dependency{
		Router:       a.router,
		Config:       a.config,
		Instrument:   a.ins,
		Validator:    a.validator,
		Decrypter:    a.decrypter,
		Deriver:      a.keyDeriver,
		Provisioning: a.oath,
	})
	if err != nil {
		fatal("failed to init module dskpp", err)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mauriceling/serebo/internal/audit"
	"github.com/mauriceling/serebo/internal/config"
	"github.com/mauriceling/serebo/internal/ledger"
	"github.com/mauriceling/serebo/internal/notary"
	"github.com/mauriceling/serebo/internal/store"
	"github.com/rs/zerolog"
)

// run wires up one blackboxd instance and blocks until shutdown
// receives a signal. It is factored out of main so tests can drive it
// with a synthetic shutdown channel instead of the real OS signal one.
func run(logger zerolog.Logger, shutdown <-chan os.Signal) error {
	cfg := config.Load()
	logger.Info().Str("blackboxPath", cfg.BlackboxPath).Str("notaryURL", cfg.NotaryURL).Msg("starting blackboxd")

	s, err := store.Open(cfg.BlackboxPath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	blackboxID, err := s.Metadata(store.MetaBlackboxID)
	if err != nil {
		return err
	}
	logger.Info().Str("blackboxID", blackboxID).Msg("black box opened")

	l := ledger.New(s, logger)
	a := audit.New(s, logger)
	n := notary.NewClient(cfg.NotaryURL, s, l, logger)

	if _, err := l.SystemRecord(context.Background()); err != nil {
		logger.Error().Err(err).Msg("startup system record failed")
	}

	ticker := time.NewTicker(cfg.SelfSignInterval)
	defer ticker.Stop()

	logger.Info().Msg("blackboxd running; press Ctrl+C to stop")
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

			if _, _, err := l.SelfSign(ctx); err != nil {
				logger.Error().Err(err).Msg("periodic self-sign failed")
			} else {
				logger.Info().Msg("periodic self-sign committed")
			}

			if regs, err := l.ViewRegistrations(ctx); err != nil {
				logger.Error().Err(err).Msg("periodic registration lookup failed")
			} else if len(regs) > 0 {
				reg := regs[0]
				if _, err := n.NotarizeSereboBB(ctx, blackboxID, reg.NotaryAuthorization); err != nil {
					logger.Error().Err(err).Str("alias", reg.Alias).Msg("periodic notarization failed")
				} else {
					logger.Info().Str("alias", reg.Alias).Msg("periodic notarization committed")
				}
			}

			report, err := a.AuditCount(ctx)
			cancel()
			if err != nil {
				logger.Error().Err(err).Msg("periodic audit failed")
			} else if !report.Passed() {
				logger.Error().Int("mismatches", len(report.Mismatches)).Msg("periodic audit found a discrepancy")
			}

		case sig := <-shutdown:
			logger.Info().Str("signal", sig.String()).Msg("shutting down blackboxd")
			return nil
		}
	}
}

func main() {
	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	if err := run(logger, shutdown); err != nil {
		logger.Fatal().Err(err).Msg("blackboxd exited with error")
	}
}

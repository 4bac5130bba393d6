// Package app assembles claimflow from configuration: stores, services,
// workflow subscribers, the outbox relay and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"claimflow/api"
	"claimflow/claim"
	"claimflow/config"
	"claimflow/db"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/outbox"
	"claimflow/tax"
	"claimflow/verification"
	"claimflow/workflow"
)

type App struct {
	Config        config.Config
	Log           logrus.FieldLogger
	Pool          *pgxpool.Pool
	Claims        *claim.Service
	Workflow      *workflow.Workflow
	Verifications *verification.Coordinator
	Taxes         *tax.Calculator
	Employers     *employer.Service
	Disputes      *dispute.Service
	Outbox        outbox.Store
	Relay         *outbox.Relay
	Server        *api.Server
}

type stores struct {
	claims        claim.Store
	verifications verification.Store
	taxes         tax.Store
	employers     employer.ProfileStore
	disputes      dispute.Repository
	outbox        outbox.Store
	tx            db.Transactor
}

// Build wires every component. The caller must Close the returned App.
func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{Config: cfg, Log: log}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	a.Outbox = st.outbox
	queue := outbox.NewQueue(st.outbox)
	source := cfg.Notify.SourceSystem

	a.Claims = claim.NewService(st.claims, queue, log).WithTransactor(st.tx).WithSourceSystem(source)
	a.Workflow = workflow.New(st.claims, queue, log).WithTransactor(st.tx).WithSourceSystem(source)
	a.Employers = employer.NewService(st.employers)
	a.Disputes = dispute.NewService(st.disputes)
	a.Verifications = verification.NewCoordinator(st.verifications, a.Workflow, queue, log).
		WithEmployers(a.Employers).
		WithDisputes(a.Disputes).
		WithSLA(cfg.Verification.SLA).
		WithAutoRequest(cfg.Workflow.AutoRequestVerification)
	a.Taxes = tax.NewCalculator(st.taxes, a.Workflow, queue, log).
		WithWageSource(a.Verifications).
		WithCalculatedBy(cfg.Tax.CalculatedBy).
		WithAutoCalculate(cfg.Workflow.AutoCalculateTax)

	a.Workflow.Subscribe(a.Verifications.OnStatusChanged)
	a.Workflow.Subscribe(a.Taxes.OnStatusChanged)

	if err := a.seed(ctx); err != nil {
		a.Close()
		return nil, err
	}

	transport := outbox.NewHTTPTransport(&http.Client{Timeout: cfg.Notify.Timeout}, cfg.Notify.Routes(), source, log)
	a.Relay = outbox.NewRelay(st.outbox, transport, outbox.RelayConfig{
		Workers:        cfg.Outbox.Workers,
		BatchSize:      cfg.Outbox.BatchSize,
		PollInterval:   cfg.Outbox.PollInterval,
		Lease:          cfg.Outbox.Lease,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		InitialBackoff: cfg.Outbox.InitialBackoff,
		MaxBackoff:     cfg.Outbox.MaxBackoff,
	}, log)

	a.Server = api.NewServer(api.Services{
		Claims:        a.Claims,
		Workflow:      a.Workflow,
		Verifications: a.Verifications,
		Taxes:         a.Taxes,
		Employers:     a.Employers,
		Disputes:      a.Disputes,
	}, log)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.Config.Store.Driver != "postgres" {
		return stores{
			claims:        claim.NewMemoryStore(),
			verifications: verification.NewMemoryStore(),
			taxes:         tax.NewMemoryStore(),
			employers:     employer.NewMemoryDirectory(),
			disputes:      dispute.NewMemoryRepository(),
			outbox:        outbox.NewMemoryStore(),
			tx:            db.NewMemoryTransactor(),
		}, nil
	}

	pool, err := db.NewPool(ctx, a.Config.Database.URL, db.PoolOptions{
		MaxConns:     a.Config.Database.MaxConns,
		ConnectTries: a.Config.Database.ConnectTries,
	})
	if err != nil {
		return stores{}, err
	}
	a.Pool = pool
	if a.Config.Database.ApplySchema {
		if err := db.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
	}
	return stores{
		claims:        claim.NewRepository(pool),
		verifications: verification.NewRepository(pool),
		taxes:         tax.NewRepository(pool),
		employers:     employer.NewRepository(pool),
		disputes:      dispute.NewRepository(pool),
		outbox:        outbox.NewRepository(pool),
		tx:            db.NewTransactor(pool),
	}, nil
}

// seed loads the employer directory and makes sure a tax rate exists.
func (a *App) seed(ctx context.Context) error {
	profiles := employer.DefaultProfiles()
	if path := a.Config.Employers.File; path != "" {
		loaded, err := employer.LoadSeed(path)
		if err != nil {
			return err
		}
		profiles = loaded
	}
	if err := a.Employers.Seed(ctx, profiles); err != nil {
		return err
	}

	state, federal, err := a.Config.Tax.DefaultRates()
	if err != nil {
		return err
	}
	if _, err := a.Taxes.EnsureDefaultRate(ctx, state, federal); err != nil {
		return fmt.Errorf("app: seed tax rate: %w", err)
	}
	return nil
}

// RunSweeper re-notifies overdue verification requests every interval until ctx ends.
func (a *App) RunSweeper(ctx context.Context) error {
	interval := a.Config.Verification.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := a.Verifications.SweepOverdue(ctx); err != nil {
			a.Log.WithError(err).Warn("verification sweep failed")
		} else if n > 0 {
			a.Log.WithField("renotified", n).Info("verification sweep finished")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Serve runs the HTTP server, the outbox relay and the sweeper until ctx ends
// or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return a.Relay.Run(ctx) })
	g.Go(func() error { return a.RunSweeper(ctx) })
	return g.Wait()
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

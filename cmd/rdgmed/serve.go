package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/config"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/mediator"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/provider"
	"github.com/coolbeans/rdgmed/pkg/server"
)

// runner is anything serve can run until interrupted.
type runner interface {
	Run(ctx context.Context) error
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mediator, the provider, or both",
	}

	cmd.PersistentFlags().String("mediator-addr", "", "Mediator listen address")
	cmd.PersistentFlags().String("provider-addr", "", "Provider listen address")
	cmd.PersistentFlags().String("provider-url", "", "Default provider URL offered by the mediator")
	cmd.PersistentFlags().String("catalog", "", "Provider catalog Turtle file (default: generated sample)")
	cmd.PersistentFlags().Bool("watch", false, "Reload the catalog file when it changes")

	for _, mode := range []struct {
		name, short string
		mediator    bool
		provider    bool
	}{
		{"mediator", "Run the mediator web service", true, false},
		{"provider", "Run the cottage provider service", false, true},
		{"all", "Run provider and mediator in one process", true, true},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   mode.name,
			Short: mode.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd, mode.mediator, mode.provider)
			},
		})
	}
	return cmd
}

func serveOverrides(cmd *cobra.Command) *config.Config {
	var o config.Config
	o.Mediator.Addr, _ = cmd.Flags().GetString("mediator-addr")
	o.Mediator.ProviderURL, _ = cmd.Flags().GetString("provider-url")
	o.Provider.Addr, _ = cmd.Flags().GetString("provider-addr")
	o.Provider.Catalog, _ = cmd.Flags().GetString("catalog")
	o.Provider.Watch, _ = cmd.Flags().GetBool("watch")
	return &o
}

func serve(cmd *cobra.Command, withMediator, withProvider bool) error {
	cfg, err := loadConfig(cmd, serveOverrides(cmd))
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	m := metrics.New()

	var runners []runner
	if withProvider {
		rs, err := providerRunners(cfg, log, m)
		if err != nil {
			return err
		}
		runners = append(runners, rs...)
	}
	if withMediator {
		r, err := mediatorRunner(cfg, log, m)
		if err != nil {
			return err
		}
		runners = append(runners, r)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}

func providerRunners(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) ([]runner, error) {
	ns := namespaces(cfg)

	catalog, err := loadProviderCatalog(cfg)
	if err != nil {
		return nil, err
	}
	m.CatalogOfferings.Set(float64(catalog.Len()))
	snapshot := provider.NewSnapshot(catalog)

	opts := []provider.Option{provider.WithLogger(log), provider.WithMetrics(m)}
	if cfg.Provider.RDG != "" {
		rdg, err := readGraphFile(cfg.Provider.RDG)
		if err != nil {
			return nil, fmt.Errorf("loading provider template: %w", err)
		}
		opts = append(opts, provider.WithRDG(rdg))
	}
	svc := provider.NewService(ns, snapshot, opts...)

	log.Info().
		Int("offerings", catalog.Len()).
		Str("catalog", cfg.Provider.Catalog).
		Msg("provider catalog loaded")

	runners := []runner{
		server.New("provider", cfg.Provider.Addr, server.NewProviderHandler(svc, m, log), log),
	}
	if cfg.Provider.Watch {
		runners = append(runners, provider.NewCatalogWatcher(cfg.Provider.Catalog, ns, snapshot, log, m))
	}
	return runners, nil
}

// loadProviderCatalog reads the configured catalog file or, without one,
// generates the sample catalog.
func loadProviderCatalog(cfg *config.Config) (*provider.Catalog, error) {
	ns := namespaces(cfg)
	if cfg.Provider.Catalog != "" {
		catalog, err := provider.LoadCatalogFile(cfg.Provider.Catalog, ns)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		return catalog, nil
	}

	opts := provider.DefaultGenerateOptions()
	opts.Count = cfg.Provider.SampleSize
	opts.Seed = uint64(cfg.Provider.SampleSeed)
	return provider.NewCatalog(provider.GenerateCatalog(ns, opts), ns)
}

func mediatorRunner(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (runner, error) {
	svc, err := newMediatorService(cfg, log, m)
	if err != nil {
		return nil, err
	}
	return server.New("mediator", cfg.Mediator.Addr, server.NewMediatorHandler(svc, m, log), log), nil
}

func newMediatorService(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*mediator.Service, error) {
	ns := namespaces(cfg)
	client := mediator.NewClient(cfg.Mediator.RequestTimeout,
		mediator.WithClientLogger(log),
		mediator.WithClientMetrics(m),
	)

	opts := []mediator.Option{
		mediator.WithProviderURL(cfg.Mediator.ProviderURL),
		mediator.WithPersister(align.NewPersister(cfg.Mediator.AlignmentDir)),
		mediator.WithLogger(log),
		mediator.WithMetrics(m),
	}
	if cfg.Mediator.ReferenceRDG != "" {
		reference, err := readGraphFile(cfg.Mediator.ReferenceRDG)
		if err != nil {
			return nil, fmt.Errorf("loading reference template: %w", err)
		}
		opts = append(opts, mediator.WithReference(reference))
	}
	return mediator.NewService(ns, client, opts...), nil
}

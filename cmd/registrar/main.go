package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"registrar/engine/actors"
	"registrar/engine/library"
	"registrar/engine/metrics"
	"registrar/messaging/adapters"
	"registrar/messaging/comms"
	"registrar/messaging/connector"
	"registrar/messaging/eventlog"
	"registrar/messaging/relays"
	"registrar/messaging/verifier"
	"registrar/state/identity"
)

func main() {
	// Various aspects of this application require global and local settings. To keep things
	// clean and tidy we put these settings in a Viper configuration.
	conf := viper.New()
	if err := actors.InitConfig(conf); err != nil {
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	library.SetLogLevel(conf.GetInt("logLevel"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, conf); err != nil {
		library.LogCLI(err.Error(), 0)
		stop()
		os.Exit(1)
	}
	library.LogCLI("Registrar has shut down", 4)
}

func run(ctx context.Context, conf *viper.Viper) error {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	db, err := actors.OpenDatabase(ctx, conf)
	if err != nil {
		return err
	}
	defer db.Close()

	bus := comms.New()
	connectorEndpoint, err := bus.Register(library.ReservedConnector)
	if err != nil {
		return err
	}
	emitterEndpoint, err := bus.Register(library.ReservedEmitter)
	if err != nil {
		return err
	}

	events, closeEvents, err := eventPublisher(conf)
	if err != nil {
		return err
	}
	defer closeEvents()

	policy, ok := identity.MergePolicyByName(conf.GetString("registry.mergePolicy"))
	if !ok {
		return errors.New("registry.mergePolicy must be prefer_incoming or legacy")
	}
	registry, err := identity.New(ctx, db, bus,
		identity.WithMergePolicy(policy),
		identity.WithChallengeTTL(conf.GetDuration("registry.challengeTTL"), conf.GetDuration("registry.sweepInterval")),
		identity.WithEvents(events, conf.GetDuration("eventlog.ttl")),
		identity.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	bridge, err := connector.New(connector.Config{
		URL:        conf.GetString("watcher.url"),
		Origin:     conf.GetString("watcher.origin"),
		MaxBackoff: conf.GetDuration("watcher.reconnectMaxInterval"),
	}, connectorEndpoint, m)
	if err != nil {
		return err
	}
	library.LogCLI("Connected to watcher at "+conf.GetString("watcher.url"), 4)

	check := verifier.New(emitterEndpoint, conf.GetInt("verifier.queueSize"), m)
	runners, err := adapterRunners(conf, bus, check, m)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(ctx) })
	g.Go(func() error { return bridge.Start(ctx) })
	g.Go(func() error { return check.Run(ctx) })
	for _, r := range runners {
		g.Go(func() error { return r.Run(ctx) })
	}
	if addr := conf.GetString("metrics.addr"); addr != "" {
		srv := metrics.NewServer(addr, metrics.Router(promRegistry, bridge.Healthy))
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func eventPublisher(conf *viper.Viper) (eventlog.Publisher, func(), error) {
	sinks := eventlog.Multi{eventlog.LogSink{Level: 3}}
	brokers := conf.GetStringSlice("eventlog.brokers")
	if len(brokers) == 0 {
		return sinks, func() {}, nil
	}
	kafka, err := eventlog.NewKafkaSink(brokers, conf.GetString("eventlog.topic"))
	if err != nil {
		return nil, nil, err
	}
	return append(sinks, kafka), kafka.Close, nil
}

func adapterRunners(conf *viper.Viper, bus *comms.Bus, sink adapters.Sink, m *metrics.Metrics) ([]*adapters.Runner, error) {
	cfg := adapters.RunnerConfig{
		PollInterval:     conf.GetDuration("adapters.pollInterval"),
		DeliveryAttempts: conf.GetInt("adapters.deliveryAttempts"),
	}
	var runners []*adapters.Runner
	if conf.GetBool("adapters.nostr.enabled") {
		var wallet relays.Wallet
		var err error
		if sk := conf.GetString("adapters.nostr.privateKey"); sk != "" {
			wallet, err = relays.WalletFromKey(sk)
		} else {
			wallet, err = relays.LoadOrCreateWallet(actors.InRootDir(conf, "adapters.nostr.walletFile"))
		}
		if err != nil {
			return nil, err
		}
		adapter, err := relays.New(relays.Config{Relays: conf.GetStringSlice("adapters.nostr.relays"), Wallet: wallet})
		if err != nil {
			return nil, err
		}
		ep, err := bus.Register(adapter.AccountType())
		if err != nil {
			return nil, err
		}
		runners = append(runners, adapters.NewRunner(adapter, ep, sink, cfg, m))
		library.LogCLI("nostr adapter publishing as "+wallet.PublicKey, 4)
	}
	return runners, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"main/internal/cache"
	"main/internal/config"
	"main/internal/fanout"
	"main/internal/feed"
	"main/internal/feed/wsfeed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/server"
	"main/internal/store"
	"main/internal/stream"
	"main/internal/symbols"
	"main/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming pipeline and API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Profile.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "streamer",
			ServerAddress:   cfg.Profile.Server,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start profiler")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sweeper := store.NewSweeper(st, cfg.Store.SweepInterval, cfg.Store.RetentionDays)
	go sweeper.Run(ctx)

	registry := fanout.NewRegistry()
	broadcaster := fanout.NewBroadcaster(registry, cfg.Fanout.Period, cfg.Fanout.MinSendInterval)
	go broadcaster.Run(ctx)

	var (
		latest *cache.LatestPrice
		sinks  []stream.TickSink
	)
	if cfg.Cache.Enabled {
		client, err := conn.NewRedis(ctx, conn.RedisOption{
			Host:     cfg.Cache.Host,
			Port:     cfg.Cache.Port,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer client.Close()
		latest = cache.NewLatestPrice(client, cfg.Cache.TTL)
		sinks = append(sinks, latest)
	}

	source := wsfeed.New(cfg.Feed.WSUrl)
	creds := feed.Credentials{
		APIKey:     cfg.Feed.APIKey,
		AuthToken:  cfg.Feed.AuthToken,
		FeedToken:  cfg.Feed.FeedToken,
		ClientCode: cfg.Feed.ClientCode,
	}

	controller := stream.NewController(source, creds, st, broadcaster, brokerTokenTable(cfg.Symbols), configuredSymbols(cfg.Symbols), stream.Options{
		ConnectTimeout:    cfg.Feed.ConnectTimeout,
		SubscribeGap:      cfg.Feed.SubscribeGap,
		MinUpdateInterval: cfg.Feed.MinUpdateInterval,
		Backoff:           stream.Backoff{Base: cfg.Feed.ReconnectBase, Max: cfg.Feed.ReconnectMax},
		ReconnectBudget:   cfg.Feed.ReconnectBudget,
		QueueSize:         cfg.Feed.QueueSize,
	}, sinks...)

	if err := controller.Start(ctx); err != nil {
		return errors.Wrap(err, "start streaming")
	}
	defer controller.Stop()

	srv := server.New(cfg.Server.Addr, st, controller, registry, latest)
	return srv.Run(ctx)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		logs.Info("using in-memory store")
		return store.NewMemory(), nil
	case "", "postgres":
		client, err := conn.NewPostgres(conn.PostgresOption{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
			SSLMode:  cfg.SSLMode,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		return store.NewPostgres(client.DB())
	default:
		return nil, errors.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// brokerTokenTable maps configured broker feed tokens to their canonical
// symbol and exchange, so token-keyed topics resolve during ingestion.
func brokerTokenTable(entries []config.SymbolEntry) *symbols.Table {
	table := symbols.NewTable()
	for _, e := range entries {
		if e.Token != "" {
			table.Add(e.Token, e.Symbol, e.Exchange)
		}
	}
	return table
}

func configuredSymbols(entries []config.SymbolEntry) []model.SymbolConfig {
	out := make([]model.SymbolConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.SymbolConfig{
			Symbol:   e.Symbol,
			Exchange: e.Exchange,
			Mode:     enum.ParseStreamMode(e.Mode),
		})
	}
	return out
}

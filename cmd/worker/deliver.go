package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/config"
	"github.com/capsulemail/capsuled/internal/db"
	"github.com/capsulemail/capsuled/internal/delivery"
	"github.com/capsulemail/capsuled/internal/logger"
	"github.com/capsulemail/capsuled/internal/metrics"
	"github.com/capsulemail/capsuled/internal/notifier"
	"github.com/capsulemail/capsuled/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var deliverOnce bool

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run the capsule delivery scheduler (loop, or a single run with --once)",
	RunE:  runDeliver,
}

func init() {
	deliverCmd.Flags().BoolVar(&deliverOnce, "once", false, "perform a single delivery run and exit")
}

func runDeliver(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zl := logger.New(cfg.Log.Level)
	defer func() { _ = zl.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) capsule store (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	capsulesRepo := repository.NewCapsulesRepository(dbx)

	// 3) blob store (redis)
	redisClient, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	resolver := delivery.NewContentResolver(blob.NewRedisStore(redisClient), zl)

	// 4) notifier
	send, err := buildNotifier(cfg.Notifier)
	if err != nil {
		return err
	}

	// 5) delivery log (ClickHouse, optional)
	var deliveryLog repository.DeliveryLogRepository
	if cfg.ClickHouse.DSN != "" {
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolOpts{
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()
		deliveryLog = repository.NewDeliveryLogRepository(chDB)
	}

	d := delivery.NewDeliverer(capsulesRepo, resolver, send, deliveryLog, zl)

	// tune knobs
	if cfg.Delivery.Workers > 0 {
		d.Workers = cfg.Delivery.Workers
	}
	if cfg.Delivery.BatchLimit > 0 {
		d.BatchLimit = cfg.Delivery.BatchLimit
	}
	if cfg.Notifier.SendTimeout > 0 {
		d.SendTimeout = cfg.Notifier.SendTimeout
	}

	// 6) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if deliverOnce {
		res, err := d.Run(ctx)
		if err != nil {
			return err
		}
		out, _ := json.Marshal(res)
		fmt.Println(string(out))
		return nil
	}

	log.Printf(">> deliver worker started interval=%s workers=%d batchLimit=%d notifier=%s",
		cfg.Delivery.Interval, d.Workers, d.BatchLimit, cfg.Notifier.Kind)

	return d.RunLoop(ctx, cfg.Delivery.Interval)
}

func buildNotifier(cfg config.NotifierConfig) (notifier.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "smtp":
		return notifier.NewSMTPNotifier(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Username,
			cfg.SMTP.Password,
			cfg.From,
		)
	case "relay":
		if strings.TrimSpace(cfg.Relay.URL) == "" {
			return nil, fmt.Errorf("relay notifier: empty url")
		}
		return notifier.NewRelayNotifier(
			cfg.Relay.URL,
			cfg.Relay.TimeoutMs,
			cfg.Relay.Breaker.FailThreshold,
			cfg.Relay.Breaker.OpenForMs,
		), nil
	default:
		return nil, fmt.Errorf("unknown notifier kind %q", cfg.Kind)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/service"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store/memory"
	sqlitestore "github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store/sqlite"
	"github.com/BrandonDHaskell/cherrydoor/internal/config"
	"github.com/BrandonDHaskell/cherrydoor/internal/db"
	"github.com/BrandonDHaskell/cherrydoor/internal/grpcapi"
	"github.com/BrandonDHaskell/cherrydoor/internal/httpapi"
	"github.com/BrandonDHaskell/cherrydoor/internal/link"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

func main() {
	cfg := config.FromEnv()
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		heartbeatStore store.HeartbeatStore
		commandStore   store.CommandStore
		eventStore     store.AccessEventStore
	)
	switch cfg.Store {
	case "memory":
		heartbeatStore = memory.New()
		commandStore = memory.NewCommandStore()
		eventStore = memory.NewAccessEventStore()
		log.Infow("using in-memory store")
	default:
		conn, err := db.Open(ctx, db.Config{
			Path:        cfg.DB.Path,
			BusyTimeout: cfg.DB.BusyTimeout,
			Synchronous: cfg.DB.Synchronous,
			Log:         log,
		})
		if err != nil {
			log.Fatalw("open database", "path", cfg.DB.Path, "error", err)
		}
		defer conn.Close()

		writer := db.NewWorker(conn)
		defer writer.Close()

		heartbeatStore = sqlitestore.NewHeartbeatStore(conn, writer)
		commandStore = sqlitestore.NewCommandStore(conn, writer)
		eventStore = sqlitestore.NewAccessEventStore(conn, writer)
		log.Infow("using sqlite store", "path", cfg.DB.Path)
	}

	// Device link
	dev, err := link.Open(link.Config{
		Address:  cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		StopBits: cfg.Serial.StopBits,
		Parity:   cfg.Serial.Parity,
		Timeout:  cfg.Serial.ReadTimeout,
	})
	if err != nil {
		log.Fatalw("open serial link", "port", cfg.Serial.Port, "error", err)
	}
	defer dev.Close()
	log.Infow("serial link open", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)

	// Services
	health := grpcapi.NewHealthReporter()

	commandSvc := service.NewCommandService(cfg.DeviceID, dev, commandStore, log)
	monitor := service.NewHeartbeatMonitor(dev, heartbeatStore, service.MonitorConfig{
		DeviceID:      cfg.DeviceID,
		RetryInterval: cfg.RetryInterval,
		Reporter:      health,
	}, log)

	allowed := make(map[string]struct{}, len(cfg.AllowedCardCodes))
	for _, c := range cfg.AllowedCardCodes {
		allowed[c] = struct{}{}
	}
	accessSvc := service.NewAccessService(cfg.DeviceID, service.AccessPolicy{
		AllowAll:     cfg.AllowAll,
		AllowedCodes: allowed,
		OpenSeconds:  int32(cfg.OpenSeconds),
	}, commandSvc, eventStore, log)

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, log)

	// Subscribe before the first read so no card is missed.
	accessSvc.Start(ctx, monitor)
	monitor.Start(ctx)
	pruner.Start(ctx)

	// Servers
	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         log,
		Addr:           cfg.HTTPAddr,
		DeviceID:       cfg.DeviceID,
		Commands:       commandSvc,
		Access:         accessSvc,
		Heartbeats:     monitor,
		HeartbeatStore: heartbeatStore,
	})
	grpcSrv := grpcapi.NewServer(cfg.GRPCAddr, health, log)

	go func() {
		log.Infow("http listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server", "error", err)
			stop()
		}
	}()
	go func() {
		if err := grpcSrv.Start(); err != nil {
			log.Errorw("grpc server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	_ = grpcSrv.Shutdown(shutdownCtx)
	pruner.Stop()
	monitor.Stop()
	accessSvc.Stop()
}

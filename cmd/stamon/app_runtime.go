package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stamon-dev/stamon/internal/api"
	"github.com/stamon-dev/stamon/internal/buildinfo"
	"github.com/stamon-dev/stamon/internal/bus"
	"github.com/stamon-dev/stamon/internal/config"
	"github.com/stamon-dev/stamon/internal/monitor"
	"github.com/stamon-dev/stamon/internal/probe"
	"github.com/stamon-dev/stamon/internal/queue"
	"github.com/stamon-dev/stamon/internal/state"
	"github.com/stamon-dev/stamon/internal/ws"
)

type stamonApp struct {
	envCfg *config.EnvConfig

	bus       *bus.Bus
	queue     *queue.Queue
	reaper    *queue.Reaper
	pool      *monitor.Pool
	scheduler *monitor.Scheduler
	hub       *ws.Hub
	apiSrv    *api.Server

	workerCancel context.CancelFunc
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if err := config.ApplyFile(envCfg, envCfg.DataPath); err != nil {
		return err
	}
	if config.IsWeakSecret(string(envCfg.JWTSecret)) {
		log.Println("[main] JWT_SECRET looks weak; use a long random value in production")
	}

	db, err := state.Bootstrap(envCfg.DataPath)
	if err != nil {
		return fmt.Errorf("state bootstrap: %w", err)
	}
	log.Printf("[main] stamon %s (commit %s) data=%s", buildinfo.Version, buildinfo.GitCommit, envCfg.DataPath)

	app := newStamonApp(envCfg, db)
	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), envCfg.ShutdownTimeout)
	defer cancel()
	app.shutdown(ctx)

	if err := db.Close(); err != nil {
		log.Printf("[main] database close error: %v", err)
	}
	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newStamonApp(envCfg *config.EnvConfig, db *sql.DB) *stamonApp {
	b := bus.New(envCfg.BusBuffer)
	q := queue.New(db)

	services := state.NewServiceRepo(db)
	logs := state.NewLogRepo(db, envCfg.IncidentCacheTTL)
	users := state.NewUserRepo(db)
	configs := state.NewConfigRepo(db)

	engine := monitor.NewEngine(logs, b, q)
	pool := monitor.NewPool(q, probe.NewDriver(), engine, b, monitor.PoolConfig{
		ProbeWorkers: envCfg.ProbeWorkers,
		Retries:      envCfg.ProbeRetries,
		Grace:        envCfg.ProbeGrace,
		LeaseTTL:     envCfg.QueueLease,
	})
	scheduler := monitor.NewScheduler(services, q, monitor.SchedulerConfig{
		BacklogMax:  envCfg.QueueBacklogMax,
		TickTimeout: envCfg.TickTimeout,
	})
	hub := ws.NewHub(b)

	apiSrv := api.NewServer(api.ServerConfig{
		Port:            config.Port,
		AssetsPath:      envCfg.AssetsPath,
		APIMaxBodyBytes: int64(envCfg.APIMaxBodyBytes),
		Auth:            api.NewAuthenticator(envCfg.JWTSecret),
		Services:        services,
		Logs:            logs,
		Users:           users,
		Config:          configs,
		Hub:             hub,
	})

	return &stamonApp{
		envCfg:    envCfg,
		bus:       b,
		queue:     q,
		reaper:    queue.NewReaper(q),
		pool:      pool,
		scheduler: scheduler,
		hub:       hub,
		apiSrv:    apiSrv,
	}
}

func (a *stamonApp) startServers() <-chan error {
	workerCtx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel

	a.reaper.Start()
	a.pool.Start(workerCtx)
	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] API server listening on :%d", config.Port)
		if err := a.apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("[main] received signal %s, shutting down", sig)
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// shutdown drains in order: no new ticks, workers finish their leases,
// websocket clients drop, then the HTTP listener closes.
func (a *stamonApp) shutdown(ctx context.Context) {
	a.scheduler.Stop()
	a.workerCancel()
	a.pool.Wait()
	a.hub.CloseAll()
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("[main] API shutdown error: %v", err)
	}
	a.reaper.Stop()
	log.Println("[main] shutdown complete")
}

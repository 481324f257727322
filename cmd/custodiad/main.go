package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-sh/custodia/ca"
	"github.com/custodia-sh/custodia/config"
	"github.com/custodia-sh/custodia/envelope"
	"github.com/custodia-sh/custodia/ledger"
	"github.com/custodia-sh/custodia/server"
	"github.com/custodia-sh/custodia/store"
	"github.com/custodia-sh/custodia/store/grpcstore"
	"github.com/custodia-sh/custodia/store/localstore"
	"github.com/custodia-sh/custodia/store/memstore"
	"github.com/custodia-sh/custodia/trust"
)

func main() {
	fs := flag.NewFlagSet("custodiad", flag.ExitOnError)
	configPath := fs.String("config", "custodiad.yaml", "path to the YAML config file")
	_ = fs.Parse(os.Args[1:])

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(*configPath, log); err != nil {
		log.Error("custodiad exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath string, log *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gen, err := ledger.ParseGeneration(cfg.Ledger.Generation)
	if err != nil {
		return err
	}
	anchor, err := trust.LoadAnchor(cfg.CA.PubkeyFile, cfg.Service.PrivkeyFile, cfg.Service.PrivkeyPassword)
	if err != nil {
		return err
	}

	st, closeFn, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	caClient := &ca.HTTPClient{BaseURL: cfg.CA.URL}
	verifier := trust.NewVerifier(anchor, caClient)
	eng := ledger.NewEngine(st, caClient, verifier, gen, cfg.Ledger.UIDPrefix, log)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: (&server.Server{
			Engine: eng,
			Signer: &envelope.Signer{Key: anchor.ServiceKey},
			Gen:    gen,
			Log:    log,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("custodiad listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("generation", cfg.Ledger.Generation),
			zap.String("store", cfg.Store.Backend))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func openStore(cfg config.Store) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMem:
		return memstore.New(), nil, nil
	case config.BackendLocalFS:
		st, err := localstore.Open(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case config.BackendGRPC:
		cl, err := grpcstore.Dial(cfg.Target, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return cl, func() { _ = cl.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

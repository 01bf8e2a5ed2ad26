package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/bridge"
	"github.com/hublend/hublend-settler/internal/config"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/dispatch"
	"github.com/hublend/hublend-settler/internal/finalizer"
	"github.com/hublend/hublend-settler/internal/http"
	"github.com/hublend/hublend-settler/internal/lock"
	"github.com/hublend/hublend-settler/internal/proof"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/spoke"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	State           *state.State
	Registry        *registry.Keeper
	LockKeeper      *lock.Keeper
	Dispatcher      *dispatch.Dispatcher
	SpokeValidator  *spoke.Validator
	Finalizer       *finalizer.Finalizer
	BridgeListener  *bridge.Listener
	HTTPServer      http.HTTPServer
}

func NewApplication() *Application {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	config.InitConfig()
	cfg := config.AppConfig

	dbm := db.NewDatabaseManager()
	st := state.InitializeState(dbm)
	reg := registry.NewKeeper(dbm)

	app := &Application{
		DatabaseManager: dbm,
		State:           st,
		Registry:        reg,
		HTTPServer:      http.NewHTTPServer(st, reg),
	}

	switch cfg.Role {
	case "hub":
		app.LockKeeper = lock.NewKeeper(st, reg, lock.UnrestrictedRisk{}, cfg.AdminAddress, cfg.LockTtl)
		app.Dispatcher = dispatch.NewDispatcher(st, reg, cfg.DispatchCallers, cfg.HubChainId, cfg.HubDispatcher, cfg.HubFinalizer, cfg.MaxFutureDrift)
		backend := proof.NewBackend(reg, proof.NewAttestedFinalityVerifier(), proof.NewReceiptInclusionVerifier(), cfg.HubDispatcher)
		deposits := proof.NewAttestedDepositVerifier(func(chainId uint64) (common.Address, error) {
			receiver, err := reg.GetSourceReceiver(chainId)
			if err != nil {
				return common.Address{}, err
			}
			return common.HexToAddress(receiver.Attestor), nil
		})
		app.Finalizer = finalizer.NewFinalizer(st, reg, backend, deposits, cfg.BridgeTransport, cfg.HubFinalizer, cfg.HubChainId)
		app.BridgeListener = bridge.NewListener(st, nil, app.Finalizer)
	case "spoke":
		client, err := bridge.DialEthClient()
		if err != nil {
			log.Fatalf("Failed to create spoke EVM RPC client: %v", err)
		}
		vault, err := spoke.NewEvmVault(client, cfg.VaultPrivateKey, cfg.SpokeChainId)
		if err != nil {
			log.Fatalf("Failed to create vault: %v", err)
		}
		app.SpokeValidator = spoke.NewValidator(st, vault, cfg.BridgeTransport, cfg.ExpectedFillRelayer,
			cfg.HubChainId, cfg.SpokeChainId, cfg.HubDispatcher, cfg.HubFinalizer)
		app.BridgeListener = bridge.NewListener(st, app.SpokeValidator, nil)
	default:
		log.Fatalf("Unknown role %q, expected hub or spoke", cfg.Role)
	}

	return app
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.BridgeListener.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.StartHTTPServer()
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	log.Info("Server stopped")
}

func main() {
	app := NewApplication()
	app.Run()
}

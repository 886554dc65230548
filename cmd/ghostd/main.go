package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/Jpatching/ghostprotocol/internal/api"
	"github.com/Jpatching/ghostprotocol/internal/cancel"
	"github.com/Jpatching/ghostprotocol/internal/config"
	"github.com/Jpatching/ghostprotocol/internal/draft"
	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/scan"
	"github.com/Jpatching/ghostprotocol/internal/store"
	"github.com/Jpatching/ghostprotocol/internal/wallet"

	_ "github.com/Jpatching/ghostprotocol/docs"

	"go.uber.org/zap"
)

const (
	keyfileName  = "identity.gid"
	databaseName = "ghost_protocol.db"
)

// @title           Ghost Protocol Agent API
// @version         1.0
// @description     Local subscription cancellation agent with on-chain proof receipts
// @host            localhost:7177
// @BasePath        /
func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := config.Init(); err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	if err := config.PromptForPassphrase(); err != nil {
		log.Fatal("failed to obtain wallet passphrase", zap.Error(err))
	}

	dataDir := config.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		log.Fatal("failed to create data dir", zap.String("dir", dataDir), zap.Error(err))
	}

	st, err := store.Open(filepath.Join(dataDir, databaseName))
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}

	passphrase, err := config.GetWalletPassphraseBytes()
	if err != nil {
		log.Fatal("passphrase unavailable", zap.Error(err))
	}
	keystore := wallet.NewKeystore(filepath.Join(dataDir, keyfileName), passphrase, log)
	clear(passphrase)

	ledgerClient := ledger.NewSolanaClient(config.GetSolanaRPCURL())
	session := wallet.NewSession(keystore, ledgerClient, config.GetConfirmTimeout(), log)
	scanner := scan.NewSimulatedScanner(st, log)

	generator := draft.NewGenerator(
		draft.StoreKeySource{Store: st, Passphrase: config.GetWalletPassphraseBytes},
		config.GetAnthropicModel(),
		log,
	)

	manager := cancel.NewManager(cancel.Deps{
		Generator:      generator,
		Keystore:       keystore,
		Ledger:         ledgerClient,
		Receipts:       st,
		Activity:       st,
		ConfirmTimeout: config.GetConfirmTimeout(),
		Log:            log,
	})

	router := api.SetupRouter(api.Deps{
		Store:   st,
		Session: session,
		Scanner: scanner,
		Manager: manager,
	})

	addr := ":" + config.GetPort()
	log.Info("ghostd listening", zap.String("addr", addr), zap.String("rpc", config.GetSolanaRPCURL()))
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

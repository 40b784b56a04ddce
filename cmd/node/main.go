package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/params"
	"github.com/oceandex/oceandex/pkg/api"
	"github.com/oceandex/oceandex/pkg/crypto"
	"github.com/oceandex/oceandex/pkg/exchange"
	"github.com/oceandex/oceandex/pkg/storage"
	"github.com/oceandex/oceandex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	if cfg.Admin.Administrator == "" || cfg.Admin.FeeSetter == "" {
		sugar.Fatalw("missing_admin_config",
			"hint", "set ADMIN_ADDRESS and FEE_SETTER_ADDRESS")
	}

	// ---- Storage ----
	store, err := storage.NewPebbleStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	var wal exchange.WAL = storage.NewNopWAL()
	if cfg.Node.WALFile != "" {
		fw, err := storage.NewFileWAL(cfg.Node.WALFile)
		if err != nil {
			sugar.Fatalw("wal_open_failed", "path", cfg.Node.WALFile, "err", err)
		}
		wal = fw
	}

	// ---- Attestation key ----
	attestor, err := loadAttestor(cfg.Admin.AttestationSeed)
	if err != nil {
		sugar.Fatalw("attestor_init_failed", "err", err)
	}

	// ---- Exchange core ----
	hub := api.NewHub()
	ledger, err := exchange.NewLedger(exchange.Deps{
		Store:  store,
		WAL:    wal,
		Events: hub,
		Clock:  util.RealClock{},
		Domain: crypto.EIP712Domain{
			Name:    cfg.Protocol.DomainName,
			Version: cfg.Protocol.DomainVersion,
			ChainID: bigChainID(cfg.Protocol.ChainID),
		},
		Administrator: common.HexToAddress(cfg.Admin.Administrator),
		FeeSetter:     common.HexToAddress(cfg.Admin.FeeSetter),
		FeeTo:         common.HexToAddress(cfg.Admin.FeeTo),
		// Concrete transfer/delivery semantics are the settlement
		// collaborator's business; the node logs the validated invocation.
		Settler: exchange.SettlerFunc(func(assetData, callData []byte, callTarget common.Address, orderData []byte) error {
			sugar.Infow("transfer_and_deliver",
				"call_target", callTarget.Hex(),
				"asset_bytes", len(assetData),
				"call_bytes", len(callData),
				"order_bytes", len(orderData))
			return nil
		}),
		Attestor: attestor,
		Logger:   sugar,
	})
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}

	// ---- API ----
	server := api.NewServer(ledger, hub)
	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"listen", cfg.Node.ListenAddr,
		"domain", cfg.Protocol.DomainName,
		"chain_id", cfg.Protocol.ChainID)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	sugar.Infow("shutting_down")
}

func bigChainID(id int64) *big.Int { return big.NewInt(id) }

// loadAttestor builds the BLS attestation key from the configured seed, or a
// random one when unset (attestations then don't survive restarts).
func loadAttestor(seedHex string) (*crypto.Attestor, error) {
	var seed []byte
	if seedHex != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
		if err != nil {
			return nil, err
		}
		seed = b
	} else {
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
	}
	return crypto.NewAttestorFromSeed(seed), nil
}

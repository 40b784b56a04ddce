package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Node struct {
	ListenAddr string
	DataDir    string
	LogFile    string
	// WALFile is the audit log of applied transactions. Empty disables it.
	WALFile string
}

type Protocol struct {
	// DomainName/DomainVersion/ChainID feed the EIP-712 domain separator.
	// Changing any of them invalidates every outstanding signature.
	DomainName    string
	DomainVersion string
	ChainID       int64
}

type Admin struct {
	// Administrator may toggle the emergency halt.
	Administrator string
	// FeeSetter may update the fee recipient.
	FeeSetter string
	// FeeTo is the initial fee recipient (updatable at runtime by FeeSetter).
	FeeTo string
	// AttestationSeed seeds the node's BLS attestation key (hex, optional).
	AttestationSeed string
}

type Config struct {
	Node     Node
	Protocol Protocol
	Admin    Admin
}

func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: ":8547",
			DataDir:    "./data/oceandex.db",
			LogFile:    "data/node.log",
			WALFile:    "data/settlement.wal",
		},
		Protocol: Protocol{
			DomainName:    "OceanDEX",
			DomainVersion: "1",
			ChainID:       1337, // local dev chain
		},
		Admin: Admin{},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.ListenAddr = getEnv("LISTEN", cfg.Node.ListenAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.WALFile = getEnv("WAL_FILE", cfg.Node.WALFile)

	cfg.Protocol.DomainName = getEnv("DOMAIN_NAME", cfg.Protocol.DomainName)
	cfg.Protocol.DomainVersion = getEnv("DOMAIN_VERSION", cfg.Protocol.DomainVersion)
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Protocol.ChainID = id
		}
	}

	cfg.Admin.Administrator = getEnv("ADMIN_ADDRESS", cfg.Admin.Administrator)
	cfg.Admin.FeeSetter = getEnv("FEE_SETTER_ADDRESS", cfg.Admin.FeeSetter)
	cfg.Admin.FeeTo = getEnv("FEE_TO_ADDRESS", cfg.Admin.FeeTo)
	cfg.Admin.AttestationSeed = getEnv("ATTESTATION_SEED", cfg.Admin.AttestationSeed)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

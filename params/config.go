package params

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Storage struct {
	DataDir string
	// File names below are resolved relative to DataDir.
	UnmatchedOrdersFile string
	ExecutedTradesFile  string
	StocksFile          string
	AccountsDB          string
}

type Server struct {
	ListenAddr     string
	AllowedOrigins []string
}

type Config struct {
	Storage Storage
	Server  Server
	LogPath string // empty = console only
}

func Default() Config {
	return Config{
		Storage: Storage{
			DataDir:             "data",
			UnmatchedOrdersFile: "unmatched_orders.json",
			ExecutedTradesFile:  "executed_trades.json",
			StocksFile:          "stocks.json",
			AccountsDB:          "accounts.db",
		},
		Server: Server{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("UNMATCHED_ORDERS_FILE"); v != "" {
		cfg.Storage.UnmatchedOrdersFile = v
	}
	if v := os.Getenv("EXECUTED_TRADES_FILE"); v != "" {
		cfg.Storage.ExecutedTradesFile = v
	}
	if v := os.Getenv("STOCKS_FILE"); v != "" {
		cfg.Storage.StocksFile = v
	}
	if v := os.Getenv("ACCOUNTS_DB"); v != "" {
		cfg.Storage.AccountsDB = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogPath = v
	}

	return cfg
}

// UnmatchedOrdersPath returns the full path to the unmatched-orders snapshot.
func (s Storage) UnmatchedOrdersPath() string {
	return filepath.Join(s.DataDir, s.UnmatchedOrdersFile)
}

// ExecutedTradesPath returns the full path to the executed-trades log.
func (s Storage) ExecutedTradesPath() string {
	return filepath.Join(s.DataDir, s.ExecutedTradesFile)
}

// StocksPath returns the full path to the stock listing file.
func (s Storage) StocksPath() string {
	return filepath.Join(s.DataDir, s.StocksFile)
}

// AccountsDBPath returns the full path to the accounts database.
func (s Storage) AccountsDBPath() string {
	return filepath.Join(s.DataDir, s.AccountsDB)
}

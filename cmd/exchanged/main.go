package main

import (
	"os"

	"go.uber.org/zap"

	"tickerbook/params"
	"tickerbook/pkg/api"
	"tickerbook/pkg/exchange"
	"tickerbook/pkg/exchange/account"
	"tickerbook/pkg/stockinfo"
	"tickerbook/pkg/store"
	"tickerbook/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var logger *zap.Logger
	var err error
	if cfg.LogPath != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogPath)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		logger.Fatal("failed to create data dir", zap.String("dir", cfg.Storage.DataDir), zap.Error(err))
	}

	var initial exchange.InitialPriceSource
	stocks, err := stockinfo.Load(cfg.Storage.StocksPath())
	if err != nil {
		logger.Warn("stock listing unavailable, no initial prices", zap.Error(err))
	} else {
		initial = stocks
	}

	accounts, err := account.NewPebbleManager(cfg.Storage.AccountsDBPath())
	if err != nil {
		logger.Fatal("failed to open accounts db", zap.Error(err))
	}
	defer accounts.Close()

	book := exchange.NewBook(
		store.NewSnapshot(cfg.Storage.UnmatchedOrdersPath()),
		store.NewTradeLog(cfg.Storage.ExecutedTradesPath()),
		initial,
		util.RealClock{},
		logger,
	)

	server := api.NewServer(book, accounts, stocks, cfg.Server.AllowedOrigins, logger)
	if err := server.Start(cfg.Server.ListenAddr); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

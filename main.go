package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardano-forge/pkg/blockfrost"
	"cardano-forge/pkg/cardano"
	"cardano-forge/pkg/config"
	"cardano-forge/pkg/history"
	"cardano-forge/pkg/logger"
	"cardano-forge/pkg/notify"
	"cardano-forge/pkg/server"
	"cardano-forge/pkg/wallet"
)

func main() {
	l := logger.Record

	cfg, err := config.Load()
	if err != nil {
		l.Error("CONFIG", "ERROR", err)
		os.Exit(1)
	}

	provider, err := blockfrost.New(cfg.BlockfrostProjectID, cfg.Network)
	if err != nil {
		l.Error("BLOCKFROST", "ERROR", err)
		os.Exit(1)
	}

	w, err := wallet.Load(cfg)
	if err != nil {
		l.Error("WALLET", "ERROR", err)
		os.Exit(1)
	}
	l.Info("WALLET", "ADDRESS", w.Address(), "PKH", w.PubKeyHash())
	if balance, err := provider.GetAddressBalance(context.Background(), w.Address()); err != nil {
		l.Error("WALLET", "ERROR", err)
	} else {
		l.Info("WALLET", "LOVELACE", balance)
	}

	var hist *history.Store
	if cfg.MongoURI != "" {
		hist, err = history.Connect(context.Background(), cfg.MongoURI)
		if err != nil {
			l.Error("HISTORY", "ERROR", err)
			os.Exit(1)
		}
		defer hist.Close(context.Background())
	}

	var notifier *notify.Notifier
	if cfg.DiscordToken != "" {
		notifier, err = notify.New(cfg.DiscordToken, cfg.DiscordChannel)
		if err != nil {
			l.Error("NOTIFY", "ERROR", err)
			os.Exit(1)
		}
	}

	resolver := cardano.NewAikenResolver(cfg.AikenBin, cfg.BlueprintPath)
	engine := cardano.NewCLIEngine(cfg.CardanoCLIBin, provider)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(cfg, provider, resolver, engine, w, hist, notifier).Router(),
	}

	go func() {
		l.Info("HTTP", "LISTENING", cfg.ListenAddr, "NETWORK", cfg.Network)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("HTTP", "ERROR", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	l.Info("HTTP", "SHUTDOWN", "draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Error("HTTP", "ERROR", err)
	}

	l.Info("HTTP", "SHUTDOWN", "complete")
}

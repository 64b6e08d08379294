// Package server exposes the minting service over HTTP. Handlers validate
// payloads, build a transaction plan, hand it to the engine, and shape the
// JSON response; everything chain-related lives below in pkg/cardano.
package server

import (
	"context"
	"net/http"

	"cardano-forge/pkg/cardano"
	"cardano-forge/pkg/config"
	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/history"
	"cardano-forge/pkg/notify"

	bfg "github.com/blockfrost/blockfrost-go"
	"github.com/go-chi/chi/v5"
)

// MaxBatchSize caps one batch-mint request.
const MaxBatchSize = 15

// ChainProvider is everything the handlers need from the indexing provider.
// Satisfied by *blockfrost.Provider.
type ChainProvider interface {
	cardano.Provider
	VerifyAddress(ctx context.Context, address string) bool
	AssetInfo(ctx context.Context, unit string) (bfg.Asset, error)
}

type Server struct {
	cfg      *config.Config
	provider ChainProvider
	resolver cardano.ScriptResolver
	engine   cardano.Engine
	signer   cardano.Signer
	history  *history.Store
	notifier *notify.Notifier
}

func New(cfg *config.Config, provider ChainProvider, resolver cardano.ScriptResolver, engine cardano.Engine, signer cardano.Signer, hist *history.Store, notifier *notify.Notifier) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		resolver: resolver,
		engine:   engine,
		signer:   signer,
		history:  hist,
		notifier: notifier,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, requestLogger)

	r.Get("/", s.handleLive)
	r.Get("/health", s.handleLive)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/mint", s.handleMint)
		api.Post("/mint/batch", s.handleBatchMint)
		api.Post("/update", s.handleUpdate)
		api.Post("/burn", s.handleBurn)
		api.Get("/contract", s.handleContract)
		api.Get("/asset", s.handleAsset)
		api.Get("/history", s.handleHistory)
	})

	return r
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newBuilder derives the course's chain context and a builder over it. The
// service wallet is the issuer for every course this instance serves.
func (s *Server) newBuilder(ctx context.Context, course forge.CourseID) (*cardano.Chain, *cardano.Builder, error) {
	chain, err := cardano.NewChain(ctx, s.provider, s.resolver, s.cfg.Mainnet(), course, s.signer.Address())
	if err != nil {
		return nil, nil, err
	}
	return chain, cardano.NewBuilder(chain, s.signer, s.cfg.Network), nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/actions"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/metrics"
	"github.com/dma-labs/ajna-dma/internal/operations"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/solver"
	"github.com/dma-labs/ajna-dma/internal/state"
	"github.com/dma-labs/ajna-dma/internal/strategies"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Products and actions served by BuildStrategy.
const (
	ProductBorrow   = "borrow"
	ProductEarn     = "earn"
	ProductMultiply = "multiply"

	ActionOpen            = "open"
	ActionDepositBorrow   = "deposit-borrow"
	ActionPaybackWithdraw = "payback-withdraw"
	ActionDeposit         = "deposit"
	ActionWithdraw        = "withdraw"
	ActionAdjust          = "adjust"
	ActionClose           = "close"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownAction  = errors.New("unknown action")
	ErrBadRequest     = errors.New("malformed request")
)

// Service wires the decision layer: registry, plan builder, snapshot cache and strategies.
type Service struct {
	logger   zerolog.Logger
	network  string
	deps     strategies.Dependencies
	multiply strategies.MultiplyDependencies
	cache    *state.SnapshotCache
	metrics  *metrics.Metrics
	db       *sql.DB
}

// Config holds what New needs. Storage defaults to memory, a nil SwapFetcher disables multiply.
type Config struct {
	Network           string
	AjnaProxyActions  common.Address
	OperationExecutor common.Address
	Params            types.ProtocolParameters
	Storage           state.SnapshotStorage
	SwapFetcher       strategies.SwapDataFetcher
	Metrics           *metrics.Metrics
	DB                *sql.DB // Health checks only
}

func New(cfg Config) (*Service, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("service configuration validation failed: %w", err)
	}

	registry, err := config.LoadRegistry(cfg.Network)
	if err != nil {
		return nil, err
	}
	factory, err := actions.NewFactory(registry)
	if err != nil {
		return nil, err
	}
	builder, err := operations.NewBuilder(factory, cfg.Params)
	if err != nil {
		return nil, err
	}

	storage := cfg.Storage
	if storage == nil {
		storage = state.NewMemoryStore()
	}
	cache, err := state.NewSnapshotCache(storage, cfg.Metrics.ObserveSnapshotLookup)
	if err != nil {
		return nil, err
	}

	deps := strategies.Dependencies{
		Network:           cfg.Network,
		AjnaProxyActions:  cfg.AjnaProxyActions,
		OperationExecutor: cfg.OperationExecutor,
	}
	s := &Service{
		logger:  logger.GetForComponent("dma_service"),
		network: cfg.Network,
		deps:    deps,
		multiply: strategies.MultiplyDependencies{
			Dependencies: deps,
			Builder:      builder,
			SwapFetcher:  cfg.SwapFetcher,
			Params:       cfg.Params,
		},
		cache:   cache,
		metrics: cfg.Metrics,
		db:      cfg.DB,
	}

	s.logger.Info().
		Str("network", cfg.Network).
		Bool("multiply", cfg.SwapFetcher != nil).
		Msg("Service created")
	return s, nil
}

func validateConfig(cfg Config) error {
	if cfg.Network == "" {
		return fmt.Errorf("network cannot be empty")
	}
	if cfg.AjnaProxyActions == (common.Address{}) {
		return fmt.Errorf("ajna proxy actions address cannot be zero")
	}
	if cfg.OperationExecutor == (common.Address{}) {
		return fmt.Errorf("operation executor address cannot be zero")
	}
	if cfg.Params.FeeBase <= 0 {
		return fmt.Errorf("protocol parameters are not set")
	}
	return nil
}

func (s *Service) Cache() *state.SnapshotCache {
	return s.cache
}

// Healthy reports whether the snapshot store database answers. Memory stores are always healthy.
func (s *Service) Healthy(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return state.TestDBConnection(ctx, s.db)
}

// StrategyRequest is the body of a strategy preview. Snapshot, when set, replaces the
// position's inline pool with a cached one.
type StrategyRequest struct {
	Snapshot *state.SnapshotKey `json:"snapshot,omitempty"`
	Payload  json.RawMessage    `json:"payload"`
}

// BuildStrategy dispatches a preview to the strategy for product and action.
func (s *Service) BuildStrategy(ctx context.Context, product, action string, req StrategyRequest) (any, error) {
	started := time.Now()
	reqLogger := s.logger.With().Str("product", product).Str("action", action).Logger()

	var snapshot *types.Pool
	if req.Snapshot != nil {
		p, err := s.cache.Get(ctx, *req.Snapshot)
		if err != nil {
			return nil, err
		}
		snapshot = &p
	}

	var (
		out   any
		diags types.Diagnostics
		err   error
	)
	switch product {
	case ProductBorrow:
		out, diags, err = s.borrow(action, req.Payload, snapshot)
	case ProductEarn:
		out, diags, err = s.earn(action, req.Payload, snapshot)
	case ProductMultiply:
		out, diags, err = s.multiplyStrategy(ctx, action, req.Payload, snapshot)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	if errors.Is(err, ErrUnknownAction) || errors.Is(err, ErrBadRequest) {
		return nil, err
	}

	s.metrics.ObserveStrategy(product, action, started, diags, err)
	if err != nil {
		reqLogger.Warn().Err(err).Msg("Strategy build failed")
		return nil, err
	}
	reqLogger.Debug().
		Int("errors", len(diags.Errors)).
		Int("warnings", len(diags.Warnings)).
		Dur("took", time.Since(started)).
		Msg("Strategy built")
	return out, nil
}

func (s *Service) borrow(action string, raw json.RawMessage, snapshot *types.Pool) (any, types.Diagnostics, error) {
	var build func(strategies.Dependencies, strategies.BorrowPayload) (types.Strategy[types.BorrowPosition], error)
	switch action {
	case ActionOpen:
		build = strategies.BorrowOpen
	case ActionDepositBorrow:
		build = strategies.BorrowDepositBorrow
	case ActionPaybackWithdraw:
		build = strategies.BorrowPaybackWithdraw
	default:
		return nil, types.Diagnostics{}, fmt.Errorf("%w: borrow %s", ErrUnknownAction, action)
	}

	var payload strategies.BorrowPayload
	if err := decode(raw, &payload); err != nil {
		return nil, types.Diagnostics{}, err
	}
	if snapshot != nil {
		payload.Position.Pool = *snapshot
	}
	var err error
	if payload.CollateralToken, err = s.resolveToken(payload.CollateralToken); err != nil {
		return nil, types.Diagnostics{}, err
	}
	if payload.QuoteToken, err = s.resolveToken(payload.QuoteToken); err != nil {
		return nil, types.Diagnostics{}, err
	}

	out, err := build(s.deps, payload)
	return out, out.Diagnostics(), err
}

func (s *Service) earn(action string, raw json.RawMessage, snapshot *types.Pool) (any, types.Diagnostics, error) {
	var build func(strategies.Dependencies, strategies.EarnPayload) (types.Strategy[types.EarnPosition], error)
	switch action {
	case ActionOpen:
		build = strategies.EarnOpen
	case ActionDeposit:
		build = strategies.EarnDeposit
	case ActionWithdraw:
		build = strategies.EarnWithdraw
	default:
		return nil, types.Diagnostics{}, fmt.Errorf("%w: earn %s", ErrUnknownAction, action)
	}

	var payload strategies.EarnPayload
	if err := decode(raw, &payload); err != nil {
		return nil, types.Diagnostics{}, err
	}
	if snapshot != nil {
		payload.Position.Pool = *snapshot
	}
	var err error
	if payload.QuoteToken, err = s.resolveToken(payload.QuoteToken); err != nil {
		return nil, types.Diagnostics{}, err
	}

	out, err := build(s.deps, payload)
	return out, out.Diagnostics(), err
}

func (s *Service) multiplyStrategy(ctx context.Context, action string, raw json.RawMessage, snapshot *types.Pool) (any, types.Diagnostics, error) {
	var build func(context.Context, strategies.MultiplyDependencies, strategies.MultiplyPayload) (types.Strategy[types.BorrowPosition], error)
	switch action {
	case ActionOpen:
		build = strategies.MultiplyOpen
	case ActionAdjust:
		build = strategies.MultiplyAdjust
	case ActionClose:
		build = strategies.MultiplyClose
	default:
		return nil, types.Diagnostics{}, fmt.Errorf("%w: multiply %s", ErrUnknownAction, action)
	}

	var payload strategies.MultiplyPayload
	if err := decode(raw, &payload); err != nil {
		return nil, types.Diagnostics{}, err
	}
	if snapshot != nil {
		payload.Position.Pool = *snapshot
	}
	var err error
	if payload.CollateralToken, err = s.resolveToken(payload.CollateralToken); err != nil {
		return nil, types.Diagnostics{}, err
	}
	if payload.QuoteToken, err = s.resolveToken(payload.QuoteToken); err != nil {
		return nil, types.Diagnostics{}, err
	}

	out, err := build(ctx, s.multiply, payload)
	return out, out.Diagnostics(), err
}

// resolveToken fills a symbol-only token from the address book.
func (s *Service) resolveToken(t types.Token) (types.Token, error) {
	if t.Address != (common.Address{}) {
		return t, nil
	}
	if t.Symbol == "" {
		return types.Token{}, fmt.Errorf("%w: token needs an address or a symbol", ErrBadRequest)
	}
	return config.TokenBySymbol(s.network, t.Symbol)
}

// MaxGenerateRequest asks how much more a borrower can draw.
type MaxGenerateRequest struct {
	Snapshot         *state.SnapshotKey `json:"snapshot,omitempty"`
	Pool             types.Pool         `json:"pool"`
	DebtAmount       sdkmath.LegacyDec  `json:"debt_amount"`
	CollateralAmount sdkmath.LegacyDec  `json:"collateral_amount"`
}

// MaxGenerate returns the borrowable amount net of the origination fee.
func (s *Service) MaxGenerate(ctx context.Context, req MaxGenerateRequest) (sdkmath.LegacyDec, error) {
	p, err := s.resolvePool(ctx, req.Snapshot, req.Pool)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	out, err := solver.CalculateMaxGenerate(p, req.DebtAmount, req.CollateralAmount)
	s.metrics.ObserveSolver("max_generate", err)
	return out, err
}

// MaxWithdrawRequest asks how much of a lender's deposit can leave the pool.
type MaxWithdrawRequest struct {
	Snapshot            *state.SnapshotKey  `json:"snapshot,omitempty"`
	Pool                types.Pool          `json:"pool"`
	Position            types.EarnPosition  `json:"position"`
	AvailableToWithdraw sdkmath.LegacyDec   `json:"available_to_withdraw,omitempty"`
	Simulation          *types.EarnPosition `json:"simulation,omitempty"`
}

func (s *Service) MaxWithdraw(ctx context.Context, req MaxWithdrawRequest) (sdkmath.LegacyDec, error) {
	p, err := s.resolvePool(ctx, req.Snapshot, req.Pool)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	out, err := solver.CalculateMaxLiquidityWithdraw(solver.WithdrawParams{
		AvailableToWithdraw:  req.AvailableToWithdraw,
		Pool:                 p,
		Position:             req.Position,
		PoolCurrentLiquidity: pool.Liquidity(p),
		Simulation:           req.Simulation,
	})
	s.metrics.ObserveSolver("max_withdraw", err)
	return out, err
}

func (s *Service) resolvePool(ctx context.Context, key *state.SnapshotKey, inline types.Pool) (types.Pool, error) {
	if key == nil {
		return inline, nil
	}
	return s.cache.Get(ctx, *key)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrBadRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/metrics"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/service"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/solver"
	"github.com/dma-labs/ajna-dma/internal/state"
	"github.com/dma-labs/ajna-dma/internal/strategies"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func testPool() types.Pool {
	b := func(index int64, price, quote string) types.Bucket {
		return types.Bucket{Index: index, Price: dec(price), QuoteTokens: dec(quote), BucketLPs: dec(quote), Collateral: dec("0")}
	}
	return types.Pool{
		PoolAddress:                poolAddr,
		Buckets:                    []types.Bucket{b(1, "100", "50"), b(2, "90", "200"), b(3, "80", "100")},
		LowestUtilizedPrice:        dec("90"),
		LowestUtilizedPriceIndex:   2,
		HighestThresholdPrice:      dec("80"),
		HighestThresholdPriceIndex: 3,
		Debt:                       dec("120"),
		T0Debt:                     dec("120"),
		PendingInflator:            dec("1"),
		InterestRate:               dec("0.05"),
		LoansCount:                 1,
		DepositSize:                dec("350"),
		PoolMinDebtAmount:          dec("10"),
	}
}

func newTestServer(t *testing.T) (*WebServer, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	svc, err := service.New(service.Config{
		Network:           "mainnet",
		AjnaProxyActions:  common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		OperationExecutor: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Params:            config.DefaultProtocolParameters,
		Metrics:           m,
	})
	require.NoError(t, err)
	return NewWebServer("", svc, reg, m), m
}

func do(t *testing.T, ws *WebServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ws, _ := newTestServer(t)
	rec := do(t, ws, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])

	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestRequestIDIsPropagated(t *testing.T) {
	ws, _ := newTestServer(t)
	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestSnapshotRoutes(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := do(t, ws, http.MethodPut, "/api/snapshots/100/"+poolAddr.Hex(), testPool())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, ws, http.MethodGet, "/api/snapshots/100/"+poolAddr.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p types.Pool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.Debt.Equal(dec("120")))

	rec = do(t, ws, http.MethodGet, "/api/snapshots/100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), poolAddr.Hex())

	rec = do(t, ws, http.MethodGet, "/api/snapshots/101/"+poolAddr.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, ws, http.MethodGet, "/api/snapshots/abc/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := testPool()
	bad.Buckets[0].Price = dec("10")
	rec = do(t, ws, http.MethodPut, "/api/snapshots/102/"+poolAddr.Hex(), bad)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStrategyRoute(t *testing.T) {
	ws, m := newTestServer(t)
	payload, err := json.Marshal(strategies.BorrowPayload{
		Position:         types.BorrowPosition{Pool: testPool()},
		CollateralToken:  types.Token{Symbol: "WETH"},
		QuoteToken:       types.Token{Symbol: "DAI"},
		CollateralAmount: dec("10"),
		QuoteAmount:      dec("100"),
	})
	require.NoError(t, err)

	rec := do(t, ws, http.MethodPost, "/api/ajna/borrow/open", service.StrategyRequest{Payload: payload})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out types.Strategy[types.BorrowPosition]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out.Tx.Data, "0x"))
	assert.Empty(t, out.Simulation.Errors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/ajna/{product}/{action}", "200")))
}

func TestStrategyRouteErrors(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := do(t, ws, http.MethodPost, "/api/ajna/stake/open", service.StrategyRequest{Payload: json.RawMessage(`{}`)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/ajna/borrow/open", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload, err := json.Marshal(strategies.BorrowPayload{
		Position:         types.BorrowPosition{Pool: testPool()},
		CollateralToken:  types.Token{Symbol: "WETH"},
		QuoteToken:       types.Token{Symbol: "DAI"},
		CollateralAmount: dec("-1"),
		QuoteAmount:      dec("100"),
	})
	require.NoError(t, err)
	rec = do(t, ws, http.MethodPost, "/api/ajna/borrow/open", service.StrategyRequest{Payload: payload})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStrategyRouteUnknownActionWithEmptyPayload(t *testing.T) {
	ws, _ := newTestServer(t)
	rec := do(t, ws, http.MethodPost, "/api/ajna/borrow/teleport", service.StrategyRequest{Payload: json.RawMessage(`{}`)})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "unknown action")
}

func TestStrategyRouteUnknownToken(t *testing.T) {
	ws, _ := newTestServer(t)
	payload, err := json.Marshal(strategies.BorrowPayload{
		Position:         types.BorrowPosition{Pool: testPool()},
		CollateralToken:  types.Token{Symbol: "FOO"},
		QuoteToken:       types.Token{Symbol: "DAI"},
		CollateralAmount: dec("10"),
		QuoteAmount:      dec("100"),
	})
	require.NoError(t, err)
	rec := do(t, ws, http.MethodPost, "/api/ajna/borrow/open", service.StrategyRequest{Payload: payload})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "unknown token: FOO")
}

func TestEarnRouteOffGridPrice(t *testing.T) {
	ws, _ := newTestServer(t)
	payload, err := json.Marshal(strategies.EarnPayload{
		Position:    types.EarnPosition{Pool: testPool()},
		QuoteToken:  types.Token{Symbol: "DAI"},
		QuoteAmount: dec("100"),
		Price:       sdkmath.LegacyNewDecWithPrec(1, 18),
	})
	require.NoError(t, err)
	rec := do(t, ws, http.MethodPost, "/api/ajna/earn/open", service.StrategyRequest{Payload: payload})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrUnknownAction, http.StatusNotFound},
		{state.ErrSnapshotNotFound, http.StatusNotFound},
		{service.ErrBadRequest, http.StatusBadRequest},
		{config.ErrUnknownToken, http.StatusBadRequest},
		{config.ErrUnknownNetwork, http.StatusBadRequest},
		{strategies.ErrSwapDataUnavailable, http.StatusBadGateway},
		{pool.ErrPriceOutOfRange, http.StatusUnprocessableEntity},
		{pool.ErrIndexOutOfRange, http.StatusUnprocessableEntity},
		{solver.ErrInvalidPosition, http.StatusUnprocessableEntity},
		{simulations.ErrInvalidPosition, http.StatusUnprocessableEntity},
		{simulations.ErrInvalidDebtChange, http.StatusUnprocessableEntity},
		{strategies.ErrInsufficientSwapOutput, http.StatusUnprocessableEntity},
		{fmt.Errorf("rpc down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(fmt.Errorf("building strategy: %w", tt.err)))
		})
	}
}

func TestMaxGenerateRoute(t *testing.T) {
	ws, _ := newTestServer(t)
	rec := do(t, ws, http.MethodPost, "/api/ajna/max-generate", service.MaxGenerateRequest{
		Pool:             testPool(),
		DebtAmount:       dec("0"),
		CollateralAmount: dec("10"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]sdkmath.LegacyDec
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["max_generate"].IsPositive())
}

func TestMetricsRoute(t *testing.T) {
	ws, m := newTestServer(t)
	m.ObserveSnapshotLookup(true)
	rec := do(t, ws, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dma_snapshot_lookups_total")
}

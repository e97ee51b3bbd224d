package lending

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/rpc"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// JSON-RPC methods served by the estimate service.
const (
	MethodPoolEstimate     = "lending_getPoolEstimate"
	MethodUserPositions    = "lending_getUserPositions"
	MethodBackstopEstimate = "lending_getBackstopEstimate"
	MethodUserBackstop     = "lending_getUserBackstop"
)

// Provider reads estimates from the lending protocol.
type Provider interface {
	PoolEstimate(ctx context.Context, poolID string) (PoolEstimate, error)
	UserPositions(ctx context.Context, poolID, userID string) (PositionsEstimate, error)
	BackstopEstimate(ctx context.Context, poolID string) (BackstopEstimate, error)
	UserBackstop(ctx context.Context, poolID, userID string) (BackstopUserEstimate, error)
}

// Caller is the JSON-RPC surface the provider needs.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Recorder counts provider round trips.
type Recorder interface {
	RecordProviderCall(method string, duration time.Duration, err error)
}

// Compile-time interface check
var _ Provider = (*RPCProvider)(nil)

// RPCProvider is a Provider backed by the estimate service's JSON-RPC endpoint.
type RPCProvider struct {
	client     Caller
	backstopID string
}

// NewRPCProvider creates a provider over client. backstopID selects the
// backstop contract for the backstop reads.
func NewRPCProvider(client Caller, backstopID string) *RPCProvider {
	return &RPCProvider{client: client, backstopID: backstopID}
}

// ClientOptions returns the rpc options the provider runs with: a per-endpoint
// rate limit, retries on transient failures, and per-call metrics.
func ClientOptions(ratePerSecond float64, burst int, rec Recorder) []rpc.Option {
	opts := []rpc.Option{
		rpc.WithRateLimiter(rpc.NewRateLimiter(ratePerSecond, burst)),
		rpc.WithRetry(rpc.DefaultRetryConfig()),
	}
	if rec != nil {
		opts = append(opts, rpc.WithObserver(rec.RecordProviderCall))
	}
	return opts
}

type poolParams struct {
	PoolID string `json:"pool_id"`
}

type userParams struct {
	PoolID string `json:"pool_id"`
	UserID string `json:"user_id"`
}

type backstopParams struct {
	BackstopID string `json:"backstop_id"`
	PoolID     string `json:"pool_id"`
	UserID     string `json:"user_id,omitempty"`
}

// PoolEstimate implements Provider.
func (p *RPCProvider) PoolEstimate(ctx context.Context, poolID string) (PoolEstimate, error) {
	var out PoolEstimate
	if err := checkPool(poolID); err != nil {
		return out, err
	}
	if err := p.call(ctx, MethodPoolEstimate, poolParams{PoolID: poolID}, &out); err != nil {
		return PoolEstimate{}, err
	}
	if out.PoolID == "" {
		out.PoolID = poolID
	}
	return out, nil
}

// UserPositions implements Provider.
func (p *RPCProvider) UserPositions(ctx context.Context, poolID, userID string) (PositionsEstimate, error) {
	var out PositionsEstimate
	if err := checkUser(poolID, userID); err != nil {
		return out, err
	}
	if err := p.call(ctx, MethodUserPositions, userParams{PoolID: poolID, UserID: userID}, &out); err != nil {
		return PositionsEstimate{}, err
	}
	out.PoolID, out.UserID = poolID, userID
	return out, nil
}

// BackstopEstimate implements Provider.
func (p *RPCProvider) BackstopEstimate(ctx context.Context, poolID string) (BackstopEstimate, error) {
	var out BackstopEstimate
	if err := checkPool(poolID); err != nil {
		return out, err
	}
	params := backstopParams{BackstopID: p.backstopID, PoolID: poolID}
	if err := p.call(ctx, MethodBackstopEstimate, params, &out); err != nil {
		return BackstopEstimate{}, err
	}
	out.PoolID = poolID
	if out.BackstopID == "" {
		out.BackstopID = p.backstopID
	}
	return out, nil
}

// UserBackstop implements Provider.
func (p *RPCProvider) UserBackstop(ctx context.Context, poolID, userID string) (BackstopUserEstimate, error) {
	var out BackstopUserEstimate
	if err := checkUser(poolID, userID); err != nil {
		return out, err
	}
	params := backstopParams{BackstopID: p.backstopID, PoolID: poolID, UserID: userID}
	if err := p.call(ctx, MethodUserBackstop, params, &out); err != nil {
		return BackstopUserEstimate{}, err
	}
	out.PoolID, out.UserID = poolID, userID
	return out, nil
}

// call forwards to the client and tags failures as PROVIDER_FAILED.
// Cancellation is returned untouched.
func (p *RPCProvider) call(ctx context.Context, method string, params, result any) error {
	err := p.client.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return anchorerr.WithDetails(anchorerr.Classify(anchorerr.ErrProviderFailed, err), map[string]string{"method": method})
}

func checkPool(poolID string) error {
	if strings.TrimSpace(poolID) == "" {
		return anchorerr.WithSuggestion(
			anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{"field": "pool_id"}),
			"set lending.pool_id in the config file or pass --pool",
		)
	}
	return nil
}

func checkUser(poolID, userID string) error {
	if err := checkPool(poolID); err != nil {
		return err
	}
	return driver.ValidatePublicKey(userID)
}

package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/anchor/internal/rpc"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Bridge JSON-RPC methods.
const (
	MethodConnect         = "wallet_connect"
	MethodDisconnect      = "wallet_disconnect"
	MethodGetPublicKey    = "wallet_getPublicKey"
	MethodSignTransaction = "wallet_signTransaction"
)

// CodeUserRejected is the bridge error code for a request the user declined.
const CodeUserRejected = 4001

// Caller is the JSON-RPC surface a BridgeDriver needs.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// BridgeDriver talks to a local wallet bridge over JSON-RPC.
type BridgeDriver struct {
	kind       Kind
	client     Caller
	passphrase string
}

// NewBridgeDriver creates a driver for kind using client.
func NewBridgeDriver(kind Kind, client Caller, passphrase string) *BridgeDriver {
	return &BridgeDriver{kind: kind, client: client, passphrase: passphrase}
}

// Kind returns the wallet kind the bridge serves.
func (d *BridgeDriver) Kind() Kind {
	return d.kind
}

type connectParams struct {
	Kind    Kind   `json:"kind"`
	Network string `json:"network_passphrase,omitempty"`
}

type publicKeyResult struct {
	PublicKey string `json:"public_key"`
}

type signResult struct {
	SignedXDR string `json:"signed_xdr"`
}

// Connect implements Driver.
func (d *BridgeDriver) Connect(ctx context.Context) error {
	return d.translate(d.client.Call(ctx, MethodConnect, connectParams{Kind: d.kind, Network: d.passphrase}, nil))
}

// Disconnect implements Driver.
func (d *BridgeDriver) Disconnect(ctx context.Context) error {
	return d.translate(d.client.Call(ctx, MethodDisconnect, connectParams{Kind: d.kind}, nil))
}

// PublicKey implements Driver.
func (d *BridgeDriver) PublicKey(ctx context.Context) (string, error) {
	var res publicKeyResult
	if err := d.client.Call(ctx, MethodGetPublicKey, connectParams{Kind: d.kind}, &res); err != nil {
		return "", d.translate(err)
	}
	if err := ValidatePublicKey(res.PublicKey); err != nil {
		return "", fmt.Errorf("bridge returned bad key: %w", err)
	}
	return res.PublicKey, nil
}

// SignTransaction implements Driver.
func (d *BridgeDriver) SignTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx.NetworkPassphrase == "" {
		tx.NetworkPassphrase = d.passphrase
	}
	var res signResult
	if err := d.client.Call(ctx, MethodSignTransaction, tx, &res); err != nil {
		return Transaction{}, d.translate(err)
	}
	if res.SignedXDR == "" {
		return Transaction{}, fmt.Errorf("%w: bridge returned empty envelope", anchorerr.ErrSigningFailed)
	}
	return Transaction{XDR: res.SignedXDR, NetworkPassphrase: tx.NetworkPassphrase}, nil
}

// translate maps transport failures to DRIVER_UNAVAILABLE and user
// rejections to HANDSHAKE_REJECTED; anything else passes through.
func (d *BridgeDriver) translate(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Code == CodeUserRejected {
		return anchorerr.Classify(anchorerr.ErrHandshakeRejected, err)
	}
	if rpc.IsRetryable(err) {
		return anchorerr.WithDetails(anchorerr.Classify(anchorerr.ErrDriverUnavailable, err), map[string]string{"kind": d.kind.String()})
	}
	return err
}

// BridgeFactory returns a Factory producing BridgeDrivers from per-kind endpoint URLs.
func BridgeFactory(endpoints map[Kind]string, passphrase string, opts ...rpc.Option) Factory {
	return func(kind Kind) (Driver, error) {
		url := endpoints[kind]
		if url == "" {
			return nil, anchorerr.WithSuggestion(
				anchorerr.WithDetails(anchorerr.ErrDriverUnavailable, map[string]string{"kind": kind.String()}),
				"set wallet.bridges."+string(kind)+" in the config file",
			)
		}
		return NewBridgeDriver(kind, rpc.NewClient(url, opts...), passphrase), nil
	}
}

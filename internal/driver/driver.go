package driver

import (
	"context"
	"fmt"
	"strings"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Driver is the capability set every wallet kind provides.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	PublicKey(ctx context.Context) (string, error)
	SignTransaction(ctx context.Context, tx Transaction) (Transaction, error)
}

// Transaction is a transaction envelope in Stellar XDR form.
type Transaction struct {
	XDR               string `json:"xdr"`
	NetworkPassphrase string `json:"network_passphrase,omitempty"`
}

// Factory produces a driver for a kind.
type Factory func(kind Kind) (Driver, error)

// publicKeyLength is the length of a strkey-encoded ed25519 account ID.
const publicKeyLength = 56

// ValidatePublicKey checks that key looks like a Stellar account ID (G...).
func ValidatePublicKey(key string) error {
	if len(key) != publicKeyLength || !strings.HasPrefix(key, "G") {
		return fmt.Errorf("%w: public key must be a %d character account ID starting with G", anchorerr.ErrInvalidInput, publicKeyLength)
	}
	for _, r := range key {
		if (r < 'A' || r > 'Z') && (r < '2' || r > '7') {
			return fmt.Errorf("%w: public key contains invalid character %q", anchorerr.ErrInvalidInput, r)
		}
	}
	return nil
}

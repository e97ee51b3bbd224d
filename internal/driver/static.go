package driver

import (
	"context"
	"strings"
	"sync"
)

// StaticDriver is an in-process driver with a fixed public key.
// Each step can be made to fail by setting the matching error field.
type StaticDriver struct {
	Key string

	ConnectErr    error
	KeyErr        error
	DisconnectErr error
	SignErr       error

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	signed      []Transaction
}

// NewStaticDriver creates a driver returning key.
func NewStaticDriver(key string) *StaticDriver {
	return &StaticDriver{Key: key}
}

// MockKey returns a well-formed, deterministic account ID for kind.
func MockKey(kind Kind) string {
	name := strings.ToUpper(string(kind))
	return "G" + name + strings.Repeat("A", publicKeyLength-1-len(name))
}

// StaticFactory returns a Factory producing StaticDrivers keyed by MockKey.
func StaticFactory() Factory {
	return func(kind Kind) (Driver, error) {
		return NewStaticDriver(MockKey(kind)), nil
	}
}

// Connect implements Driver.
func (d *StaticDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	d.connected = true
	return nil
}

// Disconnect implements Driver.
func (d *StaticDriver) Disconnect(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	d.connected = false
	return d.DisconnectErr
}

// PublicKey implements Driver.
func (d *StaticDriver) PublicKey(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.KeyErr != nil {
		return "", d.KeyErr
	}
	return d.Key, nil
}

// SignTransaction implements Driver. The envelope is returned unchanged.
func (d *StaticDriver) SignTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	if d.SignErr != nil {
		return Transaction{}, d.SignErr
	}
	d.signed = append(d.signed, tx)
	return tx, nil
}

// Connected reports whether the last handshake succeeded without a later teardown.
func (d *StaticDriver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Calls returns how many times Connect and Disconnect were invoked.
func (d *StaticDriver) Calls() (connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects
}

// Signed returns the envelopes passed to SignTransaction.
func (d *StaticDriver) Signed() []Transaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Transaction, len(d.signed))
	copy(out, d.signed)
	return out
}

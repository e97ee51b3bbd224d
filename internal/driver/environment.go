package driver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mrz1836/go-sanitize"
)

// Environment reports which wallet runtime markers are present.
// Implementations must reflect the current state on every call.
type Environment interface {
	HasMarker(marker string) bool
}

// MapEnvironment is an in-memory Environment whose markers can be toggled at runtime.
type MapEnvironment struct {
	mu      sync.RWMutex
	markers map[string]bool
}

// NewMapEnvironment creates an environment with the given markers present.
func NewMapEnvironment(markers ...string) *MapEnvironment {
	env := &MapEnvironment{markers: make(map[string]bool, len(markers))}
	for _, m := range markers {
		env.markers[m] = true
	}
	return env
}

// Set marks marker as present.
func (e *MapEnvironment) Set(marker string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markers[marker] = true
}

// Unset marks marker as absent.
func (e *MapEnvironment) Unset(marker string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.markers, marker)
}

// HasMarker implements Environment.
func (e *MapEnvironment) HasMarker(marker string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.markers[marker]
}

// MarkerEnvPrefix prefixes the environment variable that advertises a wallet marker.
const MarkerEnvPrefix = "ANCHOR_WALLET_"

// markerDir is the directory under the anchor home holding marker files.
const markerDir = "wallets"

// OSEnvironment finds markers in the process environment or as files under
// <home>/wallets/. A wallet bridge advertises itself by setting
// ANCHOR_WALLET_<MARKER> or touching <home>/wallets/<marker>.
type OSEnvironment struct {
	home   string
	lookup func(string) (string, bool)
}

// NewOSEnvironment creates an environment rooted at home.
func NewOSEnvironment(home string) *OSEnvironment {
	return &OSEnvironment{home: home, lookup: os.LookupEnv}
}

// HasMarker implements Environment.
func (e *OSEnvironment) HasMarker(marker string) bool {
	name := sanitize.PathName(marker)
	if name == "" {
		return false
	}

	if v, ok := e.lookup(MarkerEnvPrefix + strings.ToUpper(name)); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "no", "off":
		default:
			return true
		}
	}

	if e.home == "" {
		return false
	}
	_, err := os.Stat(MarkerPath(e.home, name))
	return err == nil
}

// MarkerPath returns the marker file path for marker under home.
func MarkerPath(home, marker string) string {
	return filepath.Join(home, markerDir, sanitize.PathName(marker))
}

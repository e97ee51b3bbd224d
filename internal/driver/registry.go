package driver

import (
	"strings"
	"time"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// DefaultProbeTimeout bounds a single marker probe.
const DefaultProbeTimeout = 500 * time.Millisecond

// Logger is the logging surface the registry uses.
type Logger interface {
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// Registry probes which wallet kinds are usable and opens drivers for them.
// Availability is never cached; every query re-probes the environment.
type Registry struct {
	env          Environment
	factory      Factory
	retainer     Retainer
	probeTimeout time.Duration
	logger       Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory sets the factory used by Open.
func WithFactory(f Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithRetainer sets where the last active kind is remembered.
func WithRetainer(rt Retainer) Option {
	return func(r *Registry) { r.retainer = rt }
}

// WithProbeTimeout bounds each environment probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a registry probing env.
func NewRegistry(env Environment, opts ...Option) *Registry {
	r := &Registry{
		env:          env,
		factory:      StaticFactory(),
		probeTimeout: DefaultProbeTimeout,
		logger:       nopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DetectAvailable returns a descriptor for every kind whose marker is present right now.
func (r *Registry) DetectAvailable() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, k := range Kinds() {
		if !r.probe(k) {
			continue
		}
		d := descriptors[k]
		d.Available = true
		out = append(out, d)
	}
	return out
}

// AvailableKinds returns the kinds whose marker is present right now.
func (r *Registry) AvailableKinds() []Kind {
	avail := r.DetectAvailable()
	kinds := make([]Kind, 0, len(avail))
	for _, d := range avail {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

// IsAvailable reports whether kind's marker is present right now.
func (r *Registry) IsAvailable(kind Kind) bool {
	return kind.Valid() && r.probe(kind)
}

// Describe returns the metadata for kind with a fresh availability probe.
func (r *Registry) Describe(kind Kind) (Descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return Descriptor{}, unknownKind(string(kind))
	}
	d.Available = r.probe(kind)
	return d, nil
}

// Open returns a driver for kind. The kind must be available.
func (r *Registry) Open(kind Kind) (Driver, error) {
	if !kind.Valid() {
		return nil, unknownKind(string(kind))
	}
	if !r.probe(kind) {
		return nil, anchorerr.WithSuggestion(
			anchorerr.WithDetails(anchorerr.ErrDriverUnavailable, map[string]string{"kind": kind.String()}),
			"start the "+descriptors[kind].DisplayName+" bridge or set "+MarkerEnvPrefix+strings.ToUpper(kind.Marker()),
		)
	}
	drv, err := r.factory(kind)
	if err != nil {
		if anchorerr.Is(err, anchorerr.ErrDriverUnavailable) {
			return nil, err
		}
		return nil, anchorerr.Classify(anchorerr.ErrDriverUnavailable, err)
	}
	return drv, nil
}

// LastActive returns the retained kind, or KindNone.
func (r *Registry) LastActive() (Kind, error) {
	if r.retainer == nil {
		return KindNone, nil
	}
	return r.retainer.Load()
}

// Remember retains kind as the last active wallet.
func (r *Registry) Remember(kind Kind) error {
	if r.retainer == nil {
		return nil
	}
	return r.retainer.Save(kind)
}

// Forget drops the retained kind.
func (r *Registry) Forget() error {
	if r.retainer == nil {
		return nil
	}
	return r.retainer.Clear()
}

// probe checks kind's marker, treating a probe that outlives probeTimeout as absent.
func (r *Registry) probe(kind Kind) bool {
	ch := make(chan bool, 1)
	go func() {
		ch <- r.env.HasMarker(kind.Marker())
	}()

	timer := time.NewTimer(r.probeTimeout)
	defer timer.Stop()

	select {
	case ok := <-ch:
		r.logger.Debug("probe %s: available=%t", kind, ok)
		return ok
	case <-timer.C:
		r.logger.Debug("probe %s: timed out after %s", kind, r.probeTimeout)
		return false
	}
}

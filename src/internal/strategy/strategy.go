// FILE: muxd/src/internal/strategy/strategy.go
package strategy

import (
	"errors"
	"fmt"

	"muxd/src/internal/config"
	"muxd/src/internal/server"

	"github.com/lixenwraith/log"
)

// ErrConfiguration matches every error BuildServer returns
var ErrConfiguration = errors.New("configuration error")

// ConfigError is a fatal configuration problem found before any engine exists
type ConfigError struct {
	Index    int
	Listener string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: listener[%d] %s: %v", e.Index, e.Listener, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// Strategy assembles servers from listener specs
type Strategy struct {
	types    *Registry
	kernels  *Kernels
	defaults *defaultsTable
	policy   ElectionPolicy
	logger   *log.Logger
}

// Option customizes a Strategy
type Option func(*Strategy)

// WithPolicy replaces the master election policy
func WithPolicy(p ElectionPolicy) Option {
	return func(s *Strategy) {
		if p != nil {
			s.policy = p
		}
	}
}

func New(types *Registry, kernels *Kernels, logger *log.Logger, opts ...Option) *Strategy {
	s := &Strategy{
		types:    types,
		kernels:  kernels,
		defaults: newDefaultsTable(),
		policy:   DefaultPolicy,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterType binds a listener type, shadowing any built-in of the same name
func (s *Strategy) RegisterType(name string, impl Implementation) {
	s.types.Register(name, impl)
}

// UnregisterType removes a custom type; built-ins remain
func (s *Strategy) UnregisterType(name string) {
	s.types.Unregister(name)
}

// RegisterDefaults merges spec into the defaults of typ, spec wins
func (s *Strategy) RegisterDefaults(typ string, spec config.ListenerSpec) {
	s.defaults.set(normalize(typ), spec)
}

// Defaults returns a copy of the defaults of typ
func (s *Strategy) Defaults(typ string) config.ListenerSpec {
	return s.defaults.get(normalize(typ))
}

// BuildServer elects the master of specs and attaches the rest as secondaries.
// The returned server is not started.
func (s *Strategy) BuildServer(specs []config.ListenerSpec, pidFile, logFile string, daemon bool) (*server.Server, error) {
	if len(specs) == 0 {
		return nil, &ConfigError{Index: -1, Err: errors.New("no listeners")}
	}

	masterIdx := s.policy.Elect(specs)
	if masterIdx < 0 || masterIdx >= len(specs) {
		masterIdx = 0
	}

	master, impl, err := s.resolve(masterIdx, specs[masterIdx])
	if err != nil {
		return nil, err
	}
	if impl.Engine == nil {
		return nil, &ConfigError{Index: masterIdx, Listener: specs[masterIdx].Type, Err: errors.New("type has no engine implementation")}
	}

	srv := server.New(master, impl.Engine, s.logger)

	for i, spec := range specs {
		if i == masterIdx {
			continue
		}
		l, _, err := s.resolve(i, spec)
		if err != nil {
			return nil, err
		}
		srv.AddSecondary(l)
	}

	srv.SetDaemon(daemon)
	srv.SetLogFile(logFile)
	srv.SetPidFile(pidFile)
	srv.SetKernel(master.Kernel)

	s.logger.Info("msg", "Server assembled",
		"component", "strategy",
		"master", master.Spec.Address(),
		"master_type", impl.Name,
		"secondaries", len(specs)-1)

	return srv, nil
}

func (s *Strategy) resolve(index int, spec config.ListenerSpec) (*server.Listener, Implementation, error) {
	typ := normalize(spec.Type)
	fail := func(err error) (*server.Listener, Implementation, error) {
		return nil, Implementation{}, &ConfigError{Index: index, Listener: typ, Err: err}
	}

	if typ == "" {
		return fail(errors.New("empty listener type"))
	}

	impl, ok := s.types.Lookup(typ)
	if !ok {
		return fail(fmt.Errorf("unsupported listener type %q", typ))
	}

	spec.Type = typ
	merged := config.Merge(s.Defaults(typ), spec)

	if err := config.ValidateSettings(merged.Settings); err != nil {
		return fail(err)
	}

	if merged.Kernel == "" {
		return fail(errors.New("no kernel configured"))
	}
	kernel, err := s.kernels.Resolve(merged.Kernel)
	if err != nil {
		return fail(err)
	}

	return server.NewListener(merged, impl.Class, kernel), impl, nil
}

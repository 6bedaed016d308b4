// Package weave runs the weaving pipeline for one aspect and owns the result.
//
//	AspectRequest -> registry -> synth -> compiler -> guard.Unit
//	              -> Apply (bundle) -> Install (patch + verify)
//
// A Session moves through Unbuilt, BundleReady and Installed; any failing
// step moves it to Failed. Installed and Failed are terminal. Every transition
// is written to the journal when one is configured.
package weave

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/contractweave/internal/compiler"
	"github.com/roach88/contractweave/internal/guard"
	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/patch"
	"github.com/roach88/contractweave/internal/registry"
	"github.com/roach88/contractweave/internal/report"
	"github.com/roach88/contractweave/internal/snapshot"
	"github.com/roach88/contractweave/internal/synth"
)

// Host is the interception capability sessions install into.
// *patch.Runtime implements it.
type Host interface {
	AddResolver(key string, res patch.Resolver)
	RemoveResolver(key string)
	Patch(session string, target patch.Target, prefix, postfix, finalizer patch.HookMethod) error
	HasAnyPatches(session string) bool
	Unpatch(session string)
}

// Journal records session state transitions. *store.Store implements it.
type Journal interface {
	RecordWeaving(ctx context.Context, rec ir.WeavingRecord) error
}

// Options are shared by every session of a program.
type Options struct {
	// Registry resolves context types. Required.
	Registry *registry.Registry

	// Host receives installed patches. Required.
	Host Host

	// Compiler loads guard units. Defaults to a private compiler.
	Compiler *compiler.Compiler

	// Modules are the packages guard units may reference. Defaults to every
	// module of Registry.
	Modules []registry.Module

	// Reporter defaults to a reporter writing the default log file and stderr.
	Reporter guard.Reporter

	// Snapshots defaults to one store per session.
	Snapshots *snapshot.Store

	Journal Journal
	IDs     IDGenerator
	Logger  *zap.Logger
}

// Session is one weaving request and the guard unit it produced.
type Session struct {
	id       string
	aspectID string
	req      ir.AspectRequest
	spec     ir.AspectSpec
	unit     *guard.Unit
	source   []byte
	host     Host
	journal  Journal
	logger   *zap.Logger

	mu     sync.Mutex
	state  ir.WeavingState
	bundle *guard.Bundle
}

// New resolves, synthesizes and compiles req. It returns a session in state
// Unbuilt, or the first fatal error. Nothing is loaded or installed on error.
func New(ctx context.Context, req ir.AspectRequest, opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, errors.New("weave: options need a registry")
	}
	if opts.Host == nil {
		return nil, errors.New("weave: options need a host runtime")
	}
	opts = withDefaults(opts)

	s := &Session{
		id:       opts.IDs.Generate(),
		aspectID: ir.MustAspectID(req),
		req:      req,
		host:     opts.Host,
		journal:  opts.Journal,
		logger:   opts.Logger.With(zap.String("aspect", req.GuardClassName)),
		state:    ir.StateUnbuilt,
	}

	if err := s.build(ctx, opts); err != nil {
		s.transition(ctx, ir.StateFailed, err.Error())
		return nil, err
	}
	s.transition(ctx, ir.StateUnbuilt, s.unit.Name())
	return s, nil
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Compiler == nil {
		opts.Compiler = compiler.New(compiler.Options{Logger: opts.Logger})
	}
	if opts.Modules == nil {
		opts.Modules = opts.Registry.Modules()
	}
	if opts.Reporter == nil {
		opts.Reporter = report.New(report.Options{Console: os.Stderr, Logger: opts.Logger})
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	return opts
}

func (s *Session) build(ctx context.Context, opts Options) error {
	class := s.req.GuardClassName

	entry, err := opts.Registry.Resolve(s.req.ContextTypeName)
	if err != nil {
		return ir.NewResolutionError(class, fmt.Sprintf("context type: %v", err))
	}
	s.spec = ir.NewAspectSpec(s.req, entry.Type)

	src, err := synth.Generate(synth.Request{
		Spec:         s.spec,
		ParamNames:   entry.ParamNames(s.req.HookedMethodName),
		PackageNames: opts.Registry.PackageNameOf,
	})
	if err != nil {
		return err
	}

	unit, err := opts.Compiler.Compile(ctx, src, opts.Modules)
	if err != nil {
		return err
	}
	s.source = unit.Source

	s.unit = guard.New(unit.Name, s.spec, unit, guard.Options{
		Snapshots: opts.Snapshots,
		Reporter:  opts.Reporter,
		Logger:    opts.Logger,
	})
	return nil
}

// Apply builds the installation bundle. A missing method is a ResolutionError
// and fails the session.
func (s *Session) Apply(ctx context.Context) (*guard.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case ir.StateBundleReady:
		return s.bundle, nil
	case ir.StateUnbuilt:
	default:
		return nil, fmt.Errorf("weave: session %s is %s", s.id, s.state)
	}

	b, err := s.unit.Apply(s.spec.ContextType)
	if err != nil {
		s.transitionLocked(ctx, ir.StateFailed, err.Error())
		return nil, err
	}
	s.bundle = b
	s.transitionLocked(ctx, ir.StateBundleReady, b.Target.String())
	return b, nil
}

// Install installs the bundle built by Apply and verifies the interception is
// active. On failure the patch session is rolled back and the session fails.
func (s *Session) Install(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ir.StateBundleReady {
		return fmt.Errorf("weave: session %s is %s, want %s", s.id, s.state, ir.StateBundleReady)
	}
	b := s.bundle
	class := s.spec.GuardClassName

	unit := s.unit
	s.host.AddResolver(unit.Name(), func(name string) (patch.Unit, bool) {
		if name == unit.Name() {
			return unit, true
		}
		return nil, false
	})

	if err := s.host.Patch(b.Session, b.Target, b.Prefix, b.Postfix, b.Finalizer); err != nil {
		s.host.Unpatch(b.Session)
		s.host.RemoveResolver(unit.Name())
		werr := ir.NewInstallationError(class, "patch request failed", err)
		s.transitionLocked(ctx, ir.StateFailed, werr.Error())
		return werr
	}
	if !s.host.HasAnyPatches(b.Session) {
		s.host.Unpatch(b.Session)
		s.host.RemoveResolver(unit.Name())
		werr := ir.NewInstallationError(class, "installation had no effect", nil)
		s.transitionLocked(ctx, ir.StateFailed, werr.Error())
		return werr
	}

	s.transitionLocked(ctx, ir.StateInstalled, b.Target.String())
	s.logger.Info("aspect installed",
		zap.String("session", s.id),
		zap.String("unit", s.unit.Name()),
		zap.Stringer("target", b.Target))
	return nil
}

// InvokeApply builds the bundle and installs it, failing fast.
func (s *Session) InvokeApply(ctx context.Context) error {
	if _, err := s.Apply(ctx); err != nil {
		return err
	}
	return s.Install(ctx)
}

// HasPlanningError reports whether a predicate of this session ever failed.
func (s *Session) HasPlanningError() bool { return s.unit.HasPlanningError() }

// ResetPlanningError clears the planning-error flag.
func (s *Session) ResetPlanningError() { s.unit.ResetPlanningError() }

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AspectID returns the content hash of the request.
func (s *Session) AspectID() string { return s.aspectID }

// Spec returns the resolved aspect.
func (s *Session) Spec() ir.AspectSpec { return s.spec }

// Unit returns the guard unit.
func (s *Session) Unit() *guard.Unit { return s.unit }

// Source returns the formatted source of the loaded unit.
func (s *Session) Source() []byte { return s.source }

// State returns the current state.
func (s *Session) State() ir.WeavingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(ctx context.Context, to ir.WeavingState, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(ctx, to, detail)
}

func (s *Session) transitionLocked(ctx context.Context, to ir.WeavingState, detail string) {
	s.state = to
	s.logger.Debug("weaving state", zap.String("session", s.id), zap.String("state", string(to)))
	if s.journal == nil {
		return
	}
	rec := ir.WeavingRecord{
		SessionID: s.id,
		AspectID:  s.aspectID,
		Guard:     s.req.GuardClassName,
		Method:    s.req.HookedMethodName,
		State:     to,
		Detail:    detail,
	}
	if s.spec.ContextType != nil {
		rec.ContextType = registry.TypeID(s.spec.ContextType)
	} else {
		rec.ContextType = s.req.ContextTypeName
	}
	if err := s.journal.RecordWeaving(ctx, rec); err != nil {
		s.logger.Error("journal write failed", zap.String("session", s.id), zap.Error(err))
	}
}

// WeaveAll weaves and installs every request with shared options, stopping at
// the first error.
func WeaveAll(ctx context.Context, reqs []ir.AspectRequest, opts Options) ([]*Session, error) {
	sessions := make([]*Session, 0, len(reqs))
	for _, req := range reqs {
		s, err := New(ctx, req, opts)
		if err != nil {
			return sessions, err
		}
		if err := s.InvokeApply(ctx); err != nil {
			return sessions, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

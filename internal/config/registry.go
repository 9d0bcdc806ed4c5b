package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
	"github.com/MrWong99/quizhost/pkg/provider/s2s"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	s2s       map[string]func(ProviderEntry) (s2s.Provider, error)
	tts       map[string]func(ProviderEntry) (tts.Provider, error)
	factcheck map[string]func(ProviderEntry) (factcheck.Checker, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		s2s:       make(map[string]func(ProviderEntry) (s2s.Provider, error)),
		tts:       make(map[string]func(ProviderEntry) (tts.Provider, error)),
		factcheck: make(map[string]func(ProviderEntry) (factcheck.Checker, error)),
	}
}

// RegisterS2S registers a live channel provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterS2S(name string, factory func(ProviderEntry) (s2s.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s2s[name] = factory
}

// RegisterTTS registers a summary speech provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterFactCheck registers a fact-check backend factory under name.
func (r *Registry) RegisterFactCheck(name string, factory func(ProviderEntry) (factcheck.Checker, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factcheck[name] = factory
}

// CreateS2S instantiates the live channel provider registered under
// entry.Name. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateS2S(entry ProviderEntry) (s2s.Provider, error) {
	r.mu.RLock()
	factory, ok := r.s2s[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: s2s/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates the summary speech provider registered under
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateFactCheck instantiates the fact-check backend registered under
// entry.Name.
func (r *Registry) CreateFactCheck(entry ProviderEntry) (factcheck.Checker, error) {
	r.mu.RLock()
	factory, ok := r.factcheck[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: factcheck/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

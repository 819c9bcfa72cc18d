package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/pkg/activity"
)

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	scheduler future.Scheduler
	transport Transport
	logger    Logger
	activity  *activity.Emitter
	evaluator Evaluator
	newID     func() string
}

// WithScheduler sets the scheduler every future of the registry runs its
// continuations on. Defaults to future.Default(), a background Serial worker.
// Pass a future.Queue and drain it from one goroutine to keep record and
// store callbacks on the caller's goroutine.
func WithScheduler(scheduler future.Scheduler) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.scheduler = scheduler
	}
}

// WithTransport sets the transport used by URL endpoints.
func WithTransport(transport Transport) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.transport = transport
	}
}

// WithActivity emits lifecycle activity events through emitter.
func WithActivity(emitter *activity.Emitter) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.activity = emitter
	}
}

// WithEvaluator sets the engine Record.Evaluate and Store.FilterExpr use
// when called without one. Defaults to an expr evaluator with a program
// cache and EntityFunctions.
func WithEvaluator(evaluator Evaluator) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.evaluator = evaluator
	}
}

// WithIDGenerator overrides how store ids are minted.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(cfg *registryConfig) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}

// Registry is the application root for entities: it owns shared models, the
// identity cache of typed records and the set of live stores. Its maps are
// safe for concurrent use; records and stores themselves are not and must be
// driven from the goroutine that runs the scheduler.
type Registry struct {
	cfg registryConfig

	mu     sync.RWMutex
	models map[string]*Model
	cache  map[string]map[string]*Record
	stores map[string]*Store
}

// NewRegistry constructs an empty registry. Without WithScheduler, record
// and store continuations, and the listeners they trigger, run one at a time
// on the future.Default() goroutine rather than the caller's.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		logger: noopLogger{},
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.scheduler == nil {
		cfg.scheduler = future.Default()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = NewExprEvaluator(
			ExprWithProgramCache(NewProgramCache()),
			ExprWithFunctionRegistry(EntityFunctions()),
		)
	}
	return &Registry{
		cfg:    cfg,
		models: map[string]*Model{},
		cache:  map[string]map[string]*Record{},
		stores: map[string]*Store{},
	}
}

// Scheduler returns the registry scheduler.
func (r *Registry) Scheduler() future.Scheduler {
	return r.cfg.scheduler
}

// Evaluator returns the registry's default expression engine.
func (r *Registry) Evaluator() Evaluator {
	return r.cfg.evaluator
}

func (r *Registry) transport() Transport {
	return r.cfg.transport
}

func (r *Registry) logger() Logger {
	if r.cfg.logger == nil {
		return noopLogger{}
	}
	return r.cfg.logger
}

func (r *Registry) emit(ctx context.Context, event activity.Event) {
	if !r.cfg.activity.Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.cfg.activity.Emit(ctx, event); err != nil {
		r.logger().Log(LogEvent{Component: "activity", Action: event.Verb, Type: event.ObjectType, ID: event.ObjectID, Err: err})
	}
}

// NewModel builds a model that is not shared through the registry.
func (r *Registry) NewModel(cfg ModelConfig, opts ...ModelOption) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := modelOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Model{cfg: cfg, registry: r, transport: options.transport}, nil
}

// DefineModel builds the shared model of cfg.Type. Defining a type twice
// replaces the shared instance; plain models are never shared.
func (r *Registry) DefineModel(cfg ModelConfig, opts ...ModelOption) (*Model, error) {
	model, err := r.NewModel(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if model.IsPlain() {
		return model, nil
	}
	r.mu.Lock()
	r.models[cfg.Type] = model
	r.mu.Unlock()
	return model, nil
}

// DefineModels defines every config in order.
func (r *Registry) DefineModels(cfgs []ModelConfig, opts ...ModelOption) error {
	for _, cfg := range cfgs {
		if _, err := r.DefineModel(cfg, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Model returns the shared model of typ.
func (r *Registry) Model(typ string) (*Model, error) {
	r.mu.RLock()
	model, ok := r.models[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, typ)
	}
	return model, nil
}

// ModelTypes lists the shared model types in name order.
func (r *Registry) ModelTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.models))
	for typ := range r.models {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// AddToCache indexes rec under its type and id. Records of plain models and
// records without an id are not cached.
func (r *Registry) AddToCache(rec *Record) {
	if rec == nil || rec.model == nil || rec.model.IsPlain() {
		return
	}
	key, ok := KeyOf(rec.ID())
	if !ok || !hasID(rec.ID()) {
		return
	}
	typ := rec.model.Type()
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.cache[typ]
	if !ok {
		byID = map[string]*Record{}
		r.cache[typ] = byID
	}
	byID[key] = rec
}

// GetFromCache returns the live record of typ with id, or nil.
func (r *Registry) GetFromCache(typ string, id any) *Record {
	key, ok := KeyOf(id)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[typ][key]
}

// RemoveFromCache drops the entry of typ with id.
func (r *Registry) RemoveFromCache(typ string, id any) {
	key, ok := KeyOf(id)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if byID, ok := r.cache[typ]; ok {
		delete(byID, key)
		if len(byID) == 0 {
			delete(r.cache, typ)
		}
	}
}

func (r *Registry) removeRecord(rec *Record, typ string, id any) {
	key, ok := KeyOf(id)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if byID, ok := r.cache[typ]; ok && byID[key] == rec {
		delete(byID, key)
		if len(byID) == 0 {
			delete(r.cache, typ)
		}
	}
}

// LookupStore resolves a store id token.
func (r *Registry) LookupStore(id string) *Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stores[id]
}

// EachStore calls fn for every live store in id order until fn returns false.
func (r *Registry) EachStore(fn func(*Store) bool) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		store := r.LookupStore(id)
		if store == nil {
			continue
		}
		if !fn(store) {
			return
		}
	}
}

func (r *Registry) registerStore(store *Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[store.id]; exists {
		return fmt.Errorf("entity: store %q already registered", store.id)
	}
	r.stores[store.id] = store
	return nil
}

func (r *Registry) unregisterStore(id string) {
	r.mu.Lock()
	delete(r.stores, id)
	r.mu.Unlock()
}

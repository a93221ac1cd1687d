// Package modulemanager wires application modules together: registration,
// migration, initialization and route setup.
package modulemanager

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"melodyhub/internal/logger"
)

// Module is the interface every application module implements.
type Module interface {
	ID() string                // unique identifier
	Name() string              // display name
	Core() bool                // core modules cannot be disabled
	Migrate(db *gorm.DB) error // run database migrations
	Init() error               // initialize the module
}

// RouteRegistrar is an optional interface for modules that expose HTTP routes.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// ModuleRegistry manages module registration and initialization.
type ModuleRegistry struct {
	mu          sync.RWMutex
	modules     map[string]Module
	order       []string // registration order, also init order
	disabled    map[string]bool
	initialized bool
}

// Registry is the global module registry.
var Registry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules:  make(map[string]Module),
		disabled: make(map[string]bool),
	}
}

// Register adds a module to the global registry.
func Register(m Module) {
	Registry.Register(m)
}

// Register adds a module to the registry.
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module registered after initialization", "module", m.ID())
	}
	if _, exists := r.modules[m.ID()]; !exists {
		r.order = append(r.order, m.ID())
	}
	r.modules[m.ID()] = m
	logger.Info("module registered", "module", m.Name(), "id", m.ID())
}

// LoadAll migrates and initializes every enabled module in registration order.
func LoadAll(db *gorm.DB) error {
	return Registry.LoadAll(db)
}

// LoadAll migrates and initializes every enabled module in registration order.
func (r *ModuleRegistry) LoadAll(db *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module system already initialized")
		return nil
	}

	for _, id := range r.order {
		m := r.modules[id]
		if r.disabled[id] {
			if m.Core() {
				return fmt.Errorf("attempted to disable core module %s", id)
			}
			logger.Warn("skipping disabled module", "module", m.Name())
			continue
		}

		if err := m.Migrate(db); err != nil {
			return fmt.Errorf("migrating %s: %w", m.Name(), err)
		}
		if err := m.Init(); err != nil {
			return fmt.Errorf("initializing %s: %w", m.Name(), err)
		}
		logger.Info("module loaded", "module", m.Name())
	}

	r.initialized = true
	return nil
}

// DisableModule marks a non-core module as disabled before LoadAll runs.
func (r *ModuleRegistry) DisableModule(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.modules[id]
	if !exists {
		logger.Warn("attempted to disable unknown module", "id", id)
		return
	}
	if m.Core() {
		logger.Error("cannot disable core module", "id", id)
		return
	}
	r.disabled[id] = true
}

// GetModule returns a registered module by id.
func GetModule(id string) (Module, bool) {
	return Registry.GetModule(id)
}

// GetModule returns a registered module by id.
func (r *ModuleRegistry) GetModule(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, exists := r.modules[id]
	return m, exists
}

// ListModules returns all registered modules sorted by id.
func (r *ModuleRegistry) ListModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	modules := make([]Module, 0, len(ids))
	for _, id := range ids {
		modules = append(modules, r.modules[id])
	}
	return modules
}

// RegisterRoutes registers routes for every module implementing RouteRegistrar.
func RegisterRoutes(router *gin.Engine) {
	Registry.RegisterRoutes(router)
}

// RegisterRoutes registers routes for every module implementing RouteRegistrar.
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if r.disabled[id] {
			continue
		}
		if registrar, ok := r.modules[id].(RouteRegistrar); ok {
			logger.Info("registering routes", "module", r.modules[id].Name())
			registrar.RegisterRoutes(router)
		}
	}
}

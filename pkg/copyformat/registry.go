package copyformat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/logger"
	"go.uber.org/zap"
)

// Format is a registered copy format.
type Format struct {
	Name string
	From FromRoutine
	To   ToRoutine
}

// Registry manages copy format registration and lookup
type Registry struct {
	formats map[string]*Format
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new format registry
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]*Format),
		logger:  logger.Get().With(zap.String("component", "format_registry")),
	}
}

// Register registers both routines of a format. Either routine may be nil
// for a one-directional format.
func (r *Registry) Register(name string, from FromRoutine, to ToRoutine) error {
	if name == "" {
		return errors.New(errors.ErrorTypeConfig, "format name is empty")
	}
	if from == nil && to == nil {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s has no routines", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s already registered", name))
	}

	r.formats[name] = &Format{Name: name, From: from, To: to}
	r.logger.Debug("copy format registered",
		zap.String("name", name),
		zap.Bool("from", from != nil),
		zap.Bool("to", to != nil))
	return nil
}

// Lookup returns a registered format
func (r *Registry) Lookup(name string) (*Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.formats[name]
	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("COPY format \"%s\" not recognized", name)).
			WithDetail("format", name)
	}
	return f, nil
}

// FromRoutine returns the read routine of a format
func (r *Registry) FromRoutine(name string) (FromRoutine, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if f.From == nil {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s does not support COPY FROM", name))
	}
	return f.From, nil
}

// ToRoutine returns the write routine of a format
func (r *Registry) ToRoutine(name string) (ToRoutine, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if f.To == nil {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s does not support COPY TO", name))
	}
	return f.To, nil
}

// List returns the registered format names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered formats (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.formats = make(map[string]*Format)
}

// Register registers a format in the global registry
func Register(name string, from FromRoutine, to ToRoutine) error {
	return globalRegistry.Register(name, from, to)
}

// Lookup returns a format from the global registry
func Lookup(name string) (*Format, error) {
	return globalRegistry.Lookup(name)
}

// List returns the formats of the global registry
func List() []string {
	return globalRegistry.List()
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}

// FormatInfo provides information about a format
type FormatInfo struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Version      string                 `json:"version"`
	Extensions   []string               `json:"extensions"`
	Capabilities []string               `json:"capabilities"`
	Options      map[string]interface{} `json:"options"`
}

// Catalog manages format metadata
type Catalog struct {
	formats map[string]*FormatInfo
	mu      sync.RWMutex
}

// NewCatalog creates a new format catalog
func NewCatalog() *Catalog {
	return &Catalog{
		formats: make(map[string]*FormatInfo),
	}
}

// Register adds a format to the catalog
func (c *Catalog) Register(info *FormatInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.formats[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s already in catalog", info.Name))
	}

	c.formats[info.Name] = info
	return nil
}

// Get retrieves format information
func (c *Catalog) Get(name string) (*FormatInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.formats[name]
	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s not found in catalog", name))
	}
	return info, nil
}

// List returns all formats in the catalog sorted by name
func (c *Catalog) List() []*FormatInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*FormatInfo, 0, len(c.formats))
	for _, info := range c.formats {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Global catalog instance
var globalCatalog = NewCatalog()

// RegisterFormatInfo registers format information in the global catalog
func RegisterFormatInfo(info *FormatInfo) error {
	return globalCatalog.Register(info)
}

// GetFormatInfo retrieves format information from the global catalog
func GetFormatInfo(name string) (*FormatInfo, error) {
	return globalCatalog.Get(name)
}

// ListFormatInfo lists all formats in the global catalog
func ListFormatInfo() []*FormatInfo {
	return globalCatalog.List()
}

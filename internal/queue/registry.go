package queue

import (
	"fmt"
	"sync"
)

// Registry maps queue types to adapter factories, mirroring the storage
// registry. Adapters register in init() and are blank-imported by the
// composition root.
type Registry struct {
	factories map[string]QueueFactory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]QueueFactory),
	}
}

func (r *Registry) Register(queueType string, factory QueueFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[queueType] = factory
}

func (r *Registry) Create(queueType string, config QueueConfig) (Queue, error) {
	r.mu.RLock()
	factory, exists := r.factories[queueType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("queue type %s not registered", queueType)
	}

	return factory.Create(config)
}

var DefaultRegistry = NewRegistry()

func Register(queueType string, factory QueueFactory) {
	DefaultRegistry.Register(queueType, factory)
}

func Create(queueType string, config QueueConfig) (Queue, error) {
	return DefaultRegistry.Create(queueType, config)
}

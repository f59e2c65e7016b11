package provider

import (
	"sync"

	"sns-ingest/internal/domain"
)

// Registry создаёт и хранит адаптеры по имени провайдера.
type Registry struct {
	mu       sync.Mutex
	options  map[string]Options
	adapters map[string]domain.ProviderAdapter
}

// NewRegistry создаёт реестр с настройками провайдеров.
func NewRegistry(options map[string]Options) *Registry {
	if options == nil {
		options = map[string]Options{}
	}
	return &Registry{options: options, adapters: make(map[string]domain.ProviderAdapter)}
}

// Get возвращает адаптер провайдера. Неизвестные провайдеры получают Generic.
func (r *Registry) Get(name string) domain.ProviderAdapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[name]; ok {
		return a
	}
	var a domain.ProviderAdapter
	switch name {
	case XiaohongshuName:
		a = NewXiaohongshu(r.options[name])
	default:
		a = NewGeneric(name, r.options[name])
	}
	r.adapters[name] = a
	return a
}

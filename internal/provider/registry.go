package provider

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/holdfast/auth-service/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registry holds the configured providers and resolves them by id.
// It is read-only after construction and performs no network calls.
type Registry struct {
	byID map[ID]Descriptor
}

// NewRegistry validates and registers the given descriptors. Ids must be unique
// and belong to the supported set.
func NewRegistry(list ...Descriptor) (*Registry, error) {
	m := make(map[ID]Descriptor, len(list))
	for _, d := range list {
		d.ID = Normalize(string(d.ID))
		v, ok := variants[d.ID]
		if !ok {
			return nil, fmt.Errorf("provider registry: unsupported provider %q", d.ID)
		}
		if d.Claims == nil {
			d.Claims = v.claims
		}
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("provider registry: invalid descriptor %q: %w", d.ID, err)
		}
		if _, dup := m[d.ID]; dup {
			return nil, fmt.Errorf("provider registry: duplicate provider %q", d.ID)
		}
		m[d.ID] = d
	}
	return &Registry{byID: m}, nil
}

// Resolve looks a provider up case-insensitively.
func (r *Registry) Resolve(raw string) (Descriptor, error) {
	id := Normalize(raw)
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, domain.ErrProviderNotSupported(string(id))
	}
	return d, nil
}

// IDs returns the configured provider ids in a stable order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

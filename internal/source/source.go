// Package source holds the story source adapters. Each adapter returns a
// batch of untagged stories; tagging and storage happen in the warehouse.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

// ErrUnknownVariant is returned for a variant with no adapter.
var ErrUnknownVariant = errors.New("unknown source variant")

// Source produces a batch of stories.
type Source interface {
	Variant() types.Variant
	Fetch(ctx context.Context) ([]types.Story, error)
}

// Set maps variants to their adapters.
type Set map[types.Variant]Source

// NewSet builds a Set from adapters.
func NewSet(sources ...Source) Set {
	s := make(Set, len(sources))
	for _, src := range sources {
		s[src.Variant()] = src
	}
	return s
}

// Get returns the adapter for a variant.
func (s Set) Get(v types.Variant) (Source, error) {
	src, ok := s[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return src, nil
}

// ParseVariant validates a variant name given on the command line.
func ParseVariant(name string) (types.Variant, error) {
	switch v := types.Variant(name); v {
	case types.VariantAPI, types.VariantSnapshot:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

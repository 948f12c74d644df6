package registry

import (
	internalregistry "github.com/SmitUplenchwar2687/jobpacer/internal/registry"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/limiter"
)

// Registry maps limiter names to limiters. Unknown names always admit.
type Registry = internalregistry.Registry

// Built-in limiter names.
const (
	Auth             = internalregistry.Auth
	ImageGeneration  = internalregistry.ImageGeneration
	DocumentEdit     = internalregistry.DocumentEdit
	PromptGeneration = internalregistry.PromptGeneration
	FileTransfer     = internalregistry.FileTransfer
	URLSigning       = internalregistry.URLSigning
)

var ErrAlreadyRegistered = internalregistry.ErrAlreadyRegistered

// New creates an empty registry.
func New(c clock.Clock) *Registry {
	return internalregistry.New(c)
}

// FromConfig builds a registry from a name to config table.
func FromConfig(table map[string]limiter.Config, c clock.Clock) (*Registry, error) {
	return internalregistry.FromConfig(table, c)
}

// NewDefault builds a registry from DefaultTable.
func NewDefault(c clock.Clock) *Registry {
	return internalregistry.NewDefault(c)
}

// DefaultTable returns the built-in limiter table.
func DefaultTable() map[string]limiter.Config {
	return internalregistry.DefaultTable()
}

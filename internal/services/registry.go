package services

import (
	"errors"

	"campaign-sheet-service/internal/models"
)

// ErrUnknownPlatform is returned for a platform with no service
var ErrUnknownPlatform = errors.New("unknown platform")

// Registry looks up the service of a platform
type Registry struct {
	services map[models.Platform]SheetService
}

// NewRegistry indexes services by their platform
func NewRegistry(services ...SheetService) *Registry {
	r := &Registry{services: make(map[models.Platform]SheetService, len(services))}
	for _, s := range services {
		r.services[s.Platform()] = s
	}
	return r
}

// Get resolves a platform id or prefix to its service
func (r *Registry) Get(platform string) (SheetService, error) {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		return nil, ErrUnknownPlatform
	}
	s, ok := r.services[p]
	if !ok {
		return nil, ErrUnknownPlatform
	}
	return s, nil
}

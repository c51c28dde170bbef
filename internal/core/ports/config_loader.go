package ports

import "go.trai.ch/pie/internal/core/domain"

// ConfigLoader defines the interface for loading the runtime configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds the configuration file starting at cwd, applies environment
	// overrides, and returns the effective configuration.
	Load(cwd string) (*domain.Config, error)
}

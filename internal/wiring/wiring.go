// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pie/internal/adapters/config"
	_ "go.trai.ch/pie/internal/adapters/fs"
	_ "go.trai.ch/pie/internal/adapters/linker"
	_ "go.trai.ch/pie/internal/adapters/lockfile"
	_ "go.trai.ch/pie/internal/adapters/logger"
	_ "go.trai.ch/pie/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/pie/internal/app"
)

package port

import (
	"github.com/arvoh/hass2vpp/internal/core/domain"
)

// DeviceRegistry lists the devices known to the platform.
type DeviceRegistry interface {
	Devices() ([]domain.Device, error)
}

// EntityRegistry lists the entities known to the platform.
type EntityRegistry interface {
	Entities() ([]domain.Entity, error)
}

// StateProvider returns the current state of an entity from an in-memory
// store. Unknown entities yield a missing state, never an error.
type StateProvider interface {
	State(entityId string) domain.StateValue
}

// RegistryClient is a connection-oriented backend serving registries and
// live entity states.
type RegistryClient interface {
	DeviceRegistry
	EntityRegistry
	StateProvider

	Connect() error
	Close() error
	Connected() bool
}

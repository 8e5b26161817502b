package domain

// Device is an entry of the platform device registry. A child device links
// to its parent through ViaDeviceId; the field is empty for root devices.
type Device struct {
	Id           string
	Name         string
	Manufacturer string
	Model        string
	ViaDeviceId  string
}

// Entity is a single reported value (sensor, number, ...) owned by a device.
// DisabledBy is empty when the entity reports state.
type Entity struct {
	Id         string
	DeviceId   string
	Platform   string
	DisabledBy string
}

func (e Entity) Enabled() bool {
	return e.DisabledBy == ""
}

// Package account holds the account/device aggregate persisted by the
// document store.
package account

import "time"

// Device is a client instance registered against an account. A device id may
// appear in several account documents, but at steady state at most one of
// those entries is active; registration reconciliation maintains that.
type Device struct {
	DeviceID string    `bson:"deviceId" json:"deviceId"`
	LastSeen time.Time `bson:"lastSeen" json:"lastSeen"`
	Active   bool      `bson:"active" json:"active"`
	// MaasToken is the partner-issued push/messaging token, supplied after
	// registration and independent of the active flag.
	MaasToken string `bson:"maasToken,omitempty" json:"maasToken,omitempty"`
}

// Account aggregates the devices registered for one identity. The id is the
// subject of the partner's identity tokens. Device ids are unique within one
// account.
type Account struct {
	ID      string   `bson:"_id" json:"iuc"`
	Devices []Device `bson:"devices" json:"devices"`
}

// New creates an account with a single active device.
func New(id, deviceID string, now time.Time) Account {
	return Account{
		ID:      id,
		Devices: []Device{{DeviceID: deviceID, LastSeen: now, Active: true}},
	}
}

// UpsertDevice returns a copy of the account with deviceID active and its
// lastSeen refreshed. An unknown device is appended; an existing one is
// updated in place, keeping order, other devices and their maas tokens
// untouched.
func (a Account) UpsertDevice(deviceID string, now time.Time) Account {
	devices := make([]Device, len(a.Devices))
	copy(devices, a.Devices)

	for i := range devices {
		if devices[i].DeviceID == deviceID {
			devices[i].Active = true
			devices[i].LastSeen = now
			return Account{ID: a.ID, Devices: devices}
		}
	}
	devices = append(devices, Device{DeviceID: deviceID, LastSeen: now, Active: true})
	return Account{ID: a.ID, Devices: devices}
}

// WithMaasToken returns a copy of the account where the matching device
// carries the given maas token. An account without the device is returned
// unchanged.
func (a Account) WithMaasToken(deviceID, token string) Account {
	devices := make([]Device, len(a.Devices))
	copy(devices, a.Devices)
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			devices[i].MaasToken = token
		}
	}
	return Account{ID: a.ID, Devices: devices}
}

// Device returns the device entry with the given id.
func (a Account) Device(deviceID string) (Device, bool) {
	for _, d := range a.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// ActiveDevice returns the device entry with the given id when it is active.
func (a Account) ActiveDevice(deviceID string) (Device, bool) {
	d, ok := a.Device(deviceID)
	if !ok || !d.Active {
		return Device{}, false
	}
	return d, true
}

// FilterDevices returns a copy of the account keeping only devices whose
// active flag equals the given value.
func (a Account) FilterDevices(active bool) Account {
	filtered := make([]Device, 0, len(a.Devices))
	for _, d := range a.Devices {
		if d.Active == active {
			filtered = append(filtered, d)
		}
	}
	return Account{ID: a.ID, Devices: filtered}
}

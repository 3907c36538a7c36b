package db

import "github.com/urmzd/peerlobby/pkg/device"

func devicePresence(id, name, role string) device.Presence {
	return device.Presence{ClientID: id, Name: name, Role: device.ParseRole(role)}
}

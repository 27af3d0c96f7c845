package domain

type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audioinput"
	DeviceVideoInput  DeviceKind = "videoinput"
	DeviceAudioOutput DeviceKind = "audiooutput"
)

type DeviceID string

type Device struct {
	ID    DeviceID   `json:"id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

package presence

import (
	"fmt"
	"regexp"
	"strings"
)

// Device classes reported in participant records.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Client types. CLI peers can speak the compact frame codec with each other.
const (
	ClientTypeCLI = "cli"
	ClientTypeWeb = "web"
)

var mobileAgent = regexp.MustCompile(`(?i)mobile`)

// Participant is one connected peer inside a room.
type Participant struct {
	// PeerID is assigned by the relay when the connection is accepted.
	// It changes on every reconnect.
	PeerID string `json:"peerId"`

	// ClientID is supplied by the caller and survives reconnects.
	ClientID string `json:"clientId"`

	DeviceClass string `json:"deviceClass"`
	ClientType  string `json:"clientType,omitempty"`
	DisplayName string `json:"displayName"`
}

// DeviceClassFromUserAgent maps a User-Agent header to a coarse device class.
func DeviceClassFromUserAgent(userAgent string) string {
	if mobileAgent.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// DisplayNameFor derives a human readable, non-unique label for a participant.
func DisplayNameFor(deviceClass, peerID string) string {
	label := "Desktop"
	if deviceClass == DeviceMobile {
		label = "Mobile"
	}

	suffix := strings.ReplaceAll(peerID, "-", "")
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	if suffix == "" {
		return label
	}
	return fmt.Sprintf("%s %s", label, suffix)
}

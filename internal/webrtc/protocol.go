package webrtc

import (
	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/transfer"
)

// SelectCodec picks the control frame codec for a pair of peers. Two CLI
// peers use msgpack; anything involving a browser stays on JSON.
func SelectCodec(localType, remoteType string) transfer.Codec {
	if localType == presence.ClientTypeCLI && remoteType == presence.ClientTypeCLI {
		return transfer.MsgpackCodec{}
	}
	return transfer.JSONCodec{}
}

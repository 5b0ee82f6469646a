package transfer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame is a control frame. Chunks travel as raw binary messages and have
// no Frame value.
type Frame interface {
	FrameType() string
}

// Metadata announces a transfer and resets the receiver.
type Metadata struct {
	Name     string
	Size     int64
	MimeType string
}

// EOF ends the current transfer.
type EOF struct{}

// Clipboard carries text for the remote clipboard.
type Clipboard struct {
	Text string
}

// Note carries a short text message.
type Note struct {
	Text string
}

func (Metadata) FrameType() string  { return FrameMetadata }
func (EOF) FrameType() string       { return FrameEOF }
func (Clipboard) FrameType() string { return FrameClipboard }
func (Note) FrameType() string      { return FrameNote }

// Codec encodes control frames. Both codecs use the same field names.
type Codec interface {
	Name() string
	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

type typeWire struct {
	Type string `json:"type" msgpack:"type"`
}

type metadataWire struct {
	Type     string `json:"type" msgpack:"type"`
	Name     string `json:"name" msgpack:"name"`
	Size     int64  `json:"size" msgpack:"size"`
	FileType string `json:"fileType" msgpack:"fileType"`
}

type textWire struct {
	Type string `json:"type" msgpack:"type"`
	Text string `json:"text" msgpack:"text"`
}

type marshalFunc func(any) ([]byte, error)
type unmarshalFunc func([]byte, any) error

func encodeWith(marshal marshalFunc, f Frame) ([]byte, error) {
	switch frame := f.(type) {
	case Metadata:
		return marshal(metadataWire{Type: FrameMetadata, Name: frame.Name, Size: frame.Size, FileType: frame.MimeType})
	case EOF:
		return marshal(typeWire{Type: FrameEOF})
	case Clipboard:
		return marshal(textWire{Type: FrameClipboard, Text: frame.Text})
	case Note:
		return marshal(textWire{Type: FrameNote, Text: frame.Text})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownFrame, f)
}

func decodeWith(unmarshal unmarshalFunc, data []byte) (Frame, error) {
	var head typeWire
	if err := unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFrame, err)
	}

	switch head.Type {
	case FrameMetadata:
		var m metadataWire
		if err := unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		if m.Size < 0 {
			return nil, fmt.Errorf("%w: negative size %d", ErrInvalidMetadata, m.Size)
		}
		return Metadata{Name: m.Name, Size: m.Size, MimeType: m.FileType}, nil

	case FrameEOF:
		return EOF{}, nil

	case FrameClipboard, FrameNote:
		var t textWire
		if err := unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownFrame, err)
		}
		if head.Type == FrameClipboard {
			return Clipboard{Text: t.Text}, nil
		}
		return Note{Text: t.Text}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, head.Type)
}

// JSONCodec is understood by browsers.
type JSONCodec struct{}

func (JSONCodec) Name() string                      { return "json" }
func (JSONCodec) Encode(f Frame) ([]byte, error)    { return encodeWith(json.Marshal, f) }
func (JSONCodec) Decode(data []byte) (Frame, error) { return decodeWith(json.Unmarshal, data) }

// MsgpackCodec is the compact codec used between two CLI peers.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                      { return "msgpack" }
func (MsgpackCodec) Encode(f Frame) ([]byte, error)    { return encodeWith(msgpack.Marshal, f) }
func (MsgpackCodec) Decode(data []byte) (Frame, error) { return decodeWith(msgpack.Unmarshal, data) }

// decodeFrame decodes with codec and, if the frame is not in that encoding,
// with the other one. Each peer picks its codec from its own view of the
// room, so the two ends can disagree.
func decodeFrame(codec Codec, data []byte) (Frame, error) {
	frame, err := codec.Decode(data)
	if err == nil || !errors.Is(err, ErrUnknownFrame) {
		return frame, err
	}

	var other Codec = MsgpackCodec{}
	if codec.Name() == other.Name() {
		other = JSONCodec{}
	}
	if frame, otherErr := other.Decode(data); otherErr == nil {
		return frame, nil
	}
	return nil, err
}

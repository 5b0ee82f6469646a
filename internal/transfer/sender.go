package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Channel is the subset of a data channel the protocol needs.
type Channel interface {
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(f func())
}

// Payload is one named blob to send. Reader is consumed lazily.
type Payload struct {
	Name     string
	Size     int64
	MimeType string
	Reader   io.Reader
}

// Sender streams payloads over a channel with buffer backpressure.
type Sender struct {
	channel    Channel
	codec      Codec
	chunkSize  int
	high       uint64
	low        uint64
	onProgress func(sent, total int64)
	logger     *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn func(sent, total int64)) SenderOption {
	return func(s *Sender) {
		s.onProgress = fn
	}
}

// WithWatermarks overrides the pause and resume thresholds.
func WithWatermarks(high, low uint64) SenderOption {
	return func(s *Sender) {
		s.high = high
		s.low = low
	}
}

// WithChunkSize overrides the slice size read from the source.
func WithChunkSize(n int) SenderOption {
	return func(s *Sender) {
		s.chunkSize = n
	}
}

// WithSenderLogger sets the sender's logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(s *Sender) {
		s.logger = logger
	}
}

// NewSender creates a sender for channel using codec for control frames.
func NewSender(channel Channel, codec Codec, opts ...SenderOption) *Sender {
	s := &Sender{
		channel:   channel,
		codec:     codec,
		chunkSize: ChunkSize,
		high:      HighWaterMark,
		low:       LowWaterMark,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send transmits metadata, the payload in chunks, then eof. Any error is
// terminal for the transfer.
func (s *Sender) Send(ctx context.Context, p Payload) error {
	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	drained := make(chan struct{}, 1)
	s.channel.SetBufferedAmountLowThreshold(s.low)
	s.channel.OnBufferedAmountLow(func() {
		select {
		case drained <- struct{}{}:
		default:
		}
	})

	if err := s.sendControl(Metadata{Name: p.Name, Size: p.Size, MimeType: mimeType}); err != nil {
		return NewFileError("send metadata", p.Name, err)
	}

	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return NewFileError("send", p.Name, errors.Join(ErrTransferCancelled, err))
		}

		buf := make([]byte, s.chunkSize)
		n, readErr := io.ReadFull(p.Reader, buf)

		if n > 0 {
			if err := s.waitForWindow(ctx, drained); err != nil {
				return NewFileError("send", p.Name, err)
			}
			if err := s.channel.Send(buf[:n]); err != nil {
				return NewFileError("send chunk", p.Name, err)
			}
			sent += int64(n)
			if s.onProgress != nil {
				s.onProgress(sent, p.Size)
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return NewFileError("read", p.Name, readErr)
		}
	}

	if err := s.sendControl(EOF{}); err != nil {
		return NewFileError("send eof", p.Name, err)
	}

	s.logger.Debug("payload sent", "name", p.Name, "bytes", sent, "declared", p.Size)
	return nil
}

// SendClipboard sends text for the remote clipboard.
func (s *Sender) SendClipboard(text string) error {
	if err := s.sendControl(Clipboard{Text: text}); err != nil {
		return NewError("send clipboard", err)
	}
	return nil
}

// SendNote sends a short text message.
func (s *Sender) SendNote(text string) error {
	if err := s.sendControl(Note{Text: text}); err != nil {
		return NewError("send note", err)
	}
	return nil
}

// waitForWindow blocks while the channel holds more than the high
// watermark, until it has drained to the low watermark.
func (s *Sender) waitForWindow(ctx context.Context, drained <-chan struct{}) error {
	if s.channel.BufferedAmount() <= s.high {
		return nil
	}

	s.logger.Debug("pausing for buffer drain", "buffered", s.channel.BufferedAmount())
	for s.channel.BufferedAmount() > s.low {
		select {
		case <-drained:
		case <-ctx.Done():
			return errors.Join(ErrTransferCancelled, ctx.Err())
		}
	}
	return nil
}

func (s *Sender) sendControl(f Frame) error {
	data, err := s.codec.Encode(f)
	if err != nil {
		return err
	}
	return s.channel.SendText(string(data))
}

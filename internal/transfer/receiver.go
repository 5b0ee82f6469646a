package transfer

import (
	"errors"
	"log/slog"
	"sync"
)

// Result describes a finished transfer. Exactly one of Data and Path is
// set, depending on the accumulator.
type Result struct {
	Name         string
	MimeType     string
	DeclaredSize int64
	Received     int64

	Data []byte
	Path string
}

// Short reports whether fewer or more bytes arrived than were announced.
// Such a transfer is still finalized.
func (r Result) Short() bool {
	return r.Received != r.DeclaredSize
}

// Receiver reassembles transfers from the frames of one channel. A new
// metadata frame always starts over.
type Receiver struct {
	codec  Codec
	acc    Accumulator
	logger *slog.Logger

	onStart     func(Metadata)
	onProgress  func(received, total int64)
	onComplete  func(Result)
	onClipboard func(string)
	onNote      func(string)

	mu       sync.Mutex
	active   bool
	meta     Metadata
	received int64
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

func OnStart(fn func(Metadata)) ReceiverOption {
	return func(r *Receiver) { r.onStart = fn }
}

func OnProgress(fn func(received, total int64)) ReceiverOption {
	return func(r *Receiver) { r.onProgress = fn }
}

func OnComplete(fn func(Result)) ReceiverOption {
	return func(r *Receiver) { r.onComplete = fn }
}

func OnClipboard(fn func(string)) ReceiverOption {
	return func(r *Receiver) { r.onClipboard = fn }
}

func OnNote(fn func(string)) ReceiverOption {
	return func(r *Receiver) { r.onNote = fn }
}

func WithReceiverLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) { r.logger = logger }
}

// NewReceiver creates a receiver. A nil accumulator means in-memory.
func NewReceiver(codec Codec, acc Accumulator, opts ...ReceiverOption) *Receiver {
	if acc == nil {
		acc = NewMemoryAccumulator()
	}
	r := &Receiver{
		codec:  codec,
		acc:    acc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleMessage processes one channel message. Text messages are control
// frames; binary messages are chunks of the active transfer. The receiver
// may keep data, so callers must not reuse it. Callbacks run on the
// caller's goroutine after internal state is updated.
func (r *Receiver) HandleMessage(data []byte, isText bool) error {
	if !isText {
		return r.handleChunk(data)
	}

	frame, err := decodeFrame(r.codec, data)
	if err != nil {
		r.logger.Debug("dropping undecodable control frame", "error", err)
		return NewError("decode frame", err)
	}

	switch f := frame.(type) {
	case Metadata:
		return r.begin(f)
	case EOF:
		return r.finish()
	case Clipboard:
		if r.onClipboard != nil {
			r.onClipboard(f.Text)
		}
	case Note:
		if r.onNote != nil {
			r.onNote(f.Text)
		}
	}
	return nil
}

// Abort discards a partially received transfer, for example because the
// channel closed.
func (r *Receiver) Abort(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}
	r.logger.Warn("transfer aborted", "name", r.meta.Name, "received", r.received, "error", cause)
	if err := r.acc.Discard(); err != nil {
		r.logger.Warn("failed to discard partial transfer", "error", err)
	}
	r.active = false
	r.received = 0
}

// Active reports whether a transfer is in progress.
func (r *Receiver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Receiver) begin(meta Metadata) error {
	r.mu.Lock()
	if r.active {
		r.logger.Debug("metadata restarts transfer", "previous", r.meta.Name, "received", r.received)
		r.acc.Discard()
	}
	r.active = false
	r.received = 0

	if err := r.acc.Begin(meta); err != nil {
		r.mu.Unlock()
		return err
	}
	r.active = true
	r.meta = meta
	r.mu.Unlock()

	if r.onStart != nil {
		r.onStart(meta)
	}
	return nil
}

func (r *Receiver) handleChunk(chunk []byte) error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		r.logger.Debug("dropping chunk outside a transfer", "bytes", len(chunk))
		return NewError("receive chunk", ErrNoActiveTransfer)
	}

	if err := r.acc.Append(chunk); err != nil {
		r.acc.Discard()
		r.active = false
		r.mu.Unlock()
		return err
	}
	r.received += int64(len(chunk))
	received, total := r.received, r.meta.Size
	r.mu.Unlock()

	if r.onProgress != nil {
		r.onProgress(received, total)
	}
	return nil
}

func (r *Receiver) finish() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		r.logger.Debug("eof outside a transfer")
		return NewError("receive eof", ErrNoActiveTransfer)
	}

	result, err := r.acc.Finish()
	meta, received := r.meta, r.received
	r.active = false
	r.received = 0
	r.mu.Unlock()

	if err != nil {
		return err
	}

	result.Name = meta.Name
	result.MimeType = meta.MimeType
	result.DeclaredSize = meta.Size
	result.Received = received

	if result.Short() {
		r.logger.Warn("transfer size mismatch", "name", meta.Name, "declared", meta.Size, "received", received)
	}
	if r.onComplete != nil {
		r.onComplete(result)
	}
	return nil
}

// IsBenign reports whether err only means a stray frame was ignored.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNoActiveTransfer) || errors.Is(err, ErrUnknownFrame)
}

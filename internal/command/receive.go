package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/localdrop/localdrop/internal/files"
	"github.com/localdrop/localdrop/internal/roomcode"
	"github.com/localdrop/localdrop/internal/transfer"
	"github.com/localdrop/localdrop/internal/ui"
	"github.com/localdrop/localdrop/internal/webrtc"
)

var flagReceiveDir string

var receiveCmd = &cobra.Command{
	Use:     "receive <room-code>",
	Aliases: []string{"r"},
	Short:   "Join a room and wait for a file",
	Long: `Join a room and wait for another participant to send a file. The file
is saved in the current directory unless --dir is given; an existing file
is never overwritten.

Examples:
  localdrop receive K7Q2ZD
  localdrop receive k7q2zd --dir ~/Downloads`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := roomcode.Normalize(args[0])
		if err != nil {
			return err
		}
		return receiveInto(cmd.Context(), room, flagReceiveDir)
	},
}

func receiveInto(ctx context.Context, room, dir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ep, joined, err := joinRoom(ctx, cfg, room)
	if err != nil {
		return err
	}
	defer ep.Close()

	ui.PrintSuccessf("Joined room %s as %s", joined.Room, shortPeer(joined.PeerID))

	stop := ui.RunWaitingSpinner("Waiting for a sender...")
	link, err := ep.Accept(ctx)
	stop()
	if err != nil {
		return err
	}
	defer link.Close()
	ui.PrintSuccessf("Connected to %s", nameOf(link))

	return receiveOver(ctx, link, dir)
}

func receiveOver(ctx context.Context, link *webrtc.Link, dir string) error {
	var (
		bar   *ui.ProgressBar
		start time.Time
	)
	results := make(chan transfer.Result, 1)
	failures := make(chan error, 1)
	closed := make(chan struct{})

	receiver := transfer.NewReceiver(link.Codec, transfer.NewFileAccumulator(dir),
		transfer.OnStart(func(meta transfer.Metadata) {
			start = time.Now()
			bar = ui.NewProgressBar("receive", meta.Name, meta.Size)
		}),
		transfer.OnProgress(func(received, total int64) {
			bar.Update(received)
		}),
		transfer.OnComplete(func(r transfer.Result) {
			bar.Finish()
			select {
			case results <- r:
			default:
				slog.Warn("ignoring extra transfer", "name", r.Name, "path", r.Path)
			}
		}),
		transfer.OnNote(func(text string) {
			fmt.Printf("%s %s\n", ui.IconNote, text)
		}),
		transfer.OnClipboard(func(text string) {
			fmt.Printf("%s %s\n", ui.IconCopy, text)
		}),
	)

	link.Peer.SetMessageHandler(func(data []byte, isText bool) {
		err := receiver.HandleMessage(data, isText)
		switch {
		case err == nil:
		case transfer.IsBenign(err):
			slog.Debug("ignored frame", "error", err)
		default:
			receiver.Abort(err)
			select {
			case failures <- err:
			default:
			}
		}
	})
	var closeOnce sync.Once
	link.Peer.OnChannelClose(func() {
		closeOnce.Do(func() {
			receiver.Abort(transfer.ErrChannelClosed)
			close(closed)
		})
	})

	select {
	case r := <-results:
		return finishReceive(link, r, start)
	case err := <-failures:
		return err
	case <-closed:
		return lateResult(link, results, start, transfer.NewError("receive", transfer.ErrChannelClosed))
	case <-link.Session.Done():
		return lateResult(link, results, start, link.Session.Err())
	case <-ctx.Done():
		receiver.Abort(ctx.Err())
		return ctx.Err()
	}
}

// lateResult prefers a result that raced the close notification.
func lateResult(link *webrtc.Link, results <-chan transfer.Result, start time.Time, err error) error {
	select {
	case r := <-results:
		return finishReceive(link, r, start)
	default:
	}
	if err == nil {
		err = transfer.ErrChannelClosed
	}
	return err
}

func finishReceive(link *webrtc.Link, r transfer.Result, start time.Time) error {
	if r.Short() {
		ui.PrintWarningf("%s announced %d bytes but %d arrived", r.Name, r.DeclaredSize, r.Received)
	}

	digest, err := files.DigestFile(r.Path)
	if err != nil {
		slog.Warn("could not fingerprint received file", "path", r.Path, "error", err)
	}

	ui.RenderTransferSummary(ui.TransferSummary{
		Status:   ui.IconComplete + " Received",
		Name:     r.Name,
		Peer:     nameOf(link),
		Size:     r.Received,
		Duration: time.Since(start),
		Digest:   digest,
		Path:     r.Path,
	})
	return nil
}

func nameOf(link *webrtc.Link) string {
	if link.Remote.DisplayName != "" {
		return link.Remote.DisplayName
	}
	return shortPeer(link.Remote.PeerID)
}

func shortPeer(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagReceiveDir, "dir", "d", ".", "Directory to save the received file")
}

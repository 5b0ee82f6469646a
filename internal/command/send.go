package command

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localdrop/localdrop/internal/files"
	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/roomcode"
	"github.com/localdrop/localdrop/internal/transfer"
	"github.com/localdrop/localdrop/internal/ui"
	"github.com/localdrop/localdrop/internal/utils"
	"github.com/localdrop/localdrop/internal/webrtc"
)

const (
	drainPoll = 50 * time.Millisecond
	linger    = 2 * time.Second
)

var (
	flagSendRoom    string
	flagSendTo      string
	flagSendMessage string
)

var sendCmd = &cobra.Command{
	Use:     "send <file|folder>",
	Aliases: []string{"s"},
	Short:   "Send a file or folder to someone in a room",
	Long: `Send a file or folder directly to another participant. Folders are
zipped first. Without --room a new room code is created.

Examples:
  localdrop send report.pdf
  localdrop send --room K7Q2ZD photos/
  localdrop send --room K7Q2ZD --to Phone notes.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendPath(cmd.Context(), args[0])
	},
}

func sendPath(ctx context.Context, path string) error {
	info, err := files.Validate(path)
	if err != nil {
		return err
	}

	blob, err := openBlob(info)
	if err != nil {
		return err
	}
	defer blob.Close()

	room, err := pickRoom(flagSendRoom)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ep, joined, err := joinRoom(ctx, cfg, room)
	if err != nil {
		return err
	}
	defer ep.Close()

	ui.RenderRoom(joined.Room)
	fmt.Println()

	peer, err := choosePeer(ctx, ep, joined.PeerID, flagSendTo)
	if err != nil {
		return err
	}

	stop := ui.RunConnectionSpinner("Connecting to " + peer.DisplayName + "...")
	link, err := ep.Connect(ctx, peer.PeerID)
	stop()
	if err != nil {
		return err
	}
	defer link.Close()
	ui.PrintSuccessf("Connected to %s", peer.DisplayName)

	return sendOver(ctx, link, blob)
}

func openBlob(info files.FileInfo) (*files.Blob, error) {
	if !info.IsDir {
		return files.Open(info)
	}

	s := ui.NewWaitingSpinner("Zipping " + info.Name + "...")
	s.Start()
	blob, err := files.Open(info)
	if err != nil {
		s.Stop()
		return nil, transfer.NewFileError("zip folder", info.Name, err)
	}
	s.Success(fmt.Sprintf("Packaged %s (%s)", blob.Name, utils.FormatSize(blob.Size)))
	return blob, nil
}

func pickRoom(requested string) (string, error) {
	if requested == "" {
		return roomcode.New()
	}
	return roomcode.Normalize(requested)
}

// choosePeer returns the participant named by target, or asks the user.
func choosePeer(ctx context.Context, ep *webrtc.Endpoint, selfID, target string) (presence.Participant, error) {
	if target == "" {
		return ui.PickPeer(ctx, ep.Others(), ep.Roster(), selfID)
	}

	stop := ui.RunWaitingSpinner("Waiting for " + target + " to join...")
	defer stop()

	for {
		for _, p := range ep.Others() {
			if matchesPeer(p, target) {
				return p, nil
			}
		}
		select {
		case <-ep.Roster():
		case <-ctx.Done():
			return presence.Participant{}, ctx.Err()
		}
	}
}

func matchesPeer(p presence.Participant, target string) bool {
	return strings.EqualFold(p.DisplayName, target) ||
		strings.HasPrefix(p.PeerID, target) ||
		p.ClientID == target
}

func sendOver(ctx context.Context, link *webrtc.Link, blob *files.Blob) error {
	channel := link.Channel()
	bar := ui.NewProgressBar("send", blob.Name, blob.Size)
	sender := transfer.NewSender(channel, link.Codec, transfer.WithProgress(func(sent, total int64) {
		bar.Update(sent)
	}))

	if flagSendMessage != "" {
		if err := sender.SendNote(flagSendMessage); err != nil {
			return err
		}
	}

	digest := files.NewDigest()
	start := time.Now()
	err := sender.Send(ctx, transfer.Payload{
		Name:     blob.Name,
		Size:     blob.Size,
		MimeType: blob.MimeType,
		Reader:   io.TeeReader(blob, digest),
	})
	bar.Finish()
	if err != nil {
		return err
	}

	if err := waitDrained(ctx, channel, link.Session.Done()); err != nil {
		return err
	}

	ui.RenderTransferSummary(ui.TransferSummary{
		Status:   ui.IconComplete + " Sent",
		Name:     blob.Name,
		Peer:     link.Remote.DisplayName,
		Size:     blob.Size,
		Duration: time.Since(start),
		Digest:   digest.String(),
	})
	return nil
}

type bufferedChannel interface {
	BufferedAmount() uint64
}

// waitDrained holds the connection open until every queued byte has left,
// then gives the receiver a moment before the channel is torn down. The
// receiver hangs up once it has the whole file, so done closing here ends
// the wait without an error.
func waitDrained(ctx context.Context, channel bufferedChannel, done <-chan struct{}) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for channel.BufferedAmount() > 0 {
		select {
		case <-ticker.C:
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-done:
	case <-time.After(linger):
	case <-ctx.Done():
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&flagSendRoom, "room", "r", "", "Join this room instead of creating one")
	sendCmd.Flags().StringVarP(&flagSendTo, "to", "t", "", "Send to this participant (name or peer id prefix) without asking")
	sendCmd.Flags().StringVarP(&flagSendMessage, "message", "m", "", "Short note delivered before the file")
}

package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localdrop/localdrop/internal/roomcode"
	"github.com/localdrop/localdrop/internal/ui"
)

var flagPeersWatch bool

var peersCmd = &cobra.Command{
	Use:   "peers <room-code>",
	Short: "Join a room and list who is in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := roomcode.Normalize(args[0])
		if err != nil {
			return err
		}
		return listPeers(cmd.Context(), room, flagPeersWatch)
	},
}

func listPeers(ctx context.Context, room string, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ep, joined, err := joinRoom(ctx, cfg, room)
	if err != nil {
		return err
	}
	defer ep.Close()

	for {
		select {
		case participants := <-ep.Roster():
			fmt.Println(ui.ParticipantTable(participants, joined.PeerID))
			if !watch {
				return nil
			}
		case <-ctx.Done():
			if watch {
				return nil
			}
			return ctx.Err()
		}
	}
}

func init() {
	rootCmd.AddCommand(peersCmd)

	peersCmd.Flags().BoolVarP(&flagPeersWatch, "watch", "w", false, "Keep printing the list as people come and go")
}

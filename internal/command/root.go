package command

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/localdrop/localdrop/internal/config"
	"github.com/localdrop/localdrop/internal/negotiation"
	"github.com/localdrop/localdrop/internal/signaling"
	"github.com/localdrop/localdrop/internal/transfer"
	"github.com/localdrop/localdrop/internal/ui"
	"github.com/localdrop/localdrop/internal/version"
	"github.com/localdrop/localdrop/internal/webrtc"
)

var (
	flagServer string
	flagSTUN   string
	flagName   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "localdrop",
	Short: "Send a file to another device through a short room code",
	Long: `LocalDrop moves a file or folder directly between two devices. Both join
the same room code on a relay, pick each other, and the bytes travel over a
WebRTC data channel without passing through the relay.`,
	Version: version.Version,
}

// Execute runs the command line. Ctrl-C cancels whatever is in progress.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ui.ErrCancelled) {
			os.Exit(130)
		}
		ui.PrintError(describe(err))
		os.Exit(1)
	}
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	if negotiation.IsFailure(err) {
		return negotiation.ErrNegotiationFailed.Error()
	}
	return err.Error()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		Name:       flagName,
	})
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}
	return cfg, nil
}

// joinRoom connects to the relay and enters room.
func joinRoom(ctx context.Context, cfg *config.Config, room string) (*webrtc.Endpoint, signaling.Joined, error) {
	stop := ui.RunConnectionSpinner("Connecting to " + cfg.Server + "...")
	defer stop()

	ep, err := webrtc.Dial(ctx, cfg, slog.Default())
	if err != nil {
		return nil, signaling.Joined{}, err
	}

	joined, err := ep.Join(ctx, room)
	if err != nil {
		ep.Close()
		return nil, signaling.Joined{}, err
	}
	return ep, joined, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Relay address, host[:port] or ws(s):// URL")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagName, "name", "", "Name shown to other participants")
}

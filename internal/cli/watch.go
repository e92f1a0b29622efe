package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apk-installer/internal/types"
)

type watchOptions struct {
	SpoolDir string
	JSON     bool
}

func newWatchCommand() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the tracker and print lifecycle events from the signal spool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.SpoolDir, "spool-dir", "", "Directory of JSON signal files")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print events as JSON lines")
	_ = viper.BindPFlag("spool.dir", cmd.Flags().Lookup("spool-dir"))
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	if dir := resolveString(cmd, opts.SpoolDir, "spool.dir", "spool-dir"); dir == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("watch needs --spool-dir or spool.dir")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	service, err := newAppService(ctx, false)
	if err != nil {
		return err
	}
	defer service.Close()

	log.Info().Str("spool", viper.GetString("spool.dir")).Msg("watching for signals")
	printer := newEventPrinter(os.Stdout)
	encoder := json.NewEncoder(os.Stdout)
	err = service.Watch(ctx, func(event types.Event) {
		if opts.JSON {
			_ = encoder.Encode(event)
			return
		}
		printer.Print(event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

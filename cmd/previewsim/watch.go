package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/internal/ringchan"
	"github.com/srg/previewsim/pkg/config"
	"golang.org/x/time/rate"
)

// emission is one value produced by a watched stream
type emission struct {
	Namespace string
	Event     string
	At        time.Time
	Value     any
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [namespace event]",
		Short: "Subscribe to simulated events and print every emission",
		Long: `Subscribes to one simulated event, or to every stream listed in the
config file when no event is given, and prints emissions until interrupted.

Emissions pass through a bounded buffer; when the terminal falls behind, or
--rate holds printing back, the oldest pending emissions are dropped.`,
		Example: `  previewsim watch network typeChange --interval 1s --count 5
  previewsim watch bluetooth BLEDeviceFind -o json
  previewsim watch -c previewsim.yaml --duration 30s --reload`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts either no arguments or <namespace> <event>, received %d", len(args))
			}
			return nil
		},
		RunE: runWatch,
	}

	cmd.Flags().Duration("interval", 0, "Emission period (defaults to the event's own)")
	cmd.Flags().Int("count", 0, "Stop after this many emissions (0 = unlimited)")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().Int("buffer", 64, "Pending emissions kept before the oldest is dropped")
	cmd.Flags().Float64("rate", 0, "Print at most this many emissions per second (0 = unlimited)")
	cmd.Flags().Bool("reload", false, "Reload configured Lua scripts when their files change")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	sim, err := newSimulator(cmd)
	if err != nil {
		return err
	}
	defer sim.Close()

	interval, _ := cmd.Flags().GetDuration("interval")
	count, _ := cmd.Flags().GetInt("count")
	duration, _ := cmd.Flags().GetDuration("duration")
	bufferSize, _ := cmd.Flags().GetInt("buffer")
	reload, _ := cmd.Flags().GetBool("reload")
	perSecond, _ := cmd.Flags().GetFloat64("rate")
	if perSecond < 0 {
		return fmt.Errorf("invalid rate %v: must not be negative", perSecond)
	}

	streams := sim.cfg.Streams
	if len(args) == 2 {
		streams = []config.StreamConfig{{Namespace: args[0], Event: args[1], Interval: interval}}
	}
	if len(streams) == 0 {
		return ErrNoStreams
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	if reload && len(sim.cfg.Scripts) > 0 {
		watcher, err := provider.WatchScripts(sim.logger, sim.script, sim.cfg.Scripts)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	buffer := ringchan.New[emission](bufferSize)
	defer buffer.Close()

	for _, stream := range streams {
		ns, err := sim.namespace(stream.Namespace)
		if err != nil {
			return err
		}

		namespace, event := stream.Namespace, stream.Event
		listener := func(value any) {
			buffer.Send(emission{Namespace: namespace, Event: event, At: time.Now(), Value: value})
		}
		every := stream.Interval
		if interval > 0 {
			every = interval
		}
		if !ns.SubscribeEvery(event, every, listener) {
			return fmt.Errorf("%w: %s/%s", ErrSubscriptionRejected, namespace, event)
		}
		sim.logger.WithFields(logrus.Fields{
			"namespace": namespace,
			"event":     event,
			"interval":  every,
		}).Info("Watching simulated event")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	received := 0
	defer func() {
		stats := buffer.Stats()
		sim.logger.WithFields(logrus.Fields{
			"received": received,
			"dropped":  stats.Overwritten,
		}).Debug("Watch finished")
	}()

	for count == 0 || received < count {
		// while waiting for a token the buffer keeps only the newest emissions
		if err := limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next token lies past the deadline
			<-ctx.Done()
			return watchStopped(ctx, ctx.Err())
		}
		e, err := buffer.Receive(ctx)
		if err != nil {
			return watchStopped(ctx, err)
		}
		received++
		sim.printer.Event(e, received)
	}
	return nil
}

// watchStopped maps the end of the receive loop to the command result;
// a finished --duration or a closed buffer is a normal exit
func watchStopped(ctx context.Context, err error) error {
	if errors.Is(err, ringchan.ErrClosed) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

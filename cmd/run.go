package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/kmsloop/eventloop"
	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/ipc"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/spf13/cobra"
)

// quitEvent stops the demo loop when sent as a user event.
const quitEvent = "quit"

// escKey is the evdev code of Escape.
const escKey = 1

var (
	runFlow   string
	runPeriod time.Duration
	runNoIPC  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the event loop and log every event",
	Long: `Run takes over the configured output and the input devices of the seat and
logs each delivered event. Escape, SIGINT, SIGTERM or "kmsloop send quit"
stop the loop; any other payload sent through the control socket is
delivered as a user event.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := parseFlow(runFlow, runPeriod)
		if err != nil {
			return err
		}

		cfg := config.Get()
		loop, err := eventloop.New[string](eventloop.FromConfig(cfg))
		if err != nil {
			return err
		}
		proxy := loop.CreateProxy()
		mon := loop.Target().PrimaryMonitor()
		logger.Info("event loop ready", "monitor", mon.Name, "width", mon.Size.Width, "height", mon.Size.Height)

		if !runNoIPC {
			path, err := cfg.SocketPath()
			if err != nil {
				loop.Close()
				return err
			}
			server := ipc.NewSocketServer(path, proxy, func() string {
				return fmt.Sprintf("%s %dx%d", mon.Name, mon.Size.Width, mon.Size.Height)
			})
			if err := server.Start(); err != nil {
				loop.Close()
				return err
			}
			defer server.Stop()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			if err := proxy.Send(quitEvent); err != nil {
				logger.Debug("quit request dropped", "err", err)
			}
		}()

		code := loop.RunReturn(demoCallback(flow))
		if err := loop.Close(); err != nil {
			logger.Warn("failed to release devices", "err", err)
		}
		if code != 0 {
			return fmt.Errorf("event loop exited with code %d", code)
		}
		return nil
	},
}

// parseFlow turns the --flow flag into the control flow re-applied after
// each iteration. A WaitUntil deadline is recomputed every time.
func parseFlow(name string, period time.Duration) (func() eventloop.ControlFlow, error) {
	switch name {
	case "poll":
		return func() eventloop.ControlFlow { return eventloop.Poll }, nil
	case "wait", "":
		return func() eventloop.ControlFlow { return eventloop.Wait }, nil
	case "wait-until":
		if period <= 0 {
			return nil, fmt.Errorf("--period must be positive with --flow wait-until")
		}
		return func() eventloop.ControlFlow { return eventloop.WaitUntil(time.Now().Add(period)) }, nil
	}
	return nil, fmt.Errorf("unknown control flow %q (want poll, wait or wait-until)", name)
}

func demoCallback(flow func() eventloop.ControlFlow) eventloop.Callback {
	var window *eventloop.Window
	return func(ev eventloop.Event, target *eventloop.WindowTarget, cf *eventloop.ControlFlow) {
		switch e := ev.(type) {
		case eventloop.NewEvents:
			if e.Cause.Kind == eventloop.CauseInit {
				window = eventloop.NewWindow(target)
			}
			logger.Debug("new events", "cause", e.Cause.Kind)
			return
		case eventloop.MainEventsCleared, eventloop.RedrawEventsCleared:
			cf.Set(flow())
			return
		case eventloop.UserEvent[string]:
			logger.Info("user event", "payload", e.Value)
			if e.Value == quitEvent {
				cf.SetExit()
			}
			return
		case eventloop.KeyboardInput:
			logger.Info("key", "code", e.ScanCode, "state", e.State, "shift", e.Modifiers.Shift(), "ctrl", e.Modifiers.Ctrl())
			if e.ScanCode == escKey && e.State == eventloop.Pressed {
				cf.SetExit()
			}
			return
		case eventloop.ReceivedCharacter:
			logger.Info("character", "char", fmt.Sprintf("%q", e.Char))
			return
		case eventloop.CursorMoved:
			logger.Info("cursor", "x", e.Position.X, "y", e.Position.Y)
			window.RequestRedraw()
			return
		case eventloop.MouseInput:
			logger.Info("button", "button", e.Button, "state", e.State)
			return
		case eventloop.RedrawRequested:
			h := window.RawHandle()
			logger.Debug("redraw", "fd", h.Fd, "plane", h.Plane)
			return
		case eventloop.LoopDestroyed:
			logger.Info("loop destroyed")
			return
		}
		logger.Info("event", "type", fmt.Sprintf("%T", ev), "value", fmt.Sprintf("%+v", ev))
	}
}

func init() {
	runCmd.Flags().StringVar(&runFlow, "flow", "wait", "control flow between iterations: poll, wait or wait-until")
	runCmd.Flags().DurationVar(&runPeriod, "period", time.Second, "wake-up period for --flow wait-until")
	runCmd.Flags().BoolVar(&runNoIPC, "no-ipc", false, "do not open the control socket")
	rootCmd.AddCommand(runCmd)
}

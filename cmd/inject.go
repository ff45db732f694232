package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/input"
	"github.com/bnema/kmsloop/internal/xkb"
	"github.com/spf13/cobra"
)

var (
	injectDevice string
	injectHold   time.Duration
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Generate input through virtual uinput devices",
	Long: `Inject creates a virtual keyboard and mouse and emits events through them,
so a running loop can be exercised without touching real hardware. Needs
write access to /dev/uinput.`,
}

func withInjector(fn func(*input.Injector) error) error {
	inj, err := input.NewInjector(injectDevice)
	if err != nil {
		return err
	}
	defer inj.Close()
	return fn(inj)
}

type keyHolder interface {
	Hold(code uint16) error
	Release(code uint16) error
}

// holdKey keeps code pressed for d, or until ctx is done. The key is always
// released.
func holdKey(ctx context.Context, k keyHolder, code uint16, d time.Duration) error {
	if err := k.Hold(code); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctxOrBackground(ctx).Done():
	}
	return k.Release(code)
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return int32(v), nil
}

var injectTypeCmd = &cobra.Command{
	Use:   "type <text>",
	Short: "Type text using the configured keyboard layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kc := config.Get().Keyboard
		km, err := xkb.Compile(xkb.RuleNames{
			Rules:   kc.Rules,
			Model:   kc.Model,
			Layout:  kc.Layout,
			Variant: kc.Variant,
			Options: kc.Options,
		})
		if err != nil {
			return err
		}
		return withInjector(func(inj *input.Injector) error { return inj.Type(km, args[0]) })
	},
}

var injectKeyCmd = &cobra.Command{
	Use:   "key <code>",
	Short: "Press and release one evdev key code",
	Long: `Press and release one evdev key code. With --hold the key stays down for
the given duration, long enough for a running loop to start repeating it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid key code %q: %w", args[0], err)
		}
		return withInjector(func(inj *input.Injector) error {
			if injectHold <= 0 {
				return inj.Key(uint16(code))
			}
			return holdKey(cmd.Context(), inj, uint16(code), injectHold)
		})
	},
}

var injectMoveCmd = &cobra.Command{
	Use:   "move <dx> <dy>",
	Short: "Move the pointer relatively",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dx, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		dy, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		return withInjector(func(inj *input.Injector) error { return inj.Move(dx, dy) })
	},
}

var injectClickCmd = &cobra.Command{
	Use:       "click [left|right|middle]",
	Short:     "Click a pointer button",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"left", "right", "middle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		button := "left"
		if len(args) == 1 {
			button = args[0]
		}
		return withInjector(func(inj *input.Injector) error { return inj.Click(button) })
	},
}

var injectScrollCmd = &cobra.Command{
	Use:   "scroll <steps>",
	Short: "Scroll vertically; positive scrolls up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		return withInjector(func(inj *input.Injector) error { return inj.Scroll(0, steps) })
	},
}

func init() {
	injectCmd.PersistentFlags().StringVar(&injectDevice, "device", input.DefaultUinputPath, "uinput device node")
	injectKeyCmd.Flags().DurationVar(&injectHold, "hold", 0, "keep the key pressed for this long")
	injectCmd.AddCommand(injectTypeCmd, injectKeyCmd, injectMoveCmd, injectClickCmd, injectScrollCmd)
	rootCmd.AddCommand(injectCmd)
}

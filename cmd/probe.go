package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/fbdev"
	"github.com/bnema/kmsloop/internal/input"
	"github.com/bnema/kmsloop/internal/kms"
	"github.com/bnema/kmsloop/internal/seat"
	"github.com/bnema/kmsloop/internal/ui"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report the display and input devices the loop would use",
	Long: `Probe runs device acquisition and output negotiation without taking over
the display, then lists the connectors and the input devices of the seat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		acq, err := seat.NewDefault(cfg.Seat.Name)
		if err != nil {
			return fmt.Errorf("failed to open seat: %w", err)
		}
		defer acq.Close()

		enum := seat.NewEnumerator()
		var b strings.Builder
		fmt.Fprintln(&b, ui.FormatHeader("Seat"))
		fmt.Fprintln(&b, ui.FormatField("Policy", seat.Policy))
		fmt.Fprintln(&b, ui.FormatField("Seat", acq.SeatName()))
		fmt.Fprintln(&b)

		if cfg.Display.Backend == config.BackendFbdev {
			probeFbdev(&b, cfg, enum)
		} else {
			probeKMS(&b, cfg, acq, enum)
		}
		fmt.Fprintln(&b)
		probeInput(&b, acq, enum)

		_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
		return err
	},
}

func probeKMS(b *strings.Builder, cfg *config.Config, acq seat.Acquirer, enum *seat.Enumerator) {
	fmt.Fprintln(b, ui.FormatHeader("Display (kms)"))
	card, err := seat.AcquireCard(acq, enum, cfg.Display.Card)
	if err != nil {
		fmt.Fprintln(b, ui.FormatResult(false, "acquire card", err.Error()))
		return
	}
	defer card.Close()
	fmt.Fprintln(b, ui.FormatResult(true, "acquire card", card.Name()))

	res, negErr := kms.Negotiate(card)
	if negErr != nil {
		fmt.Fprintln(b, ui.FormatResult(false, "negotiate", negErr.Error()))
	} else {
		w, h := res.Size()
		fmt.Fprintln(b, ui.FormatResult(true, "negotiate",
			fmt.Sprintf("%s %dx%d crtc %d plane %d", res.Connector.Name(), w, h, res.Crtc.ID, res.Plane)))
	}

	resources, err := card.Resources()
	if err != nil {
		fmt.Fprintln(b, ui.FormatResult(false, "resources", err.Error()))
		return
	}

	var rows [][]string
	for _, c := range kms.Connectors(card, resources.Connectors) {
		mode := "-"
		if m, ok := kms.SelectMode(c.Modes); ok {
			mode = fmt.Sprintf("%s@%.2f", m.Name(), float64(m.RefreshMillihertz())/1000)
		}
		active := ""
		if negErr == nil && c.ID == res.Connector.ID {
			active = "◀"
		}
		rows = append(rows, []string{
			c.Name(), strconv.FormatUint(uint64(c.ID), 10), c.State.String(),
			strconv.Itoa(len(c.Modes)), mode, active,
		})
	}
	fmt.Fprintln(b, ui.Table([]string{"CONNECTOR", "ID", "STATE", "MODES", "PREFERRED", "ACTIVE"}, rows, 5))
}

func probeFbdev(b *strings.Builder, cfg *config.Config, enum *seat.Enumerator) {
	fmt.Fprintln(b, ui.FormatHeader("Display (fbdev)"))
	path := cfg.Display.Fbdev
	if path == "" {
		var err error
		if path, err = fbdev.Find(enum.FS); err != nil {
			fmt.Fprintln(b, ui.FormatResult(false, "find framebuffer", err.Error()))
			return
		}
	}
	dev, err := fbdev.Open(path)
	if err != nil {
		fmt.Fprintln(b, ui.FormatResult(false, "open framebuffer", err.Error()))
		return
	}
	defer dev.Close()

	info := dev.Info()
	fmt.Fprintln(b, ui.FormatResult(true, "open framebuffer", path))
	fmt.Fprintln(b, ui.FormatField("Name", info.Name))
	fmt.Fprintln(b, ui.FormatField("Geometry", fmt.Sprintf("%dx%d %dbpp %dHz", info.Width, info.Height, info.BitsPerPixel, info.RefreshHz)))
}

func probeInput(b *strings.Builder, acq seat.Acquirer, enum *seat.Enumerator) {
	fmt.Fprintln(b, ui.FormatHeader("Input"))
	nodes, err := enum.InputDevices(acq.SeatName())
	if err != nil {
		fmt.Fprintln(b, ui.FormatResult(false, "enumerate", err.Error()))
		return
	}
	if len(nodes) == 0 {
		fmt.Fprintln(b, ui.WarningStyle.Render("  no input devices on this seat"))
		return
	}

	var rows [][]string
	for _, n := range nodes {
		name, kind, err := input.Identify(acq, n.DevNode)
		kindStr := kind.String()
		if err != nil {
			name, kindStr = ui.ErrorStyle.Render(err.Error()), "-"
		}
		stable := "-"
		if id, err := enum.Identify(n.DevNode); err == nil {
			stable = id.String()
		}
		rows = append(rows, []string{n.DevNode, name, kindStr, stable})
	}
	fmt.Fprintln(b, ui.Table([]string{"NODE", "NAME", "KIND", "STABLE ID"}, rows, -1))
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

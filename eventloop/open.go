package eventloop

import (
	"fmt"

	"github.com/bnema/kmsloop/internal/fbdev"
	"github.com/bnema/kmsloop/internal/input"
	"github.com/bnema/kmsloop/internal/kms"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/bnema/kmsloop/internal/reactor"
	"github.com/bnema/kmsloop/internal/seat"
	"github.com/bnema/kmsloop/internal/xkb"
)

// New acquires the seat, opens and negotiates the display, compiles the
// keymap and opens the seat's input devices. Every failure is an *OSError
// and leaves nothing open.
func New[T any](cfg Config) (*EventLoop[T], error) {
	acq, err := seat.NewDefault(cfg.Seat)
	if err != nil {
		return nil, osError("open seat", err)
	}
	enum := seat.NewEnumerator()

	target, err := openOutput(cfg, acq, enum)
	if err != nil {
		acq.Close()
		return nil, err
	}

	r := reactor.New()
	l, err := newEventLoop[T](r, target)
	if err != nil {
		target.close()
		acq.Close()
		return nil, osError("create event loop", err)
	}
	l.acq = acq

	size := target.size()
	backend, err := input.New(r, sinkHandler{t: target}, target.cursor, input.Options{
		Keymap: xkb.RuleNames{
			Rules:   cfg.Rules,
			Model:   cfg.Model,
			Layout:  cfg.Layout,
			Variant: cfg.Variant,
			Options: cfg.Options,
		},
		Locale:         cfg.Locale,
		Compose:        cfg.Compose,
		RepeatInterval: cfg.RepeatInterval,
		Width:          int(size.Width),
		Height:         int(size.Height),
	})
	if err != nil {
		l.Close()
		return nil, osError("create keyboard state", err)
	}
	l.input = backend

	if err := backend.OpenSeat(acq, enum); err != nil {
		l.Close()
		return nil, osError("open input devices", err)
	}
	return l, nil
}

func openOutput(cfg Config, acq seat.Acquirer, enum *seat.Enumerator) (*WindowTarget, error) {
	switch cfg.Backend {
	case BackendFbdev:
		return openFbdev(cfg, enum)
	case "", BackendKMS:
		return openKMS(cfg, acq, enum)
	}
	return nil, osError("select backend", fmt.Errorf("unknown backend %q", cfg.Backend))
}

func openKMS(cfg Config, acq seat.Acquirer, enum *seat.Enumerator) (*WindowTarget, error) {
	card, err := seat.AcquireCard(acq, enum, cfg.Card)
	if err != nil {
		return nil, osError("acquire display device", err)
	}

	res, err := kms.Negotiate(card)
	if err != nil {
		card.Close()
		return nil, osError("negotiate output", err)
	}

	target, err := newWindowTarget(kmsMonitors(res, kms.Connectors(card, res.Resources.Connectors)))
	if err != nil {
		card.Close()
		return nil, osError("create redraw source", err)
	}
	target.card = card
	target.output = res
	return target, nil
}

func openFbdev(cfg Config, enum *seat.Enumerator) (*WindowTarget, error) {
	path := cfg.Fbdev
	if path == "" {
		var err error
		if path, err = fbdev.Find(enum.FS); err != nil {
			return nil, osError("find framebuffer", err)
		}
	}

	dev, err := fbdev.Open(path)
	if err != nil {
		return nil, osError("open framebuffer", err)
	}

	target, err := newWindowTarget([]MonitorHandle{fbdevMonitor(dev.Info())})
	if err != nil {
		dev.Close()
		return nil, osError("create redraw source", err)
	}
	target.fb = dev
	logger.Info("using framebuffer output", "device", path)
	return target, nil
}

// Package kms selects a usable output from a mode-setting device.
//
// Negotiate runs once at startup and picks a connected connector, one of its
// modes, a CRTC and a plane the CRTC can scan out from. The result never
// changes afterwards.
package kms

import (
	"errors"
	"fmt"

	"github.com/bnema/kmsloop/internal/drm"
	"github.com/bnema/kmsloop/internal/logger"
)

var (
	ErrAtomicUnsupported = errors.New("kms: device does not support atomic modesetting")
	ErrNoConnector       = errors.New("kms: no connected connectors")
	ErrNoCrtc            = errors.New("kms: no crtcs found")
	ErrNoModes           = errors.New("kms: no modes found on connector")
	ErrNoPlane           = errors.New("kms: no plane compatible with the selected crtc")
)

// Device is the subset of the kernel mode-setting interface the negotiator
// consumes. *drm.Card implements it.
type Device interface {
	SetClientCap(capability, value uint64) error
	Resources() (drm.Resources, error)
	Connector(id uint32) (drm.Connector, error)
	Crtc(id uint32) (drm.Crtc, error)
	PlaneHandles() ([]uint32, error)
	Plane(id uint32) (drm.Plane, error)
	PlaneType(id uint32) (drm.PlaneType, bool, error)
}

var _ Device = (*drm.Card)(nil)

// Result is the negotiated (connector, crtc, plane, mode) tuple.
type Result struct {
	Connector drm.Connector
	Crtc      drm.Crtc
	Plane     uint32
	Mode      drm.ModeInfo
	Resources drm.Resources
}

// Size returns the negotiated mode's active area.
func (r *Result) Size() (width, height uint32) {
	w, h := r.Mode.Size()
	return uint32(w), uint32(h)
}

// Negotiate picks a mutually compatible output configuration.
func Negotiate(dev Device) (*Result, error) {
	if err := dev.SetClientCap(drm.ClientCapAtomic, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAtomicUnsupported, err)
	}

	res, err := dev.Resources()
	if err != nil {
		return nil, fmt.Errorf("could not load normal resource ids: %w", err)
	}

	con, ok := firstConnected(dev, res.Connectors)
	if !ok {
		return nil, ErrNoConnector
	}

	crtc, ok := firstCrtc(dev, res.Crtcs)
	if !ok {
		return nil, ErrNoCrtc
	}

	mode, ok := SelectMode(con.Modes)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoModes, con.Name())
	}

	planes, err := dev.PlaneHandles()
	if err != nil {
		return nil, fmt.Errorf("could not list planes: %w", err)
	}
	plane, ok := findPlane(dev, planes, res, crtc.ID)
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoPlane, crtc.ID)
	}

	logger.Info("negotiated output",
		"connector", con.Name(),
		"crtc", crtc.ID,
		"plane", plane,
		"mode", mode.Name(),
	)

	return &Result{
		Connector: con,
		Crtc:      crtc,
		Plane:     plane,
		Mode:      mode,
		Resources: res,
	}, nil
}

// SelectMode prefers the mode the sink flagged as preferred and otherwise
// takes the first listed one.
func SelectMode(modes []drm.ModeInfo) (drm.ModeInfo, bool) {
	for _, m := range modes {
		if m.Preferred() {
			return m, true
		}
	}
	if len(modes) > 0 {
		return modes[0], true
	}
	return drm.ModeInfo{}, false
}

// Connectors loads every connector the device reports, skipping the ones
// that fail to load.
func Connectors(dev Device, ids []uint32) []drm.Connector {
	out := make([]drm.Connector, 0, len(ids))
	for _, id := range ids {
		con, err := dev.Connector(id)
		if err != nil {
			logger.Debug("skipping connector", "id", id, "err", err)
			continue
		}
		out = append(out, con)
	}
	return out
}

func firstConnected(dev Device, ids []uint32) (drm.Connector, bool) {
	for _, con := range Connectors(dev, ids) {
		if con.State == drm.Connected {
			return con, true
		}
	}
	return drm.Connector{}, false
}

func firstCrtc(dev Device, ids []uint32) (drm.Crtc, bool) {
	for _, id := range ids {
		crtc, err := dev.Crtc(id)
		if err != nil {
			logger.Debug("skipping crtc", "id", id, "err", err)
			continue
		}
		return crtc, true
	}
	return drm.Crtc{}, false
}

// findPlane returns the first primary plane that can drive crtcID, falling
// back to the first other compatible plane.
func findPlane(dev Device, planes []uint32, res drm.Resources, crtcID uint32) (uint32, bool) {
	var primary, other []uint32
	for _, id := range planes {
		info, err := dev.Plane(id)
		if err != nil || !contains(res.FilterCrtcs(info.PossibleCrtcs), crtcID) {
			continue
		}
		if typ, ok, err := dev.PlaneType(id); err == nil && ok && typ == drm.PlanePrimary {
			primary = append(primary, id)
		} else {
			other = append(other, id)
		}
	}

	switch {
	case len(primary) > 0:
		return primary[0], true
	case len(other) > 0:
		return other[0], true
	default:
		return 0, false
	}
}

func contains(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

package eventloop

import (
	"github.com/bnema/kmsloop/internal/drm"
	"github.com/bnema/kmsloop/internal/fbdev"
	"github.com/bnema/kmsloop/internal/kms"
)

// VideoMode is one timing an output supports.
type VideoMode struct {
	Size                  PhysicalSize
	BitDepth              uint16
	RefreshRateMillihertz uint32
}

// MonitorHandle describes an output. Values are snapshots taken at startup.
type MonitorHandle struct {
	Name        string
	NativeID    uint32
	Size        PhysicalSize
	Position    PhysicalPosition
	ScaleFactor float64
	VideoModes  []VideoMode

	// current is the mode the output was driven with, if known.
	current VideoMode
}

// Mode returns the mode the monitor was set up with.
func (m MonitorHandle) Mode() VideoMode {
	if m.current.Size != (PhysicalSize{}) {
		return m.current
	}
	for _, v := range m.VideoModes {
		if v.Size == m.Size {
			return v
		}
	}
	return VideoMode{Size: m.Size, BitDepth: 32, RefreshRateMillihertz: 60000}
}

func videoMode(m drm.ModeInfo) VideoMode {
	w, h := m.Size()
	refresh := m.RefreshMillihertz()
	if refresh == 0 {
		refresh = 60000
	}
	return VideoMode{
		Size:                  PhysicalSize{Width: uint32(w), Height: uint32(h)},
		BitDepth:              32,
		RefreshRateMillihertz: refresh,
	}
}

// kmsMonitors lists every connector; the negotiated one comes first and
// carries the negotiated mode's size.
func kmsMonitors(res *kms.Result, connectors []drm.Connector) []MonitorHandle {
	w, h := res.Size()
	primary := MonitorHandle{
		Name:        res.Connector.Name(),
		NativeID:    res.Connector.ID,
		Size:        PhysicalSize{Width: w, Height: h},
		ScaleFactor: 1,
		current:     videoMode(res.Mode),
	}
	for _, m := range res.Connector.Modes {
		primary.VideoModes = append(primary.VideoModes, videoMode(m))
	}

	monitors := []MonitorHandle{primary}
	for _, c := range connectors {
		if c.ID == res.Connector.ID {
			continue
		}
		mon := MonitorHandle{Name: c.Name(), NativeID: c.ID, ScaleFactor: 1}
		if m, ok := kms.SelectMode(c.Modes); ok {
			mw, mh := m.Size()
			mon.Size = PhysicalSize{Width: uint32(mw), Height: uint32(mh)}
		}
		for _, m := range c.Modes {
			mon.VideoModes = append(mon.VideoModes, videoMode(m))
		}
		monitors = append(monitors, mon)
	}
	return monitors
}

func fbdevMonitor(info fbdev.Info) MonitorHandle {
	size := PhysicalSize{Width: info.Width, Height: info.Height}
	return MonitorHandle{
		Name:        info.Name,
		Size:        size,
		ScaleFactor: 1,
		VideoModes: []VideoMode{{
			Size:                  size,
			BitDepth:              info.BitsPerPixel,
			RefreshRateMillihertz: uint32(info.RefreshHz) * 1000,
		}},
	}
}

package kms

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/kmsloop/internal/drm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlane struct {
	info drm.Plane
	typ  drm.PlaneType
	// untyped planes expose no "type" property
	untyped bool
}

type fakeDevice struct {
	capErr     error
	res        drm.Resources
	connectors map[uint32]drm.Connector
	crtcs      map[uint32]drm.Crtc
	planes     []uint32
	planeInfo  map[uint32]fakePlane
	atomicSet  bool
}

func (d *fakeDevice) SetClientCap(capability, value uint64) error {
	if d.capErr != nil {
		return d.capErr
	}
	if capability == drm.ClientCapAtomic && value == 1 {
		d.atomicSet = true
	}
	return nil
}

func (d *fakeDevice) Resources() (drm.Resources, error) { return d.res, nil }

func (d *fakeDevice) Connector(id uint32) (drm.Connector, error) {
	c, ok := d.connectors[id]
	if !ok {
		return drm.Connector{}, fmt.Errorf("no connector %d", id)
	}
	return c, nil
}

func (d *fakeDevice) Crtc(id uint32) (drm.Crtc, error) {
	c, ok := d.crtcs[id]
	if !ok {
		return drm.Crtc{}, fmt.Errorf("no crtc %d", id)
	}
	return c, nil
}

func (d *fakeDevice) PlaneHandles() ([]uint32, error) { return d.planes, nil }

func (d *fakeDevice) Plane(id uint32) (drm.Plane, error) {
	p, ok := d.planeInfo[id]
	if !ok {
		return drm.Plane{}, fmt.Errorf("no plane %d", id)
	}
	return p.info, nil
}

func (d *fakeDevice) PlaneType(id uint32) (drm.PlaneType, bool, error) {
	p, ok := d.planeInfo[id]
	if !ok {
		return 0, false, fmt.Errorf("no plane %d", id)
	}
	if p.untyped {
		return 0, false, nil
	}
	return p.typ, true, nil
}

func mode(name string, w, h uint16, preferred bool) drm.ModeInfo {
	m := drm.ModeInfo{Hdisplay: w, Vdisplay: h, Vrefresh: 60}
	copy(m.RawName[:], name)
	if preferred {
		m.Type |= drm.ModeTypePreferred
	}
	return m
}

// newDevice builds a card with three connectors, two crtcs and three planes.
// Only connector 12 is connected.
func newDevice() *fakeDevice {
	return &fakeDevice{
		res: drm.Resources{
			Connectors: []uint32{10, 11, 12},
			Crtcs:      []uint32{40, 41},
		},
		connectors: map[uint32]drm.Connector{
			10: {ID: 10, Type: 11, TypeID: 1, State: drm.Disconnected, Modes: []drm.ModeInfo{mode("640x480", 640, 480, true)}},
			11: {ID: 11, Type: 10, TypeID: 1, State: drm.UnknownConnection},
			12: {ID: 12, Type: 14, TypeID: 1, State: drm.Connected, Modes: []drm.ModeInfo{
				mode("1920x1080", 1920, 1080, false),
				mode("1280x720", 1280, 720, true),
			}},
		},
		crtcs: map[uint32]drm.Crtc{
			40: {ID: 40},
			41: {ID: 41},
		},
		planes: []uint32{30, 31, 32},
		planeInfo: map[uint32]fakePlane{
			30: {info: drm.Plane{ID: 30, PossibleCrtcs: 0b10}, typ: drm.PlanePrimary},
			31: {info: drm.Plane{ID: 31, PossibleCrtcs: 0b01}, typ: drm.PlaneOverlay},
			32: {info: drm.Plane{ID: 32, PossibleCrtcs: 0b11}, typ: drm.PlanePrimary},
		},
	}
}

func TestNegotiate(t *testing.T) {
	t.Run("selects the connected connector and its preferred mode", func(t *testing.T) {
		dev := newDevice()

		res, err := Negotiate(dev)
		require.NoError(t, err)

		assert.True(t, dev.atomicSet)
		assert.Equal(t, uint32(12), res.Connector.ID)
		assert.Equal(t, "1280x720", res.Mode.Name())
		w, h := res.Size()
		assert.Equal(t, uint32(1280), w)
		assert.Equal(t, uint32(720), h)
		assert.Equal(t, uint32(40), res.Crtc.ID, "first crtc wins")
	})

	t.Run("prefers a primary plane compatible with the crtc", func(t *testing.T) {
		res, err := Negotiate(newDevice())
		require.NoError(t, err)
		// Plane 30 is primary but only drives crtc 41; 31 is an overlay on 40.
		assert.Equal(t, uint32(32), res.Plane)
	})

	t.Run("falls back to a compatible non-primary plane", func(t *testing.T) {
		dev := newDevice()
		dev.planeInfo[32] = fakePlane{info: drm.Plane{ID: 32, PossibleCrtcs: 0b10}, typ: drm.PlanePrimary}

		res, err := Negotiate(dev)
		require.NoError(t, err)
		assert.Equal(t, uint32(31), res.Plane)
	})

	t.Run("planes without a type property count as non-primary", func(t *testing.T) {
		dev := newDevice()
		dev.planes = []uint32{33}
		dev.planeInfo[33] = fakePlane{info: drm.Plane{ID: 33, PossibleCrtcs: 0b01}, untyped: true}

		res, err := Negotiate(dev)
		require.NoError(t, err)
		assert.Equal(t, uint32(33), res.Plane)
	})

	t.Run("connector position does not matter", func(t *testing.T) {
		dev := newDevice()
		dev.res.Connectors = []uint32{12, 10, 11}

		res, err := Negotiate(dev)
		require.NoError(t, err)
		assert.Equal(t, uint32(12), res.Connector.ID)
	})

	t.Run("first mode when none is preferred", func(t *testing.T) {
		dev := newDevice()
		c := dev.connectors[12]
		c.Modes = []drm.ModeInfo{mode("800x600", 800, 600, false), mode("1024x768", 1024, 768, false)}
		dev.connectors[12] = c

		res, err := Negotiate(dev)
		require.NoError(t, err)
		assert.Equal(t, "800x600", res.Mode.Name())
	})
}

func TestNegotiateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeDevice)
		want   error
	}{
		{
			name:   "atomic unsupported",
			mutate: func(d *fakeDevice) { d.capErr = errors.New("EOPNOTSUPP") },
			want:   ErrAtomicUnsupported,
		},
		{
			name: "no connected connector",
			mutate: func(d *fakeDevice) {
				c := d.connectors[12]
				c.State = drm.Disconnected
				d.connectors[12] = c
			},
			want: ErrNoConnector,
		},
		{
			name:   "no crtcs",
			mutate: func(d *fakeDevice) { d.res.Crtcs = nil },
			want:   ErrNoCrtc,
		},
		{
			name: "connector without modes",
			mutate: func(d *fakeDevice) {
				c := d.connectors[12]
				c.Modes = nil
				d.connectors[12] = c
			},
			want: ErrNoModes,
		},
		{
			name:   "no compatible plane",
			mutate: func(d *fakeDevice) { d.planes = []uint32{30} },
			want:   ErrNoPlane,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			tt.mutate(dev)

			_, err := Negotiate(dev)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSelectMode(t *testing.T) {
	_, ok := SelectMode(nil)
	assert.False(t, ok)

	m, ok := SelectMode([]drm.ModeInfo{mode("a", 1, 1, false), mode("b", 2, 2, true), mode("c", 3, 3, true)})
	require.True(t, ok)
	assert.Equal(t, "b", m.Name())
}

func TestConnectorsSkipsFailures(t *testing.T) {
	dev := newDevice()
	cons := Connectors(dev, []uint32{10, 99, 12})
	require.Len(t, cons, 2)
	assert.Equal(t, uint32(10), cons[0].ID)
	assert.Equal(t, uint32(12), cons[1].ID)
}

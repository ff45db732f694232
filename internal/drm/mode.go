package drm

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

const (
	propNameLen        = 32
	displayModeNameLen = 32
	maxEnumerateTries  = 5
)

// Client capabilities accepted by SetClientCap.
const (
	ClientCapStereo3D        = 1
	ClientCapUniversalPlanes = 2
	ClientCapAtomic          = 3
)

// ObjectPlane is the mode object type tag for planes.
const ObjectPlane = 0xeeeeeeee

// ModeTypePreferred marks the mode the sink reports as its native timing.
const ModeTypePreferred = 1 << 3

// ErrResourcesChanged is returned when the object counts keep changing while
// the kernel is being queried.
var ErrResourcesChanged = errors.New("drm: resource counts changed during enumeration")

// ConnectorState is the connection status reported for a connector.
type ConnectorState uint32

const (
	Connected         ConnectorState = 1
	Disconnected      ConnectorState = 2
	UnknownConnection ConnectorState = 3
)

func (s ConnectorState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PlaneType is the value of a plane's "type" property.
type PlaneType uint64

const (
	PlaneOverlay PlaneType = 0
	PlanePrimary PlaneType = 1
	PlaneCursor  PlaneType = 2
)

func (t PlaneType) String() string {
	switch t {
	case PlaneOverlay:
		return "overlay"
	case PlanePrimary:
		return "primary"
	case PlaneCursor:
		return "cursor"
	default:
		return fmt.Sprintf("type(%d)", uint64(t))
	}
}

// ModeInfo mirrors struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	RawName    [displayModeNameLen]byte
}

// Size returns the active area in pixels.
func (m ModeInfo) Size() (width, height uint16) {
	return m.Hdisplay, m.Vdisplay
}

// Name returns the kernel mode name, e.g. "1920x1080".
func (m ModeInfo) Name() string {
	return cString(m.RawName[:])
}

// Preferred reports whether the sink flagged this mode as preferred.
func (m ModeInfo) Preferred() bool {
	return m.Type&ModeTypePreferred != 0
}

// RefreshMillihertz returns the refresh rate in mHz, computed from the
// timings when they are available.
func (m ModeInfo) RefreshMillihertz() uint32 {
	if m.Htotal == 0 || m.Vtotal == 0 {
		return m.Vrefresh * 1000
	}
	return uint32(uint64(m.Clock) * 1000 * 1000 / (uint64(m.Htotal) * uint64(m.Vtotal)))
}

// Resources is the global resource table of a card.
type Resources struct {
	Fbs        []uint32
	Crtcs      []uint32
	Connectors []uint32
	Encoders   []uint32
	MinWidth   uint32
	MaxWidth   uint32
	MinHeight  uint32
	MaxHeight  uint32
}

// FilterCrtcs turns a possible-CRTC bitmask into CRTC ids. Bit i refers to
// the i-th CRTC of the resource table.
func (r Resources) FilterCrtcs(mask uint32) []uint32 {
	var out []uint32
	for i, id := range r.Crtcs {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			out = append(out, id)
		}
	}
	return out
}

// Connector describes one display output port.
type Connector struct {
	ID        uint32
	EncoderID uint32
	Type      uint32
	TypeID    uint32
	State     ConnectorState
	MmWidth   uint32
	MmHeight  uint32
	Modes     []ModeInfo
	Encoders  []uint32
}

var connectorTypeNames = []string{
	"Unknown", "VGA", "DVI-I", "DVI-D", "DVI-A", "Composite", "SVIDEO", "LVDS",
	"Component", "DIN", "DP", "HDMI-A", "HDMI-B", "TV", "eDP", "Virtual", "DSI",
	"DPI", "Writeback", "SPI", "USB",
}

// Name returns the conventional connector name, e.g. "HDMI-A-1".
func (c Connector) Name() string {
	typ := "Unknown"
	if int(c.Type) < len(connectorTypeNames) {
		typ = connectorTypeNames[c.Type]
	}
	return fmt.Sprintf("%s-%d", typ, c.TypeID)
}

// Crtc describes one scanout controller.
type Crtc struct {
	ID        uint32
	FbID      uint32
	X, Y      uint32
	GammaSize uint32
	ModeValid bool
	Mode      ModeInfo
}

// Plane describes one scanout surface.
type Plane struct {
	ID            uint32
	CrtcID        uint32
	FbID          uint32
	PossibleCrtcs uint32
	GammaSize     uint32
	Formats       []uint32
}

// Property is the metadata of a mode object property.
type Property struct {
	ID    uint32
	Flags uint32
	Name  string
}

// SetClientCap toggles a client capability such as ClientCapAtomic.
func (c *Card) SetClientCap(capability, value uint64) error {
	arg := setClientCap{Capability: capability, Value: value}
	if err := ioctl(c.Fd(), ioctlSetClientCap, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set client cap %d: %w", capability, err)
	}
	return nil
}

// Resources loads the card's resource ids.
func (c *Card) Resources() (Resources, error) {
	for try := 0; try < maxEnumerateTries; try++ {
		var counts modeCardRes
		if err := ioctl(c.Fd(), ioctlModeGetResources, unsafe.Pointer(&counts)); err != nil {
			return Resources{}, fmt.Errorf("get resources: %w", err)
		}

		res := Resources{
			Fbs:        make([]uint32, counts.CountFbs),
			Crtcs:      make([]uint32, counts.CountCrtcs),
			Connectors: make([]uint32, counts.CountConnector),
			Encoders:   make([]uint32, counts.CountEncoders),
		}
		arg := counts
		arg.FbIDPtr = ptr(res.Fbs)
		arg.CrtcIDPtr = ptr(res.Crtcs)
		arg.ConnectorIDPtr = ptr(res.Connectors)
		arg.EncoderIDPtr = ptr(res.Encoders)
		err := ioctl(c.Fd(), ioctlModeGetResources, unsafe.Pointer(&arg))
		runtime.KeepAlive(res)
		if err != nil {
			return Resources{}, fmt.Errorf("get resources: %w", err)
		}
		if arg.CountFbs > counts.CountFbs || arg.CountCrtcs > counts.CountCrtcs ||
			arg.CountConnector > counts.CountConnector || arg.CountEncoders > counts.CountEncoders {
			continue
		}

		res.Fbs = res.Fbs[:arg.CountFbs]
		res.Crtcs = res.Crtcs[:arg.CountCrtcs]
		res.Connectors = res.Connectors[:arg.CountConnector]
		res.Encoders = res.Encoders[:arg.CountEncoders]
		res.MinWidth, res.MaxWidth = arg.MinWidth, arg.MaxWidth
		res.MinHeight, res.MaxHeight = arg.MinHeight, arg.MaxHeight
		return res, nil
	}
	return Resources{}, ErrResourcesChanged
}

// Connector loads one connector, including its mode list.
func (c *Card) Connector(id uint32) (Connector, error) {
	for try := 0; try < maxEnumerateTries; try++ {
		counts := modeGetConnector{ConnectorID: id}
		if err := ioctl(c.Fd(), ioctlModeGetConnector, unsafe.Pointer(&counts)); err != nil {
			return Connector{}, fmt.Errorf("get connector %d: %w", id, err)
		}

		modes := make([]ModeInfo, counts.CountModes)
		encoders := make([]uint32, counts.CountEncoders)
		props := make([]uint32, counts.CountProps)
		values := make([]uint64, counts.CountProps)
		arg := modeGetConnector{
			ConnectorID:   id,
			CountModes:    counts.CountModes,
			CountEncoders: counts.CountEncoders,
			CountProps:    counts.CountProps,
			ModesPtr:      ptr(modes),
			EncodersPtr:   ptr(encoders),
			PropsPtr:      ptr(props),
			PropValuesPtr: ptr(values),
		}
		err := ioctl(c.Fd(), ioctlModeGetConnector, unsafe.Pointer(&arg))
		runtime.KeepAlive(modes)
		runtime.KeepAlive(encoders)
		runtime.KeepAlive(props)
		runtime.KeepAlive(values)
		if err != nil {
			return Connector{}, fmt.Errorf("get connector %d: %w", id, err)
		}
		if arg.CountModes > counts.CountModes || arg.CountEncoders > counts.CountEncoders || arg.CountProps > counts.CountProps {
			continue
		}

		return Connector{
			ID:        arg.ConnectorID,
			EncoderID: arg.EncoderID,
			Type:      arg.ConnectorType,
			TypeID:    arg.ConnectorTypeID,
			State:     ConnectorState(arg.Connection),
			MmWidth:   arg.MmWidth,
			MmHeight:  arg.MmHeight,
			Modes:     modes[:arg.CountModes],
			Encoders:  encoders[:arg.CountEncoders],
		}, nil
	}
	return Connector{}, ErrResourcesChanged
}

// Crtc loads one CRTC.
func (c *Card) Crtc(id uint32) (Crtc, error) {
	arg := modeCrtc{CrtcID: id}
	if err := ioctl(c.Fd(), ioctlModeGetCrtc, unsafe.Pointer(&arg)); err != nil {
		return Crtc{}, fmt.Errorf("get crtc %d: %w", id, err)
	}
	return Crtc{
		ID:        arg.CrtcID,
		FbID:      arg.FbID,
		X:         arg.X,
		Y:         arg.Y,
		GammaSize: arg.GammaSize,
		ModeValid: arg.ModeValid != 0,
		Mode:      arg.Mode,
	}, nil
}

// PlaneHandles lists every plane id. Universal planes must be enabled for
// primary and cursor planes to show up; enabling atomic does that implicitly.
func (c *Card) PlaneHandles() ([]uint32, error) {
	for try := 0; try < maxEnumerateTries; try++ {
		var counts modeGetPlaneRes
		if err := ioctl(c.Fd(), ioctlModeGetPlaneRes, unsafe.Pointer(&counts)); err != nil {
			return nil, fmt.Errorf("get plane resources: %w", err)
		}
		ids := make([]uint32, counts.CountPlanes)
		arg := modeGetPlaneRes{CountPlanes: counts.CountPlanes, PlaneIDPtr: ptr(ids)}
		err := ioctl(c.Fd(), ioctlModeGetPlaneRes, unsafe.Pointer(&arg))
		runtime.KeepAlive(ids)
		if err != nil {
			return nil, fmt.Errorf("get plane resources: %w", err)
		}
		if arg.CountPlanes > counts.CountPlanes {
			continue
		}
		return ids[:arg.CountPlanes], nil
	}
	return nil, ErrResourcesChanged
}

// Plane loads one plane.
func (c *Card) Plane(id uint32) (Plane, error) {
	counts := modeGetPlane{PlaneID: id}
	if err := ioctl(c.Fd(), ioctlModeGetPlane, unsafe.Pointer(&counts)); err != nil {
		return Plane{}, fmt.Errorf("get plane %d: %w", id, err)
	}
	formats := make([]uint32, counts.CountFormatTypes)
	arg := modeGetPlane{PlaneID: id, CountFormatTypes: counts.CountFormatTypes, FormatTypePtr: ptr(formats)}
	err := ioctl(c.Fd(), ioctlModeGetPlane, unsafe.Pointer(&arg))
	runtime.KeepAlive(formats)
	if err != nil {
		return Plane{}, fmt.Errorf("get plane %d: %w", id, err)
	}
	n := arg.CountFormatTypes
	if n > counts.CountFormatTypes {
		n = counts.CountFormatTypes
	}
	return Plane{
		ID:            arg.PlaneID,
		CrtcID:        arg.CrtcID,
		FbID:          arg.FbID,
		PossibleCrtcs: arg.PossibleCrtcs,
		GammaSize:     arg.GammaSize,
		Formats:       formats[:n],
	}, nil
}

// ObjectProperties returns the property ids and values attached to a mode object.
func (c *Card) ObjectProperties(objID, objType uint32) ([]uint32, []uint64, error) {
	for try := 0; try < maxEnumerateTries; try++ {
		counts := modeObjGetProperties{ObjID: objID, ObjType: objType}
		if err := ioctl(c.Fd(), ioctlModeObjGetProperty, unsafe.Pointer(&counts)); err != nil {
			return nil, nil, fmt.Errorf("get properties of object %d: %w", objID, err)
		}
		ids := make([]uint32, counts.CountProps)
		values := make([]uint64, counts.CountProps)
		arg := modeObjGetProperties{
			ObjID:         objID,
			ObjType:       objType,
			CountProps:    counts.CountProps,
			PropsPtr:      ptr(ids),
			PropValuesPtr: ptr(values),
		}
		err := ioctl(c.Fd(), ioctlModeObjGetProperty, unsafe.Pointer(&arg))
		runtime.KeepAlive(ids)
		runtime.KeepAlive(values)
		if err != nil {
			return nil, nil, fmt.Errorf("get properties of object %d: %w", objID, err)
		}
		if arg.CountProps > counts.CountProps {
			continue
		}
		return ids[:arg.CountProps], values[:arg.CountProps], nil
	}
	return nil, nil, ErrResourcesChanged
}

// Property loads a property's metadata. Enum values and blobs are not fetched.
func (c *Card) Property(id uint32) (Property, error) {
	arg := modeGetProperty{PropID: id}
	if err := ioctl(c.Fd(), ioctlModeGetProperty, unsafe.Pointer(&arg)); err != nil {
		return Property{}, fmt.Errorf("get property %d: %w", id, err)
	}
	return Property{ID: arg.PropID, Flags: arg.Flags, Name: cString(arg.Name[:])}, nil
}

// PlaneType looks up the "type" property of a plane. ok is false when the
// plane exposes no such property.
func (c *Card) PlaneType(id uint32) (t PlaneType, ok bool, err error) {
	ids, values, err := c.ObjectProperties(id, ObjectPlane)
	if err != nil {
		return 0, false, err
	}
	for i, propID := range ids {
		prop, err := c.Property(propID)
		if err != nil {
			continue
		}
		if prop.Name == "type" {
			return PlaneType(values[i]), true, nil
		}
	}
	return 0, false, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

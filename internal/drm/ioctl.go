package drm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2

	drmIoctlBase = 'd'
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(nr, size uintptr) uintptr  { return ioc(iocWrite, drmIoctlBase, nr, size) }
func iowr(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, drmIoctlBase, nr, size) }

var (
	ioctlSetClientCap       = iow(0x0d, unsafe.Sizeof(setClientCap{}))
	ioctlModeGetResources   = iowr(0xa0, unsafe.Sizeof(modeCardRes{}))
	ioctlModeGetCrtc        = iowr(0xa1, unsafe.Sizeof(modeCrtc{}))
	ioctlModeGetConnector   = iowr(0xa7, unsafe.Sizeof(modeGetConnector{}))
	ioctlModeGetProperty    = iowr(0xaa, unsafe.Sizeof(modeGetProperty{}))
	ioctlModeGetPlaneRes    = iowr(0xb5, unsafe.Sizeof(modeGetPlaneRes{}))
	ioctlModeGetPlane       = iowr(0xb6, unsafe.Sizeof(modeGetPlane{}))
	ioctlModeObjGetProperty = iowr(0xb9, unsafe.Sizeof(modeObjGetProperties{}))
)

type setClientCap struct {
	Capability uint64
	Value      uint64
}

type modeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFbs       uint32
	CountCrtcs     uint32
	CountConnector uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

type modeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

type modeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	_               uint32
}

type modeGetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [propNameLen]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type modeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32
}

type modeGetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCrtcs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type modeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	_             uint32
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

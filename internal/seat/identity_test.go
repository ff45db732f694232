package seat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyFromSysfs(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev := "/sys/class/input/event3/device"
	require.NoError(t, afero.WriteFile(fs, dev+"/name", []byte("AT Translated Set 2 keyboard\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, dev+"/phys", []byte("isa0060/serio0/input0\n"), 0o644))

	e := &Enumerator{FS: fs}
	id, err := e.Identify("/dev/input/event3")
	require.NoError(t, err)
	assert.Equal(t, "AT Translated Set 2 keyboard", id.Name)
	assert.Equal(t, "isa0060/serio0/input0", id.String())

	require.NoError(t, afero.WriteFile(fs, dev+"/id/vendor", []byte("0001\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, dev+"/id/product", []byte("0001\n"), 0o644))
	id, err = e.Identify("/dev/input/event3")
	require.NoError(t, err)
	assert.Equal(t, "0001:0001", id.String())
}

func TestIdentifyByIDLink(t *testing.T) {
	root := t.TempDir()
	byID := filepath.Join(root, "dev", "input", "by-id")
	require.NoError(t, os.MkdirAll(byID, 0o755))
	require.NoError(t, os.Symlink("../event7", filepath.Join(byID, "usb-Logitech_USB_Keyboard-event-kbd")))
	require.NoError(t, os.Symlink("../event8", filepath.Join(byID, "usb-Logitech_USB_Keyboard-if01-event-kbd")))

	e := &Enumerator{FS: afero.NewBasePathFs(afero.NewOsFs(), root)}
	id, err := e.Identify("/dev/input/event7")
	require.NoError(t, err)
	assert.Equal(t, "/dev/input/by-id/usb-Logitech_USB_Keyboard-event-kbd", id.ByID)
	assert.Empty(t, id.ByPath)
	assert.Equal(t, "Logitech_USB_Keyboard", id.String())
}

func TestIdentifyUnknown(t *testing.T) {
	e := &Enumerator{FS: afero.NewMemMapFs()}
	_, err := e.Identify("/dev/input/event9")
	assert.Error(t, err)
}

func TestCleanDeviceName(t *testing.T) {
	tests := map[string]string{
		"usb-Logitech_USB_Receiver-if02-event-mouse": "Logitech_USB_Receiver",
		"usb-Logitech_USB_Receiver-event-if01":       "Logitech_USB_Receiver",
		"platform-i8042-serio-0-event-kbd":           "i8042-serio-0",
		"plain":                                      "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanDeviceName(in), in)
	}
}

package seat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirect(t *testing.T) {
	d := NewDirect("")
	assert.Equal(t, DefaultSeat, d.SeatName())

	p := filepath.Join(t.TempDir(), "node")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	f, err := d.OpenDevice(p)
	require.NoError(t, err)
	assert.Equal(t, p, f.Name())
	require.NoError(t, d.CloseDevice(f))
	require.NoError(t, d.Close())

	_, err = d.OpenDevice(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestAcquireCard(t *testing.T) {
	p := filepath.Join(t.TempDir(), "card0")
	require.NoError(t, os.WriteFile(p, nil, 0o600))

	t.Run("override skips enumeration", func(t *testing.T) {
		card, err := AcquireCard(NewDirect("seat0"), &Enumerator{FS: afero.NewMemMapFs()}, p)
		require.NoError(t, err)
		defer card.Close()
		assert.Equal(t, p, card.Name())
	})

	t.Run("closing the card releases it through the acquirer", func(t *testing.T) {
		acq := &recordingAcquirer{Direct: NewDirect("seat0")}
		card, err := AcquireCard(acq, nil, p)
		require.NoError(t, err)
		clone := card.Clone()

		require.NoError(t, card.Close())
		assert.Empty(t, acq.closed)
		require.NoError(t, clone.Close())
		assert.Equal(t, []string{p}, acq.closed)
	})

	t.Run("enumeration failure", func(t *testing.T) {
		fs := buildSysfs(t, sysNode{class: sysClassDRM, name: "card0", devnum: "226:0", udev: "E:ID_SEAT=seat9\n"})
		_, err := AcquireCard(NewDirect("seat0"), &Enumerator{FS: fs}, "")
		assert.ErrorIs(t, err, ErrNoAdapter)
	})

	t.Run("open failure", func(t *testing.T) {
		_, err := AcquireCard(NewDirect("seat0"), nil, filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize DRM")
	})
}

type recordingAcquirer struct {
	*Direct
	closed []string
}

func (a *recordingAcquirer) CloseDevice(f *os.File) error {
	a.closed = append(a.closed, f.Name())
	return a.Direct.CloseDevice(f)
}

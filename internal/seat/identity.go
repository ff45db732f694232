package seat

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Identity names an input device in a way that survives re-plugging,
// unlike its eventN node.
type Identity struct {
	Name string
	// ByID and ByPath are the /dev/input symlinks pointing at the node.
	ByID    string
	ByPath  string
	Vendor  string
	Product string
	Phys    string
}

// String returns the most stable label available.
func (id Identity) String() string {
	switch {
	case id.ByID != "":
		return cleanDeviceName(path.Base(id.ByID))
	case id.Vendor != "" && id.Product != "":
		return id.Vendor + ":" + id.Product
	case id.Phys != "":
		return id.Phys
	}
	return id.Name
}

// Identify collects the persistent identifiers of an input device node. The
// udev symlink directories are only consulted when FS can read links.
func (e *Enumerator) Identify(devNode string) (Identity, error) {
	var id Identity
	event := path.Base(devNode)

	id.ByID = e.findLink("/dev/input/by-id", event)
	if id.ByID == "" {
		id.ByPath = e.findLink("/dev/input/by-path", event)
	}

	dev := path.Join("/sys/class/input", event, "device")
	id.Name, _ = e.attr(path.Join(dev, "name"))
	id.Phys, _ = e.attr(path.Join(dev, "phys"))
	id.Vendor, _ = e.attr(path.Join(dev, "id", "vendor"))
	id.Product, _ = e.attr(path.Join(dev, "id", "product"))

	if id.ByID == "" && id.ByPath == "" && id.Phys == "" && id.Vendor == "" {
		return id, fmt.Errorf("could not find persistent identifier for %s", devNode)
	}
	return id, nil
}

func (e *Enumerator) findLink(dir, event string) string {
	lr, ok := e.FS.(afero.LinkReader)
	if !ok {
		return ""
	}
	entries, err := afero.ReadDir(e.FS, dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), "event") {
			continue
		}
		link := path.Join(dir, entry.Name())
		if target, err := lr.ReadlinkIfPossible(link); err == nil && path.Base(target) == event {
			return link
		}
	}
	return ""
}

// cleanDeviceName removes common prefixes/suffixes for cleaner display
func cleanDeviceName(name string) string {
	name = strings.TrimPrefix(name, "usb-")
	name = strings.TrimPrefix(name, "platform-")
	for _, suffix := range []string{"-event-kbd", "-event-mouse", "-event-joystick", "-event-if01", "-event-if02", "-if01", "-if02"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

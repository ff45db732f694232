package seat

import (
	"bufio"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/bnema/kmsloop/internal/logger"
	"github.com/spf13/afero"
)

// DefaultSeat is the seat devices belong to when udev assigns none.
const DefaultSeat = "seat0"

const (
	sysClassDRM   = "/sys/class/drm"
	sysClassInput = "/sys/class/input"
	udevDataDir   = "/run/udev/data"
)

// ErrNoAdapter is returned when no display device belongs to the seat.
var ErrNoAdapter = errors.New("seat: failed to find suitable GPU")

// Node is one character device found in sysfs.
type Node struct {
	SysName string
	DevNode string
	Seat    string
	BootVGA bool
	// Props holds the udev database properties (E: lines), when present.
	Props map[string]string
}

// Enumerator walks sysfs and the udev database. FS is usually the OS
// filesystem; tests substitute an in-memory tree.
type Enumerator struct {
	FS afero.Fs
}

// NewEnumerator returns an enumerator over the real filesystem.
func NewEnumerator() *Enumerator {
	return &Enumerator{FS: afero.NewOsFs()}
}

// FindCard picks the display device for seatName: the first card on the seat
// whose PCI parent is the boot VGA adapter, else the first card on the seat.
func (e *Enumerator) FindCard(seatName string) (string, error) {
	nodes, err := e.scan(sysClassDRM, isCardName)
	if err != nil {
		return "", fmt.Errorf("failed to scan devices: %w", err)
	}

	for _, n := range nodes {
		if n.Seat == seatName && n.BootVGA {
			logger.Debug("selected boot vga card", "node", n.DevNode, "seat", seatName)
			return n.DevNode, nil
		}
	}
	for _, n := range nodes {
		if n.Seat == seatName {
			logger.Debug("selected first card on seat", "node", n.DevNode, "seat", seatName)
			return n.DevNode, nil
		}
	}
	return "", ErrNoAdapter
}

// InputDevices lists the event nodes assigned to seatName. When the udev
// database knows a node but does not tag it ID_INPUT, it is skipped.
func (e *Enumerator) InputDevices(seatName string) ([]Node, error) {
	nodes, err := e.scan(sysClassInput, isEventName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input devices: %w", err)
	}
	var out []Node
	for _, n := range nodes {
		if n.Seat != seatName {
			continue
		}
		if n.Props != nil && n.Props["ID_INPUT"] != "1" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (e *Enumerator) scan(class string, match func(string) bool) ([]Node, error) {
	entries, err := afero.ReadDir(e.FS, class)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if match(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return lessNatural(names[i], names[j]) })

	var nodes []Node
	for _, name := range names {
		dir := path.Join(class, name)
		n, ok := e.readNode(dir, name)
		if !ok {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// readNode fills a Node from sysfs. Entries without a "dev" attribute have
// no device node (e.g. DRM connector directories) and are skipped.
func (e *Enumerator) readNode(dir, name string) (Node, bool) {
	devnum, err := e.attr(path.Join(dir, "dev"))
	if err != nil || devnum == "" {
		return Node{}, false
	}

	n := Node{SysName: name, Seat: DefaultSeat}
	n.DevNode = e.devNode(dir, name)

	if props, err := e.udevProps(devnum); err == nil {
		n.Props = props
		if s := props["ID_SEAT"]; s != "" {
			n.Seat = s
		}
	}

	if v, err := e.attr(path.Join(dir, "device", "boot_vga")); err == nil && v == "1" {
		n.BootVGA = true
	}
	return n, true
}

func (e *Enumerator) devNode(dir, name string) string {
	f, err := e.FS.Open(path.Join(dir, "uevent"))
	if err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if v, ok := strings.CutPrefix(sc.Text(), "DEVNAME="); ok {
				return path.Join("/dev", v)
			}
		}
	}
	if strings.HasPrefix(name, "card") {
		return path.Join("/dev/dri", name)
	}
	return path.Join("/dev/input", name)
}

func (e *Enumerator) udevProps(devnum string) (map[string]string, error) {
	f, err := e.FS.Open(path.Join(udevDataDir, "c"+devnum))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		kv, ok := strings.CutPrefix(sc.Text(), "E:")
		if !ok {
			continue
		}
		if k, v, ok := strings.Cut(kv, "="); ok {
			props[k] = v
		}
	}
	return props, sc.Err()
}

func (e *Enumerator) attr(p string) (string, error) {
	b, err := afero.ReadFile(e.FS, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func isCardName(name string) bool  { return hasNumericSuffix(name, "card") }
func isEventName(name string) bool { return hasNumericSuffix(name, "event") }

func hasNumericSuffix(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// lessNatural orders card2 before card10.
func lessNatural(a, b string) bool {
	ai, bi := trailingNumber(a), trailingNumber(b)
	if ai >= 0 && bi >= 0 && strings.TrimRight(a, "0123456789") == strings.TrimRight(b, "0123456789") {
		return ai < bi
	}
	return a < b
}

func trailingNumber(s string) int {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return -1
	}
	return n
}

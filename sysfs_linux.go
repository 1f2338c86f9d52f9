package webcam

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SysfsEnumerator finds V4L2 capture nodes through sysfs
type SysfsEnumerator struct {
	sysfsDir string
	devDir   string
	// probe opens a node and reports its card name and whether it is a
	// streaming capture device.
	probe func(path string) (string, bool)
}

// NewSysfsEnumerator creates an enumerator over the live system
func NewSysfsEnumerator() *SysfsEnumerator {
	return &SysfsEnumerator{
		sysfsDir: "/sys/class/video4linux",
		devDir:   "/dev",
		probe:    probeCaptureNode,
	}
}

// EnumerateDevices returns every capture node, sorted by its N in videoN.
// Metadata and output-only nodes are skipped.
func (e *SysfsEnumerator) EnumerateDevices() ([]DeviceDescriptor, error) {
	names, err := e.nodeNames()
	if err != nil {
		return nil, err
	}

	devs := make([]DeviceDescriptor, 0, len(names))
	for _, name := range names {
		index, ok := videoIndex(name)
		if !ok {
			continue
		}
		path := filepath.Join(e.devDir, name)
		label := e.readName(name)

		// A node held by one of our sessions cannot be probed without
		// disturbing it, but it is certainly present.
		if !devices.busy(path) {
			card, ok := e.probe(path)
			if !ok {
				continue
			}
			if label == "" {
				label = card
			}
		}
		if label == "" {
			label = name
		}
		devs = append(devs, DeviceDescriptor{Index: index, Name: label, Path: path})
	}

	sort.Slice(devs, func(i, j int) bool { return devs[i].Index < devs[j].Index })
	return devs, nil
}

// nodeNames lists videoN entries from sysfs, falling back to /dev when
// sysfs is not mounted.
func (e *SysfsEnumerator) nodeNames() ([]string, error) {
	entries, err := os.ReadDir(e.sysfsDir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		return names, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", e.sysfsDir, err)
	}

	matches, err := filepath.Glob(filepath.Join(e.devDir, "video*"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names, nil
}

func (e *SysfsEnumerator) readName(node string) string {
	data, err := os.ReadFile(filepath.Join(e.sysfsDir, node, "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func probeCaptureNode(path string) (string, bool) {
	h, err := openV4L2(path)
	if err != nil {
		return "", false
	}
	defer h.Close()
	return cstr(h.caps.card[:]), true
}

func videoIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "video")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n > 255 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// IsValidDevicePath checks if a path is a V4L2 video node path
func IsValidDevicePath(path string) bool {
	dir, name := filepath.Split(path)
	if dir != "/dev/" {
		return false
	}
	_, ok := videoIndex(name)
	return ok
}

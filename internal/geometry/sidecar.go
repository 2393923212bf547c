package geometry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Metadata records the geometry of a split so that merge can recover the
// pre-padding crop region. It is persisted as a plain-text sidecar, one
// key=value pair per line.
type Metadata struct {
	OriginalPath   string
	OriginalWidth  int
	OriginalHeight int
	ProxyWidth     int
	ProxyHeight    int
	ProxyPath      string
}

// HasProxyDims reports whether the record carries usable proxy dimensions.
// Without them, merge must assume no padding was applied.
func (m Metadata) HasProxyDims() bool {
	return m.ProxyWidth > 0 && m.ProxyHeight > 0
}

// SidecarPath returns the sidecar location for a proxy image path.
func SidecarPath(proxyPath string) string {
	stem := strings.TrimSuffix(filepath.Base(proxyPath), filepath.Ext(proxyPath))
	return filepath.Join(filepath.Dir(proxyPath), stem+"_metadata.txt")
}

// SidecarPathForOriginal returns the conventional sidecar location when only
// the original image path is known: the sidecar written for a default-named
// proxy ("<stem>_proxy.png") next to the original.
func SidecarPathForOriginal(originalPath string) string {
	stem := strings.TrimSuffix(filepath.Base(originalPath), filepath.Ext(originalPath))
	return filepath.Join(filepath.Dir(originalPath), stem+"_proxy_metadata.txt")
}

// WriteFile persists the record. The key order and formatting are part of
// the sidecar contract and must not change.
func (m Metadata) WriteFile(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "original_path=%s\n", m.OriginalPath)
	fmt.Fprintf(&b, "original_width=%d\n", m.OriginalWidth)
	fmt.Fprintf(&b, "original_height=%d\n", m.OriginalHeight)
	fmt.Fprintf(&b, "proxy_width=%d\n", m.ProxyWidth)
	fmt.Fprintf(&b, "proxy_height=%d\n", m.ProxyHeight)
	fmt.Fprintf(&b, "proxy_path=%s\n", m.ProxyPath)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ReadMetadata parses a sidecar file. Unknown keys are ignored and missing
// numeric keys leave their fields zero.
func ReadMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()

	var m Metadata

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "original_path":
			m.OriginalPath = value
		case "proxy_path":
			m.ProxyPath = value
		case "original_width":
			m.OriginalWidth, _ = strconv.Atoi(value)
		case "original_height":
			m.OriginalHeight, _ = strconv.Atoi(value)
		case "proxy_width":
			m.ProxyWidth, _ = strconv.Atoi(value)
		case "proxy_height":
			m.ProxyHeight, _ = strconv.Atoi(value)
		}
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, fmt.Errorf("read sidecar: %w", err)
	}

	return m, nil
}

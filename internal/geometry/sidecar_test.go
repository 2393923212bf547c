package geometry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo_proxy_metadata.txt")

	meta := Metadata{
		OriginalPath:   "/images/photo.png",
		OriginalWidth:  2000,
		OriginalHeight: 800,
		ProxyWidth:     1000,
		ProxyHeight:    1000,
		ProxyPath:      "/images/photo_proxy.png",
	}

	if err := meta.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadMetadata(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != meta {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, meta)
	}
	if !got.HasProxyDims() {
		t.Error("expected HasProxyDims after round trip")
	}
}

func TestMetadataFileFormat(t *testing.T) {
	// The sidecar byte format is a compatibility contract.
	dir := t.TempDir()
	path := filepath.Join(dir, "m.txt")

	meta := Metadata{
		OriginalPath:   "in.png",
		OriginalWidth:  10,
		OriginalHeight: 20,
		ProxyWidth:     5,
		ProxyHeight:    5,
		ProxyPath:      "in_proxy.png",
	}
	if err := meta.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	want := "original_path=in.png\n" +
		"original_width=10\n" +
		"original_height=20\n" +
		"proxy_width=5\n" +
		"proxy_height=5\n" +
		"proxy_path=in_proxy.png\n"
	if string(data) != want {
		t.Errorf("sidecar bytes changed:\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestReadMetadataTolerant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.txt")

	content := "original_path=in.png\n" +
		"future_key=whatever\n" +
		"\n" +
		"proxy_path=in_proxy.png\n" +
		"not a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, err := ReadMetadata(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if meta.OriginalPath != "in.png" || meta.ProxyPath != "in_proxy.png" {
		t.Errorf("unexpected paths: %+v", meta)
	}
	if meta.HasProxyDims() {
		t.Error("missing numeric keys must read as no padding metadata")
	}
}

func TestSidecarPaths(t *testing.T) {
	got := SidecarPath(filepath.Join("a", "photo_proxy.png"))
	want := filepath.Join("a", "photo_proxy_metadata.txt")
	if got != want {
		t.Errorf("SidecarPath = %q, want %q", got, want)
	}

	got = SidecarPathForOriginal(filepath.Join("a", "photo.png"))
	want = filepath.Join("a", "photo_proxy_metadata.txt")
	if got != want {
		t.Errorf("SidecarPathForOriginal = %q, want %q", got, want)
	}
}

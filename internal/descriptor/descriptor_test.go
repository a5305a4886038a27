package descriptor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "shop.toml", []byte(`
location = "/srv/modules/shop"
profiles = ["web", "default"]
start = "shop.core/start"
stop = "shop.core/stop"
http_handler = "shop.web/handler"
`))

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Raw {
		t.Error("expected structured descriptor")
	}
	if d.Location != "/srv/modules/shop" {
		t.Errorf("unexpected location %q", d.Location)
	}
	if len(d.Profiles) != 2 || d.Profiles[0] != "web" {
		t.Errorf("unexpected profiles %v", d.Profiles)
	}
	if !d.HasHTTPHandler() {
		t.Error("expected HTTP handler declaration")
	}
	if d.StartCapability() != "shop.core/start" {
		t.Errorf("unexpected start capability %q", d.StartCapability())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "shop.yaml", []byte("start: shop/start\nstop: shop/stop\n"))

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Raw {
		t.Error("expected structured descriptor")
	}
	if d.Location != path {
		t.Errorf("location should default to the file, got %q", d.Location)
	}
	if len(d.Profiles) != 1 || d.Profiles[0] != DefaultProfile {
		t.Errorf("profiles should default, got %v", d.Profiles)
	}
}

func TestLoadUnparsableFallsBack(t *testing.T) {
	path := writeFile(t, "blob.mod", []byte{0x00, 0x01, 0x02, 0xff})

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !d.Raw {
		t.Error("expected raw fallback descriptor")
	}
	if d.Location != path {
		t.Errorf("fallback location should be the file, got %q", d.Location)
	}
	if len(d.Profiles) != 1 || d.Profiles[0] != DefaultProfile {
		t.Errorf("fallback profiles should be [default], got %v", d.Profiles)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestLoadGzippedArtifact(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("start = \"pkg/start\"\nstop = \"pkg/stop\"\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "pkg.toml", buf.Bytes())

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Raw {
		t.Error("expected structured descriptor from gzipped artifact")
	}
	if d.StartCapability() != "pkg/start" {
		t.Errorf("unexpected start capability %q", d.StartCapability())
	}
}

func TestCapabilityDefaults(t *testing.T) {
	d := Default("x.mod")
	if d.StartCapability() != DefaultStartCapability {
		t.Errorf("unexpected default start %q", d.StartCapability())
	}
	if d.StopCapability() != DefaultStopCapability {
		t.Errorf("unexpected default stop %q", d.StopCapability())
	}
}

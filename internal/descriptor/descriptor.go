package descriptor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/pelletier/go-toml/v2"
)

// DefaultProfile is assigned when a descriptor declares no profiles.
const DefaultProfile = "default"

// Capability names a function the box runs on the module's behalf.
const (
	DefaultStartCapability = "start"
	DefaultStopCapability  = "stop"
)

// Descriptor describes one deployable module. It is a tagged variant:
// Structured descriptors carry explicit capabilities parsed from the
// artifact; Raw descriptors point at a self-describing artifact whose
// metadata is read once loaded into its box.
type Descriptor struct {
	Location    string   `toml:"location" yaml:"location" json:"location"`
	Profiles    []string `toml:"profiles" yaml:"profiles" json:"profiles"`
	Start       string   `toml:"start" yaml:"start" json:"start"`
	Stop        string   `toml:"stop" yaml:"stop" json:"stop"`
	HTTPHandler string   `toml:"http_handler" yaml:"http_handler" json:"http_handler,omitempty"`

	// Raw marks the fallback variant: the artifact at Location could
	// not be parsed as a structured descriptor and is assumed to
	// self-describe via its own embedded metadata.
	Raw bool `toml:"-" yaml:"-" json:"raw,omitempty"`
}

// StartCapability returns the declared start capability or the default.
func (d *Descriptor) StartCapability() string {
	if d.Start != "" {
		return d.Start
	}
	return DefaultStartCapability
}

// StopCapability returns the declared stop capability or the default.
func (d *Descriptor) StopCapability() string {
	if d.Stop != "" {
		return d.Stop
	}
	return DefaultStopCapability
}

// HasHTTPHandler reports whether the module declares an HTTP handler.
func (d *Descriptor) HasHTTPHandler() bool {
	return d.HTTPHandler != ""
}

// Default returns the raw-artifact fallback descriptor for file.
func Default(file string) *Descriptor {
	return &Descriptor{
		Location: file,
		Profiles: []string{DefaultProfile},
		Raw:      true,
	}
}

// Load reads and parses the module descriptor at file. A missing or
// unreadable file is an error; an artifact that parses as neither TOML
// nor YAML yields the Default fallback instead.
func Load(file string) (*Descriptor, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read module artifact %s: %w", file, err)
	}

	// Artifacts may ship gzip-compressed; sniff and unwrap before parsing.
	if mimetype.Detect(data).Is("application/gzip") {
		unpacked, err := gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("decompress module artifact %s: %w", file, err)
		}
		data = unpacked
	}

	d, ok := parse(file, data)
	if !ok {
		return Default(file), nil
	}

	if d.Location == "" {
		d.Location = file
	}
	if len(d.Profiles) == 0 {
		d.Profiles = []string{DefaultProfile}
	}
	return d, nil
}

func parse(file string, data []byte) (*Descriptor, bool) {
	var d Descriptor
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		if yaml.Unmarshal(data, &d) == nil && !empty(&d) {
			return &d, true
		}
	default:
		if toml.Unmarshal(data, &d) == nil && !empty(&d) {
			return &d, true
		}
	}
	return nil, false
}

// empty guards against format parsers accepting arbitrary input and
// producing a zero descriptor.
func empty(d *Descriptor) bool {
	return d.Location == "" && len(d.Profiles) == 0 && d.Start == "" &&
		d.Stop == "" && d.HTTPHandler == ""
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

package persist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mlp_lib/nn"
)

// Format selects a parameter file encoding.
type Format int

const (
	FormatBinary Format = iota
	FormatBinaryRaw
	FormatText
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatBinaryRaw:
		return "raw"
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat accepts the names printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "binary", "bin":
		return FormatBinary, nil
	case "raw":
		return FormatBinaryRaw, nil
	case "text", "xml", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, &nn.ConfigError{Field: "format", Value: s, Reason: "want binary, raw, text or json"}
}

// FormatFromPath picks a format from the file extension: .bin, .raw,
// .xml/.txt or .json.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, &nn.ConfigError{Field: "format", Value: path, Reason: "no file extension"}
	}
	return ParseFormat(ext)
}

// Encode writes net to w in the given format.
func Encode(w io.Writer, net *nn.Network, format Format) error {
	switch format {
	case FormatBinary:
		return WriteBinary(w, net)
	case FormatBinaryRaw:
		return WriteBinaryRaw(w, net)
	case FormatText:
		return WriteText(w, net)
	case FormatJSON:
		return WriteJSON(w, net)
	}
	return &nn.ConfigError{Field: "format", Value: format, Reason: "unknown"}
}

// Decode reads a self-describing format from r.
func Decode(r io.Reader, format Format) (*nn.Network, error) {
	switch format {
	case FormatBinary:
		return ReadBinary(r)
	case FormatText:
		return ReadText(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatBinaryRaw:
		return nil, &nn.ConfigError{Field: "format", Value: format, Reason: "raw files carry no shape, use LoadFileInto"}
	}
	return nil, &nn.ConfigError{Field: "format", Value: format, Reason: "unknown"}
}

// SaveFile writes net to path. The data goes to a temporary file in the same
// directory which is synced and renamed over path, so a failed save never
// leaves a partial file behind.
func SaveFile(path string, net *nn.Network, format Format) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ioErr("creating temporary file", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, net, format); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return ioErr("syncing "+tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return ioErr("closing "+tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return ioErr("renaming to "+path, err)
	}
	return nil
}

// LoadFile reads a network from a self-describing file.
func LoadFile(path string, format Format) (*nn.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("opening parameters", err)
	}
	defer f.Close()

	net, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return net, nil
}

// LoadFileInto reads a headerless binary file into net, whose shape decides
// how many values are expected.
func LoadFileInto(path string, net *nn.Network) error {
	f, err := os.Open(path)
	if err != nil {
		return ioErr("opening parameters", err)
	}
	defer f.Close()

	if err := ReadBinaryRaw(f, net); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadNetwork picks the format from the path extension and reads the network.
// Headerless raw files are read into a fresh network of shape arch; arch is
// ignored for the self-describing formats.
func LoadNetwork(path string, arch []int) (*nn.Network, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format != FormatBinaryRaw {
		return LoadFile(path, format)
	}
	if len(arch) == 0 {
		return nil, &nn.ConfigError{Field: "architecture", Value: path, Reason: "raw files need the network shape"}
	}
	net, err := nn.New(arch)
	if err != nil {
		return nil, err
	}
	if err := LoadFileInto(path, net); err != nil {
		return nil, err
	}
	return net, nil
}

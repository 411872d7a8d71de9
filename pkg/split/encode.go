package split

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding for split results.
type Format string

const (
	FormatPython  Format = "python"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatPython, FormatJSON, FormatYAML, FormatMsgpack}
}

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// Encode writes r to w.
func Encode(w io.Writer, r *Result, f Format) error {
	switch f {
	case FormatPython:
		return encodePython(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// WriteFile encodes r into the file at path, replacing it. A failure to
// flush the file on close is reported.
func WriteFile(path string, r *Result, f Format) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := Encode(out, r, f); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Decode reads a result written by Encode. Python output carries no
// structure and cannot be decoded.
func Decode(rd io.Reader, f Format) (*Result, error) {
	var r Result
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&r)
	case FormatYAML:
		err = yaml.NewDecoder(rd).Decode(&r)
	case FormatMsgpack:
		err = msgpack.NewDecoder(rd).Decode(&r)
	default:
		return nil, fmt.Errorf("%w %q for decoding", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", f, err)
	}
	return &r, nil
}

func encodePython(w io.Writer, r *Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s split at %s into %d segments\n", r.Function, joinInts(r.Boundaries), len(r.Segments))
	for _, warn := range r.Warnings {
		fmt.Fprintf(&b, "# warning: %s\n", warn)
	}
	for _, seg := range r.Segments {
		b.WriteString("\n")
		fmt.Fprintf(&b, "# lines %d-%d, returns %s\n", seg.StartLine, seg.EndLine, strings.Join(seg.Returns, ", "))
		b.WriteString(seg.Source)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package preset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/amp"
)

// StateHeader opens every persisted state blob.
const StateHeader = "###AlgoAmp###"

// StateVersion is written into new state blobs. Blobs with a different major
// version are rejected.
const StateVersion = "1.0.0"

// maxStateString bounds a single length-prefixed field.
const maxStateString = 1 << 20

var (
	// ErrBadHeader is returned for blobs that do not start with StateHeader.
	ErrBadHeader = errors.New("preset: bad state header")
	// ErrUnsupportedVersion is returned for blobs of another major version.
	ErrUnsupportedVersion = errors.New("preset: unsupported state version")
)

// State is the persisted form of an engine: its module paths and params.
type State struct {
	Version     string
	ModelPath   string
	IRLeftPath  string
	IRRightPath string
	Params      *amp.Params
}

// Capture snapshots the current paths and params of e.
func Capture(e *amp.Engine) *State {
	paths := e.Paths()
	return &State{
		Version:     StateVersion,
		ModelPath:   paths.Model,
		IRLeftPath:  paths.IRLeft,
		IRRightPath: paths.IRRight,
		Params:      e.Params(),
	}
}

// Encode writes s as header, version, three paths and the JSON params, each
// prefixed by its little-endian uint32 length.
func Encode(w io.Writer, s *State) error {
	if s.Params == nil {
		return fmt.Errorf("state without params")
	}
	params, err := json.Marshal(FromParams(s.Params))
	if err != nil {
		return err
	}
	version := s.Version
	if version == "" {
		version = StateVersion
	}

	bw := bufio.NewWriter(w)
	for _, field := range [][]byte{
		[]byte(StateHeader),
		[]byte(version),
		[]byte(s.ModelPath),
		[]byte(s.IRLeftPath),
		[]byte(s.IRRightPath),
		params,
	} {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(field))); err != nil {
			return err
		}
		if _, err := bw.Write(field); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Marshal returns the encoded form of s.
func Marshal(s *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a blob written by Encode.
func Decode(r io.Reader) (*State, error) {
	br := bufio.NewReader(r)
	header, err := readField(br)
	if err != nil || string(header) != StateHeader {
		return nil, ErrBadHeader
	}

	var fields [5][]byte
	for i := range fields {
		if fields[i], err = readField(br); err != nil {
			return nil, fmt.Errorf("read state: %w", err)
		}
	}
	s := &State{
		Version:     string(fields[0]),
		ModelPath:   string(fields[1]),
		IRLeftPath:  string(fields[2]),
		IRRightPath: string(fields[3]),
	}
	if major(s.Version) != major(StateVersion) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s.Version)
	}

	var f File
	if err := json.Unmarshal(fields[4], &f); err != nil {
		return nil, fmt.Errorf("decode state params: %w", err)
	}
	s.Params = amp.NewDefaultParams()
	if err := ApplyFile(s.Params, &f); err != nil {
		return nil, fmt.Errorf("state params: %w", err)
	}
	return s, nil
}

func readField(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxStateString {
		return nil, fmt.Errorf("field length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func major(version string) string {
	v, _, _ := strings.Cut(version, ".")
	return v
}

// Restore applies s to e: params first, then every module path is reloaded.
// Missing or broken module files are logged and skipped.
func Restore(e *amp.Engine, s *State, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := e.SetParams(s.Params); err != nil {
		return fmt.Errorf("restore params: %w", err)
	}

	load := func(kind, path string, fn func(string) error) {
		if path == "" {
			return
		}
		fields := logrus.Fields{"kind": kind, "path": path}
		if _, err := os.Stat(path); err != nil {
			log.WithFields(fields).Warn("state references a missing file, skipping")
			return
		}
		if err := fn(path); err != nil {
			log.WithFields(fields).WithError(err).Warn("state module not restored")
			return
		}
		log.WithFields(fields).Info("state module restored")
	}
	load("model", s.ModelPath, e.LoadModel)
	load("ir_left", s.IRLeftPath, func(p string) error {
		_, err := e.LoadIRLeft(p)
		return err
	})
	load("ir_right", s.IRRightPath, func(p string) error {
		_, err := e.LoadIRRight(p)
		return err
	})
	return nil
}

// SaveState writes the state of e to path.
func SaveState(path string, e *amp.Engine) error {
	b, err := Marshal(Capture(e))
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadState reads a state file.
func LoadState(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

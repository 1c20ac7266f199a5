package preset

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/internal/audiofile"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStateRoundTrip(t *testing.T) {
	p := amp.NewDefaultParams()
	p.Bass = 8
	p.TunerActive = true
	p.GateThresholdDB = -55
	in := &State{
		ModelPath:   "/models/lead.nam",
		IRLeftPath:  "/irs/v30.wav",
		IRRightPath: "",
		Params:      p,
	}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(b, []byte(StateHeader)) {
		t.Fatal("header missing from blob")
	}

	out, err := Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Version != StateVersion {
		t.Fatalf("version = %q", out.Version)
	}
	if out.ModelPath != in.ModelPath || out.IRLeftPath != in.IRLeftPath || out.IRRightPath != "" {
		t.Fatalf("paths mismatch: %+v", out)
	}
	if *out.Params != *p {
		t.Fatalf("params mismatch:\n got %+v\nwant %+v", out.Params, p)
	}
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("garbage that is not a state"))); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
	if _, err := Decode(bytes.NewReader(nil)); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader for empty input, got %v", err)
	}
}

func TestDecodeRejectsOtherMajorVersion(t *testing.T) {
	b, err := Marshal(&State{Version: "2.3.0", Params: amp.NewDefaultParams()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bytes.NewReader(b)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	b, err := Marshal(&State{Params: amp.NewDefaultParams()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bytes.NewReader(b[:len(b)-5])); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestCaptureAndRestore(t *testing.T) {
	dir := t.TempDir()
	irPath := filepath.Join(dir, "cab.wav")
	if err := audiofile.WriteWAV(irPath, [][]float64{{0.9, 0.3, -0.1}}, 48000); err != nil {
		t.Fatal(err)
	}

	src := amp.NewEngine(48000, 128, nil, amp.Options{Logger: quietLogger()})
	if _, err := src.LoadIRLeft(irPath); err != nil {
		t.Fatalf("LoadIRLeft: %v", err)
	}
	p := src.Params()
	p.Presence = 3
	if err := src.SetParams(p); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "state.bin")
	if err := SaveState(path, src); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	s.IRRightPath = filepath.Join(dir, "gone.wav")

	dst := amp.NewEngine(48000, 128, nil, amp.Options{Logger: quietLogger()})
	if err := Restore(dst, s, quietLogger()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if dst.Params().Presence != 3 {
		t.Fatalf("presence = %g", dst.Params().Presence)
	}
	paths := dst.Paths()
	if paths.IRLeft != irPath || paths.IRRight != "" {
		t.Fatalf("paths = %+v", paths)
	}

	dst.ProcessBlock([][]float64{make([]float64, 16)}, [][]float64{make([]float64, 16)}, 16)
	if ev := dst.DrainEvents(); !ev.Has(amp.EventIRLeftLoaded) || ev.Has(amp.EventIRRightLoaded) {
		t.Fatalf("events after restore: %v", ev.Names())
	}
}

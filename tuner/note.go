package tuner

import "fmt"

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number in scientific pitch notation, e.g.
// 69 is "A4" and 40 is "E2".
func NoteName(midi int) string {
	if midi < 0 || midi > 127 {
		return "-"
	}
	return fmt.Sprintf("%s%d", noteNames[midi%12], midi/12-1)
}

// NoteName returns the name of the displayed note, or "-" without pitch.
func (a *Analyzer) NoteName() string {
	if !a.HasPitch() {
		return "-"
	}
	return NoteName(a.MidiNote())
}

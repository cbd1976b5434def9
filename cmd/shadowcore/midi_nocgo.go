//go:build !cgo

package main

import (
	"errors"

	"github.com/lyraflex/shadowcore/internal/midiout"
)

// without cgo there is no MIDI driver
func openMIDIOut(prefix string) (midiout.Port, func(), error) {
	return nil, nil, errors.New("MIDI output needs a cgo build")
}

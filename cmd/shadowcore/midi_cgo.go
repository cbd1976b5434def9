//go:build cgo

package main

import (
	"fmt"
	"strings"

	"github.com/lyraflex/shadowcore/internal/midiout"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// openMIDIOut opens the first output port whose name starts with prefix.
func openMIDIOut(prefix string) (midiout.Port, func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("midi driver: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("midi outputs: %w", err)
	}
	for _, out := range outs {
		if !strings.HasPrefix(out.String(), prefix) {
			continue
		}
		if err := out.Open(); err != nil {
			drv.Close()
			return nil, nil, fmt.Errorf("opening %s: %w", out, err)
		}
		return out, func() {
			out.Close()
			drv.Close()
		}, nil
	}
	drv.Close()
	return nil, nil, fmt.Errorf("no MIDI output matching %q", prefix)
}

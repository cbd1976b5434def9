package session

// Instrument selects the synthesis routine of a track. The string values are
// the persisted names.
type Instrument string

const (
	Kick        Instrument = "kick"
	Snare       Instrument = "snare"
	HihatClosed Instrument = "hihat_closed"
	HihatOpen   Instrument = "hihat_open"
	BassFM      Instrument = "bass_fm"
	TomLow      Instrument = "tom_low"
	TomMid      Instrument = "tom_mid"
	TomHigh     Instrument = "tom_high"
	RimShot     Instrument = "rim_shot"
	HandClap    Instrument = "hand_clap"
	Crash       Instrument = "crash"
	Ride        Instrument = "ride"
	LeadSquare  Instrument = "lead_square"
	PadSaw      Instrument = "pad_saw"
	PluckSine   Instrument = "pluck_sine"
	Acid303     Instrument = "acid_303"
	BassSub808  Instrument = "bass_sub_808"
	LeadPWM     Instrument = "lead_pwm"
	PadChoir    Instrument = "pad_choir"
	ArpPluck    Instrument = "arp_pluck"
	FXGlitch    Instrument = "fx_glitch"
	PadEthereal Instrument = "pad_ethereal"
)

// NumInstruments is the number of known instruments. Tables indexed by
// Instrument.Index have exactly this length.
const NumInstruments = 22

// Instruments lists every instrument in index order.
var Instruments = [NumInstruments]Instrument{
	Kick, Snare, HihatClosed, HihatOpen, BassFM, TomLow, TomMid, TomHigh,
	RimShot, HandClap, Crash, Ride, LeadSquare, PadSaw, PluckSine, Acid303,
	BassSub808, LeadPWM, PadChoir, ArpPluck, FXGlitch, PadEthereal,
}

var instrumentIndex = func() map[Instrument]int {
	m := make(map[Instrument]int, NumInstruments)
	for i, inst := range Instruments {
		m[inst] = i
	}
	return m
}()

// Index returns the position of the instrument in Instruments, or -1 for an
// unknown name.
func (i Instrument) Index() int {
	if idx, ok := instrumentIndex[i]; ok {
		return idx
	}
	return -1
}

func (i Instrument) Valid() bool { return i.Index() >= 0 }

// Percussive reports whether the instrument is a drum voice. Percussive
// triggers go out on MIDI channel 10.
func (i Instrument) Percussive() bool {
	switch i {
	case Kick, Snare, HihatClosed, HihatOpen, TomLow, TomMid, TomHigh,
		RimShot, HandClap, Crash, Ride:
		return true
	}
	return false
}

type instrumentSettings struct {
	name   string
	params TrackParams
}

var settings = [NumInstruments]instrumentSettings{
	{"KICK_CORE", TrackParams{Volume: 0.9, Decay: 0.5, Pitch: 50, Tone: 0.2, FilterCutoff: 1000}},
	{"SNARE_VOID", TrackParams{Volume: 0.8, Decay: 0.2, Pitch: 200, Tone: 0.5, FilterCutoff: 3000}},
	{"HAT_CLOSED", TrackParams{Volume: 0.7, Decay: 0.05, Pitch: 1000, Tone: 0.8, FilterCutoff: 8000}},
	{"HAT_OPEN", TrackParams{Volume: 0.7, Decay: 0.3, Pitch: 1000, Tone: 0.8, FilterCutoff: 8000}},
	{"BASS_REESE", TrackParams{Volume: 0.8, Decay: 0.4, Pitch: 55, Tone: 0.7, FilterCutoff: 800}},
	{"TOM_SEISMIC", TrackParams{Volume: 0.8, Decay: 0.3, Pitch: 80, Tone: 0.5, FilterCutoff: 1500}},
	{"TOM_BODY", TrackParams{Volume: 0.8, Decay: 0.3, Pitch: 120, Tone: 0.5, FilterCutoff: 1500}},
	{"TOM_TRANSIENT", TrackParams{Volume: 0.8, Decay: 0.3, Pitch: 160, Tone: 0.5, FilterCutoff: 1500}},
	{"RIM_CLICK", TrackParams{Volume: 0.8, Decay: 0.1, Pitch: 400, Tone: 0.8, FilterCutoff: 2500}},
	{"CLAP_STACK", TrackParams{Volume: 0.8, Decay: 0.2, Pitch: 150, Tone: 0.5, FilterCutoff: 1500}},
	{"CRASH_IMPACT", TrackParams{Volume: 0.8, Decay: 1.5, Pitch: 300, Tone: 0.8, FilterCutoff: 5000}},
	{"RIDE_CYBER", TrackParams{Volume: 0.7, Decay: 2.0, Pitch: 600, Tone: 0.8, FilterCutoff: 6000}},
	{"LEAD_DETUNE", TrackParams{Volume: 0.7, Decay: 0.3, Pitch: 440, Tone: 0.5, FilterCutoff: 4000}},
	{"PAD_DARK", TrackParams{Volume: 0.6, Decay: 2.5, Pitch: 220, Tone: 0.3, FilterCutoff: 1200}},
	{"PLUCK_GLASS", TrackParams{Volume: 0.8, Decay: 0.4, Pitch: 660, Tone: 0.2, FilterCutoff: 6000}},
	{"ACID_TB", TrackParams{Volume: 0.8, Decay: 0.3, Pitch: 110, Tone: 0.8, FilterCutoff: 800}},
	{"SUB_TITAN", TrackParams{Volume: 0.9, Decay: 0.8, Pitch: 40, Tone: 0.1, FilterCutoff: 400}},
	{"LEAD_CYBER", TrackParams{Volume: 0.7, Decay: 0.4, Pitch: 440, Tone: 0.5, FilterCutoff: 5000}},
	{"PAD_ANGEL", TrackParams{Volume: 0.6, Decay: 2.0, Pitch: 220, Tone: 0.8, FilterCutoff: 2000}},
	{"ARP_SYNTH", TrackParams{Volume: 0.8, Decay: 0.2, Pitch: 880, Tone: 0.5, FilterCutoff: 3000}},
	{"FX_DATABEND", TrackParams{Volume: 0.8, Decay: 0.5, Pitch: 1000, Tone: 0.9, FilterCutoff: 8000}},
	{"PAD_ETHER", TrackParams{Volume: 0.7, Decay: 3.0, Pitch: 330, Tone: 0.4, FilterCutoff: 1800}},
}

// DefaultParams returns the factory parameters of an instrument. Unknown
// instruments get the kick defaults.
func DefaultParams(inst Instrument) TrackParams {
	idx := inst.Index()
	if idx < 0 {
		idx = 0
	}
	return settings[idx].params
}

// DisplayName returns the factory track name of an instrument.
func DisplayName(inst Instrument) string {
	idx := inst.Index()
	if idx < 0 {
		return string(inst)
	}
	return settings[idx].name
}

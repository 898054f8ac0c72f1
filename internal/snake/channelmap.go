package snake

import "fmt"

// ChannelMap is a dense, total mapping from a signed channel id in
// [-18, +18] to the DataKind it produces. Lookup is O(1) and never
// panics; unregistered ids resolve to Invalid.
type ChannelMap struct {
	table [int(maxChannelID)*2 + 1]DataKind
}

func slotIndex(id ChannelID) (int, bool) {
	if id < minChannelID || id > maxChannelID {
		return 0, false
	}
	return int(id) + int(maxChannelID), true
}

// NewChannelMap builds a ChannelMap from the config's role channels and
// ignored-channel list. It panics on a duplicate non-zero signed channel
// id: that is a fatal configuration error that must be caught before
// acquisition starts, never a runtime condition to recover from.
func NewChannelMap(cfg AppConfig) *ChannelMap {
	cm := &ChannelMap{}
	register := func(ch InputChannel, kind DataKind) {
		if !ch.Connected() {
			return
		}
		idx, ok := slotIndex(ch.Channel)
		if !ok {
			panic(fmt.Sprintf("snake: channel id %d out of range [-18,18]", ch.Channel))
		}
		if cm.table[idx] != Invalid {
			panic(fmt.Sprintf("snake: duplicate channel assignment for signed id %d (already %s, got %s)",
				ch.Channel, cm.table[idx], kind))
		}
		cm.table[idx] = kind
	}

	register(cfg.Channels.Pmt1, Pmt1)
	register(cfg.Channels.Pmt2, Pmt2)
	register(cfg.Channels.Pmt3, Pmt3)
	register(cfg.Channels.Pmt4, Pmt4)
	register(cfg.Channels.Line, Line)
	register(cfg.Channels.Frame, Frame)
	register(cfg.Channels.TagLens, TagLens)
	register(cfg.Channels.Laser, Laser)
	for _, ch := range cfg.Channels.Ignored {
		register(ch, Ignored)
	}
	return cm
}

// Lookup returns the DataKind registered for a signed channel id, or
// Invalid if the id is unregistered or out of range.
func (cm *ChannelMap) Lookup(id ChannelID) DataKind {
	idx, ok := slotIndex(id)
	if !ok {
		return Invalid
	}
	return cm.table[idx]
}

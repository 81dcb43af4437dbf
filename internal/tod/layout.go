package tod

import (
	"fmt"
	"sort"
)

// Layout describes the detector hierarchy behind the channel axis: each
// horn (module) carries DiodesPerHorn radiometer diodes, stored
// horn-major. Horns are numbered from zero and diodes from one, matching
// how the instrument team refers to "diodes 1 and 4".
//
// The layout is descriptive. Nothing in the loader requires a file to
// have Horns*DiodesPerHorn channels.
type Layout struct {
	Horns         int
	DiodesPerHorn int
	SignalDiodes  []int
}

// DefaultLayout is 19 horns of 4 diodes, with diodes 1 and 4 carrying most
// of the signal.
func DefaultLayout() Layout {
	return Layout{Horns: 19, DiodesPerHorn: 4, SignalDiodes: []int{1, 4}}
}

// Channels is the channel count the layout implies.
func (l Layout) Channels() int {
	return l.Horns * l.DiodesPerHorn
}

// Matches reports whether a tod with the given channel count agrees with
// the layout.
func (l Layout) Matches(channels int) bool {
	return l.Channels() == channels
}

// Channel returns the zero-based channel index for a horn and one-based
// diode. It returns -1 when either is outside the layout.
func (l Layout) Channel(horn, diode int) int {
	if horn < 0 || horn >= l.Horns || diode < 1 || diode > l.DiodesPerHorn {
		return -1
	}
	return horn*l.DiodesPerHorn + diode - 1
}

// Horn is the inverse of Channel.
func (l Layout) Horn(channel int) (horn, diode int) {
	if l.DiodesPerHorn <= 0 || channel < 0 {
		return -1, -1
	}
	return channel / l.DiodesPerHorn, channel%l.DiodesPerHorn + 1
}

// Label names a channel for legends, e.g. "H03D4".
func (l Layout) Label(channel int) string {
	horn, diode := l.Horn(channel)
	if horn < 0 || horn >= l.Horns {
		return fmt.Sprintf("ch%d", channel)
	}
	return fmt.Sprintf("H%02dD%d", horn, diode)
}

// SignalChannels lists the channels of every horn's signal diodes that
// exist in a tod of the given channel count, in channel order.
func (l Layout) SignalChannels(channels int) []int {
	var out []int
	for h := 0; h < l.Horns; h++ {
		for _, d := range l.SignalDiodes {
			ch := l.Channel(h, d)
			if ch >= 0 && ch < channels {
				out = append(out, ch)
			}
		}
	}
	sort.Ints(out)
	return out
}

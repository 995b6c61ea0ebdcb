package model

import "time"

// Sample is one fps reading. Value is 0 when the node could not be read.
type Sample struct {
	Value     int
	Seq       uint64
	Timestamp time.Time
}

// PollerState tracks whether the sampling loop is physically running.
type PollerState int

const (
	Stopped PollerState = iota
	Running
)

func (s PollerState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// TileState mirrors the three quick-settings tile states.
type TileState int

const (
	TileUnavailable TileState = iota
	TileInactive
	TileActive
)

func (s TileState) String() string {
	switch s {
	case TileActive:
		return "active"
	case TileInactive:
		return "inactive"
	default:
		return "unavailable"
	}
}

// TileView is what a tile exposes to whoever draws it.
type TileView struct {
	Label              string
	ContentDescription string
	State              TileState
}

// Palette holds the derived theme colors as signed ARGB integers, the form
// they are stored in secure settings. Secondary and tertiary are -1 when the
// scheme has no such accent.
type Palette struct {
	Accent                   int32
	AccentLight              int32
	AccentSecondary          int32
	AccentSecondaryLight     int32
	AccentTertiary           int32
	AccentTertiaryLight      int32
	Background               int32
	BackgroundLight          int32
	BackgroundSecondary      int32
	BackgroundSecondaryLight int32
}

package snake

import (
	"fmt"

	"github.com/google/uuid"
)

// maxGridDimension is the invariant upper bound on rows, columns, and
// planes: a geometry this large would overflow the snake's preallocated
// capacity formula long before it became scientifically meaningful.
const maxGridDimension = 100_000

// minTagPeriod is the smallest tag-lens period the 3D snake builder will
// accept; below this the sinusoid's quadrant boundaries collapse onto
// each other.
const minTagPeriod = Ps(1_000_000) // 1 microsecond

// maxFrameDeadTime bounds FrameDeadTime: no real acquisition parks the
// scanner between frames for longer than this.
const maxFrameDeadTime = Ps(10_000_000_000_000) // 10 seconds

// ChannelSet names the signed input channel assigned to every role the
// core understands, plus a list of channels that are wired but should be
// explicitly ignored (as opposed to simply left at zero).
type ChannelSet struct {
	Pmt1    InputChannel   `toml:"pmt1"`
	Pmt2    InputChannel   `toml:"pmt2"`
	Pmt3    InputChannel   `toml:"pmt3"`
	Pmt4    InputChannel   `toml:"pmt4"`
	Line    InputChannel   `toml:"line"`
	Frame   InputChannel   `toml:"frame"`
	TagLens InputChannel   `toml:"tag_lens"`
	Laser   InputChannel   `toml:"laser"`
	Ignored []InputChannel `toml:"ignored"`
}

// AppConfig is the immutable set of parameters describing one
// acquisition: scanner geometry, timing, and channel wiring. Build it
// once per acquisition with AppConfigBuilder; every downstream component
// (ChannelMap, VoxelDelta, Snake) derives from it and shares its
// lifetime.
type AppConfig struct {
	Rows    int `toml:"rows"`
	Columns int `toml:"columns"`
	Planes  int `toml:"planes"`

	FillFraction  float64 `toml:"fill_fraction"` // percent, [0,100]
	FrameDeadTime Ps      `toml:"frame_dead_time_ps"`

	ScanPeriod Period `toml:"scan_period"`
	TagPeriod  Period `toml:"tag_period"`

	Bidirectional bool `toml:"bidirectional"`
	LineShift     Ps   `toml:"line_shift_ps"`

	Channels ChannelSet `toml:"channels"`

	// SessionID identifies one acquisition across its collaborators
	// (the serializer's frame rows, the renderer's republished
	// frames). Build() fills this in with a fresh UUID if the caller
	// never set one.
	SessionID string `toml:"session_id"`
}

// AppConfigBuilder is a pure builder for AppConfig: typed With* mutators
// accumulate settings, and Build validates them into an immutable value.
// The GUI, the CLI, and tests are all just producers that call With*
// methods; none of them needs to know how AppConfig validates itself.
type AppConfigBuilder struct {
	cfg AppConfig
	err error
}

// NewAppConfigBuilder returns a builder seeded with a representative
// default geometry (a 256x256x10 resonant/galvo/TAG-lens configuration),
// matching the kind of acquisition this core was built to reconstruct.
func NewAppConfigBuilder() *AppConfigBuilder {
	return &AppConfigBuilder{
		cfg: AppConfig{
			Rows:          256,
			Columns:       256,
			Planes:        10,
			FillFraction:  71.3,
			FrameDeadTime: 0,
			ScanPeriod:    PeriodFromFreq(7926.17),
			TagPeriod:     PeriodFromFreq(189_800),
			Bidirectional: true,
		},
	}
}

func (b *AppConfigBuilder) WithRows(rows int) *AppConfigBuilder {
	b.cfg.Rows = rows
	return b
}

func (b *AppConfigBuilder) WithColumns(columns int) *AppConfigBuilder {
	b.cfg.Columns = columns
	return b
}

func (b *AppConfigBuilder) WithPlanes(planes int) *AppConfigBuilder {
	b.cfg.Planes = planes
	return b
}

func (b *AppConfigBuilder) WithFillFraction(pct float64) *AppConfigBuilder {
	b.cfg.FillFraction = pct
	return b
}

func (b *AppConfigBuilder) WithFrameDeadTime(ps Ps) *AppConfigBuilder {
	b.cfg.FrameDeadTime = ps
	return b
}

func (b *AppConfigBuilder) WithScanPeriod(p Period) *AppConfigBuilder {
	b.cfg.ScanPeriod = p
	return b
}

func (b *AppConfigBuilder) WithTagPeriod(p Period) *AppConfigBuilder {
	b.cfg.TagPeriod = p
	return b
}

func (b *AppConfigBuilder) WithBidirectional(v bool) *AppConfigBuilder {
	b.cfg.Bidirectional = v
	return b
}

func (b *AppConfigBuilder) WithLineShift(ps Ps) *AppConfigBuilder {
	b.cfg.LineShift = ps
	return b
}

func (b *AppConfigBuilder) WithChannels(ch ChannelSet) *AppConfigBuilder {
	b.cfg.Channels = ch
	return b
}

// WithSessionID overrides the auto-generated acquisition session id,
// for tests that need a deterministic value.
func (b *AppConfigBuilder) WithSessionID(id string) *AppConfigBuilder {
	b.cfg.SessionID = id
	return b
}

// Build validates the accumulated settings and returns the immutable
// AppConfig, or a ConfigError describing the first invariant violated.
// A SessionID is minted if the caller never set one.
func (b *AppConfigBuilder) Build() (AppConfig, error) {
	if b.err != nil {
		return AppConfig{}, b.err
	}
	if b.cfg.SessionID == "" {
		b.cfg.SessionID = uuid.NewString()
	}
	if err := b.cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return b.cfg, nil
}

// Validate checks AppConfig's invariants: grid
// dimensions are positive and below maxGridDimension, fill fraction is
// a percentage, frame dead time is non-negative and bounded, and the
// tag-lens period is resolvable (exceeds minTagPeriod).
func (c AppConfig) Validate() error {
	if c.Rows <= 0 || c.Rows >= maxGridDimension {
		return &ConfigError{Field: "Rows", Msg: fmt.Sprintf("must be in (0, %d), got %d", maxGridDimension, c.Rows)}
	}
	if c.Columns <= 0 || c.Columns >= maxGridDimension {
		return &ConfigError{Field: "Columns", Msg: fmt.Sprintf("must be in (0, %d), got %d", maxGridDimension, c.Columns)}
	}
	if c.Planes <= 0 || c.Planes >= maxGridDimension {
		return &ConfigError{Field: "Planes", Msg: fmt.Sprintf("must be in (0, %d), got %d", maxGridDimension, c.Planes)}
	}
	if c.FillFraction < 0 || c.FillFraction > 100 {
		return &ConfigError{Field: "FillFraction", Msg: fmt.Sprintf("must be in [0,100], got %f", c.FillFraction)}
	}
	if c.FrameDeadTime < 0 || c.FrameDeadTime > maxFrameDeadTime {
		return &ConfigError{Field: "FrameDeadTime", Msg: fmt.Sprintf("must be in [0, %d] ps, got %d", maxFrameDeadTime, c.FrameDeadTime)}
	}
	if c.ScanPeriod.Ps() <= 0 {
		return &ConfigError{Field: "ScanPeriod", Msg: "must be positive"}
	}
	if c.TagPeriod.Ps() <= minTagPeriod {
		return &ConfigError{Field: "TagPeriod", Msg: fmt.Sprintf("must exceed %d ps, got %d", minTagPeriod, c.TagPeriod.Ps())}
	}
	return nil
}

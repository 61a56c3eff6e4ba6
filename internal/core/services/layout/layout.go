package layout

// Engine computes stage grid geometry from viewport measurements and
// the live tile count. It is pure: recomputed on every resize and
// participant-count change, never persisted.
type Engine struct {
	cfg Config
}

// Config carries the fixed layout constants.
type Config struct {
	MinTileWidth int
	TileGap      int
	HeaderHeight int
	FooterHeight int
	FixedPadding int
}

// DefaultConfig matches the meeting page's chrome measurements.
func DefaultConfig() Config {
	return Config{
		MinTileWidth: 300,
		TileGap:      16,
		HeaderHeight: 64,
		FooterHeight: 80,
		FixedPadding: 24,
	}
}

// Mode selects between the N-up camera grid and the screen-dominant
// split layout.
type Mode string

const (
	ModeGrid        Mode = "grid"
	ModeScreenFocus Mode = "screen_focus"
)

// Viewport is the measured browser geometry the engine folds over.
type Viewport struct {
	Width          int
	Height         int
	ContainerWidth int // measured from the grid container, not the window
}

// Layout is the computed stage geometry.
type Layout struct {
	Mode            Mode
	AvailableHeight int
	Columns         int
	Rows            int
	TileWidth       int
	TileHeight      int
	// OverflowCount tiles are hidden behind a single "+N more"
	// indicator. Always zero in screen-focus mode: the camera sidebar
	// scrolls instead of paginating.
	OverflowCount int
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives the grid geometry for the given tile count.
// screenShareActive covers both local and remote shares.
func (e *Engine) Compute(vp Viewport, totalTiles int, screenShareActive bool) Layout {
	out := Layout{Mode: ModeGrid}
	if screenShareActive {
		out.Mode = ModeScreenFocus
	}

	out.AvailableHeight = vp.Height - e.cfg.HeaderHeight - e.cfg.FooterHeight - e.cfg.FixedPadding
	if out.AvailableHeight < 0 {
		out.AvailableHeight = 0
	}

	if totalTiles <= 0 {
		return out
	}

	gap := e.cfg.TileGap
	maxColumns := (vp.ContainerWidth + gap) / (e.cfg.MinTileWidth + gap)
	if maxColumns < 1 {
		maxColumns = 1
	}
	out.Columns = totalTiles
	if maxColumns < out.Columns {
		out.Columns = maxColumns
	}

	out.TileWidth = (vp.ContainerWidth - (out.Columns-1)*gap) / out.Columns
	out.TileHeight = out.TileWidth * 9 / 16

	out.Rows = 1
	if out.TileHeight > 0 {
		if rows := (out.AvailableHeight + gap) / (out.TileHeight + gap); rows > 1 {
			out.Rows = rows
		}
	}

	if !screenShareActive {
		if overflow := totalTiles - out.Columns*out.Rows; overflow > 0 {
			out.OverflowCount = overflow
		}
	}
	return out
}

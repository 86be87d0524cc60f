package mixer

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"

	"github.com/xaionaro-go/comparemixer/quality"
)

const (
	DefaultColumns    = 2
	DefaultRows       = 2
	DefaultCellWidth  = 640
	DefaultCellHeight = 360
)

// Mode selects what is produced for every slice.
type Mode int

const (
	UndefinedMode = Mode(iota)
	ModeComposite
	ModeMetricsOnly
	ModeBoth
	EndOfMode
)

func (m Mode) String() string {
	switch m {
	case UndefinedMode:
		return "<undefined>"
	case ModeComposite:
		return "composite"
	case ModeMetricsOnly:
		return "metricsOnly"
	case ModeBoth:
		return "both"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) Composites() bool {
	return m == ModeComposite || m == ModeBoth
}

func (m Mode) ComputesMetrics() bool {
	return m == ModeMetricsOnly || m == ModeBoth
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for c := UndefinedMode + 1; c < EndOfMode; c++ {
		if strings.ToLower(c.String()) == s {
			*m = c
			return nil
		}
	}
	return fmt.Errorf("unknown mix mode '%s'", string(b))
}

// ScalingPolicy is the interpolation used to fit source frames into cells.
type ScalingPolicy int

const (
	UndefinedScalingPolicy = ScalingPolicy(iota)
	ScalingPolicyNearest
	ScalingPolicyBilinear
	EndOfScalingPolicy
)

func (p ScalingPolicy) String() string {
	switch p {
	case UndefinedScalingPolicy:
		return "<undefined>"
	case ScalingPolicyNearest:
		return "nearest"
	case ScalingPolicyBilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("ScalingPolicy(%d)", int(p))
	}
}

func (p ScalingPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ScalingPolicy) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for c := UndefinedScalingPolicy + 1; c < EndOfScalingPolicy; c++ {
		if c.String() == s {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown scaling policy '%s'", string(b))
}

// Layout is the arrangement of the cells in the composite.
type Layout int

const (
	UndefinedLayout = Layout(iota)
	LayoutGrid
	LayoutSplitScreen
	EndOfLayout
)

func (l Layout) String() string {
	switch l {
	case UndefinedLayout:
		return "<undefined>"
	case LayoutGrid:
		return "grid"
	case LayoutSplitScreen:
		return "splitScreen"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Layout) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for c := UndefinedLayout + 1; c < EndOfLayout; c++ {
		if strings.ToLower(c.String()) == s {
			*l = c
			return nil
		}
	}
	return fmt.Errorf("unknown layout '%s'", string(b))
}

// Color is an opaque RGB color written as "#rrggbb".
type Color color.RGBA

func (c Color) RGBA() color.RGBA {
	return color.RGBA(c)
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(b)), "#")
	if len(s) != 6 {
		return fmt.Errorf("expected a color in format '#rrggbb', got '%s'", string(b))
	}
	v, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("unable to parse color '%s': %w", string(b), err)
	}
	*c = Color{R: v[0], G: v[1], B: v[2], A: 0xff}
	return nil
}

type Config struct {
	Mode          Mode
	ScalingPolicy ScalingPolicy
	Layout        Layout

	// Columns and Rows define the grid; the split screen always has two cells.
	Columns uint
	Rows    uint

	CellWidth  uint
	CellHeight uint

	PlaceholderColor Color

	// StatsOverlay draws the metadata of every frame over its cell.
	StatsOverlay bool

	// Metric scores the non-reference streams; nil means PSNR.
	Metric quality.Metric
}

func DefaultConfig() Config {
	return Config{
		Mode:             ModeBoth,
		ScalingPolicy:    ScalingPolicyNearest,
		Layout:           LayoutGrid,
		Columns:          DefaultColumns,
		Rows:             DefaultRows,
		CellWidth:        DefaultCellWidth,
		CellHeight:       DefaultCellHeight,
		PlaceholderColor: Color{A: 0xff},
		Metric:           quality.PSNR{},
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Mode == UndefinedMode {
		cfg.Mode = def.Mode
	}
	if cfg.ScalingPolicy == UndefinedScalingPolicy {
		cfg.ScalingPolicy = def.ScalingPolicy
	}
	if cfg.Layout == UndefinedLayout {
		cfg.Layout = def.Layout
	}
	if cfg.Columns == 0 {
		cfg.Columns = def.Columns
	}
	if cfg.Rows == 0 {
		cfg.Rows = def.Rows
	}
	if cfg.CellWidth == 0 {
		cfg.CellWidth = def.CellWidth
	}
	if cfg.CellHeight == 0 {
		cfg.CellHeight = def.CellHeight
	}
	if cfg.Metric == nil {
		cfg.Metric = def.Metric
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Mode >= EndOfMode || cfg.Mode < UndefinedMode {
		return fmt.Errorf("invalid mix mode: %s", cfg.Mode)
	}
	if cfg.ScalingPolicy >= EndOfScalingPolicy || cfg.ScalingPolicy < UndefinedScalingPolicy {
		return fmt.Errorf("invalid scaling policy: %s", cfg.ScalingPolicy)
	}
	if cfg.Layout >= EndOfLayout || cfg.Layout < UndefinedLayout {
		return fmt.Errorf("invalid layout: %s", cfg.Layout)
	}
	if cfg.CellWidth%2 != 0 && cfg.Layout == LayoutSplitScreen {
		return fmt.Errorf("the cell width must be even for the split screen layout, got %d", cfg.CellWidth)
	}
	if cfg.Columns*cfg.Rows > 64 {
		return fmt.Errorf("too many cells: %dx%d", cfg.Columns, cfg.Rows)
	}
	return nil
}

// OutputSize is the constant size of every composite frame.
func (cfg Config) OutputSize() (width, height int) {
	switch cfg.Layout {
	case LayoutSplitScreen:
		return int(cfg.CellWidth), int(cfg.CellHeight)
	default:
		return int(cfg.Columns * cfg.CellWidth), int(cfg.Rows * cfg.CellHeight)
	}
}

// CellCount is the amount of streams which can be displayed.
func (cfg Config) CellCount() int {
	switch cfg.Layout {
	case LayoutSplitScreen:
		return 2
	default:
		return int(cfg.Columns * cfg.Rows)
	}
}

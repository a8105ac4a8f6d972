package builtin

import (
	"fmt"
	"sync"

	"github.com/vesselframe/vesselframe/internal/manager"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
	"github.com/vesselframe/vesselframe/internal/plugins"
)

func init() {
	plugins.Global().Register(plugins.GroupScreens, "console", newConsoleScreen)
	plugins.Global().Register(plugins.GroupRenderer, "console", newConsoleRenderer)
}

// ConsoleCanvas is a Canvas that writes to a line buffer instead of a
// real display; it is the canvas of the console renderer.
type ConsoleCanvas struct {
	mu    sync.Mutex
	lines []string
}

func newConsoleCanvas() *ConsoleCanvas { return &ConsoleCanvas{} }

// Clear discards any buffered lines.
func (c *ConsoleCanvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Flush is a no-op: the console canvas has nowhere further to flush to.
func (c *ConsoleCanvas) Flush() error { return nil }

// Bounds reports a fixed nominal character-grid size.
func (c *ConsoleCanvas) Bounds() (int, int) { return 80, 24 }

// WriteLine appends one line of text to the canvas's buffer.
func (c *ConsoleCanvas) WriteLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

// Lines returns a snapshot of the canvas's current buffered lines.
func (c *ConsoleCanvas) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// ConsoleRenderer owns a ConsoleCanvas and reports the minimum render
// interval the screen coordinator's render strategies should enforce.
type ConsoleRenderer struct {
	pluginapi.BaseComponent
	canvas      *ConsoleCanvas
	minInterval int64
}

func newConsoleRenderer(_ pluginapi.Context, cfg map[string]any) (any, error) {
	r := &ConsoleRenderer{
		canvas:      newConsoleCanvas(),
		minInterval: int64(intField(cfg, "min_render_interval_ms", 1000)) * 1_000_000,
	}
	r.Named = "console"
	return r, nil
}

// Canvas returns the renderer's drawing surface.
func (r *ConsoleRenderer) Canvas() pluginapi.Canvas { return r.canvas }

// MinRenderInterval returns the configured minimum render interval in
// nanoseconds.
func (r *ConsoleRenderer) MinRenderInterval() int64 { return r.minInterval }

// ConsoleScreen renders a short summary of currently tracked vessels: a
// count line followed by the most recently seen vessels. It is the
// bundled default so Vessel Frame has something to show before an
// operator configures a real screen.
type ConsoleScreen struct {
	pluginapi.BaseComponent
	vessels *manager.Manager
}

func newConsoleScreen(ctx pluginapi.Context, _ map[string]any) (any, error) {
	s := &ConsoleScreen{}
	s.Named = "console"
	return s, nil
}

// Bind attaches the vessel manager this screen summarizes. It is wired
// in a second step rather than through the factory because the plugin
// registry constructs screens generically and has no manager-shaped
// argument to pass through Factory.
func (s *ConsoleScreen) Bind(m *manager.Manager) { s.vessels = m }

// Render writes a summary of tracked vessels onto canvas.
func (s *ConsoleScreen) Render(canvas pluginapi.Canvas) error {
	cc, ok := canvas.(*ConsoleCanvas)
	if !ok {
		return fmt.Errorf("builtin: console screen requires a *ConsoleCanvas")
	}

	cc.Clear()
	if s.vessels == nil {
		cc.WriteLine("vessel manager not bound")
		return cc.Flush()
	}

	all := s.vessels.GetAllVessels()
	cc.WriteLine(fmt.Sprintf("tracked vessels: %d", len(all)))
	for _, v := range s.vessels.GetRecentVessels(10) {
		name := v.ShipName
		if name == "" {
			name = "(unidentified)"
		}
		cc.WriteLine(fmt.Sprintf("%s  %-20s  %.4f,%.4f", v.MMSI, name, v.Latitude, v.Longitude))
	}
	return cc.Flush()
}

package joycond

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// LayoutFile is the name of the persisted key layout inside the state
// directory.
const LayoutFile = "layout.txt"

// Mapping is the one piece of state shared between the loop thread and the
// configuration surface. The layout table is guarded by its mutex; the
// three feature toggles are atomics so the relay can read them on every
// event without taking the lock.
type Mapping struct {
	mu     sync.Mutex
	layout map[uint32]uint32

	Combined atomic.Bool
	Analog   atomic.Bool
	RSMouse  atomic.Bool
}

// NewMapping returns a Mapping holding the default identity layout.
func NewMapping() *Mapping {
	m := &Mapping{layout: defaultLayout()}
	m.Combined.Store(true)
	m.Analog.Store(true)
	m.RSMouse.Store(true)
	return m
}

// defaultLayout is the identity mapping over the gamepad button range
// BTN_SOUTH..BTN_THUMBR (304..318).
func defaultLayout() map[uint32]uint32 {
	layout := make(map[uint32]uint32, 15)
	for code := uint32(304); code <= 318; code++ {
		layout[code] = code
	}
	return layout
}

// LookupKey returns the remapped code for a key code, if one is bound.
func (m *Mapping) LookupKey(code uint32) (uint32, bool) {
	m.mu.Lock()
	mapped, ok := m.layout[code]
	m.mu.Unlock()
	return mapped, ok
}

// SetLayout merges the given pairs into the layout table.
func (m *Mapping) SetLayout(pairs map[uint32]uint32) {
	m.mu.Lock()
	for from, to := range pairs {
		m.layout[from] = to
	}
	m.mu.Unlock()
}

// Layout returns a snapshot of the layout table.
func (m *Mapping) Layout() map[uint32]uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[uint32]uint32, len(m.layout))
	for from, to := range m.layout {
		snapshot[from] = to
	}
	return snapshot
}

// ParseLayout parses the persisted "from,to;from,to" form. A trailing
// separator is tolerated on input; malformed pairs are an error.
func ParseLayout(text string) (map[uint32]uint32, error) {
	layout := make(map[uint32]uint32)
	for _, pair := range strings.Split(strings.TrimSpace(text), ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		var from, to uint32
		if _, err := fmt.Sscanf(pair, "%d,%d", &from, &to); err != nil {
			return nil, errors.Wrapf(err, "bad layout pair %q", pair)
		}
		layout[from] = to
	}
	return layout, nil
}

// FormatLayout renders a layout table in its persisted form, sorted by
// source code, without a trailing separator.
func FormatLayout(layout map[uint32]uint32) string {
	froms := make([]uint32, 0, len(layout))
	for from := range layout {
		froms = append(froms, from)
	}
	sort.Slice(froms, func(i, j int) bool { return froms[i] < froms[j] })

	pairs := make([]string, 0, len(froms))
	for _, from := range froms {
		pairs = append(pairs, fmt.Sprintf("%d,%d", from, layout[from]))
	}
	return strings.Join(pairs, ";")
}

// LoadLayout reads the layout file under dir into the mapping. A missing
// file is not an error: the current (default) layout is persisted instead,
// creating the directory on first run.
func (m *Mapping) LoadLayout(dir string) error {
	path := filepath.Join(dir, LayoutFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m.SaveLayout(dir)
	}
	if err != nil {
		return errors.Wrap(err, "read layout")
	}
	layout, err := ParseLayout(string(raw))
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.layout = layout
	m.mu.Unlock()
	return nil
}

// SaveLayout writes the current layout under dir, creating the directory
// if needed.
func (m *Mapping) SaveLayout(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create state dir")
	}
	text := FormatLayout(m.Layout())
	path := filepath.Join(dir, LayoutFile)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "write layout")
	}
	return nil
}

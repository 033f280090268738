package img

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
	"gopkg.in/yaml.v3"
)

// Preset is a named window/level with its VOI shape
type Preset struct {
	Name   string
	Window float64
	Level  float64
	Shape  lut.Shape
}

// MinBox is the lower window bound
func (p Preset) MinBox() float64 { return p.Level - p.Window/2 }

// MaxBox is the upper window bound
func (p Preset) MaxBox() float64 { return p.Level + p.Window/2 }

func (p Preset) Equal(o Preset) bool {
	return p.Name == o.Name && p.Window == o.Window && p.Level == o.Level && p.Shape.Equal(o.Shape)
}

func (p Preset) String() string { return p.Name }

// MarshalJSON writes the shape by function name so table shapes encode too
func (p Preset) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string  `json:"name"`
		Window float64 `json:"window"`
		Level  float64 `json:"level"`
		Shape  string  `json:"shape"`
	}{p.Name, p.Window, p.Level, p.Shape.Name()})
}

//go:embed presets.yaml
var defaultPresets []byte

type presetEntry struct {
	Name   string  `yaml:"name"`
	Window float64 `yaml:"window"`
	Level  float64 `yaml:"level"`
	Shape  string  `yaml:"shape,omitempty"`
}

var modalityPresets = struct {
	sync.RWMutex
	byModality map[string][]Preset
}{byModality: mustParsePresets(defaultPresets)}

func mustParsePresets(b []byte) map[string][]Preset {
	m, err := parsePresets(b)
	if err != nil {
		panic(err)
	}
	return m
}

func parsePresets(b []byte) (map[string][]Preset, error) {
	var raw map[string][]presetEntry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errs.Format("presets", "%w", err)
	}
	out := make(map[string][]Preset, len(raw))
	for modality, entries := range raw {
		for _, e := range entries {
			if e.Name == "" || e.Window <= 0 {
				slog.Error("preset cannot be read", "modality", modality, "name", e.Name, "window", e.Window)
				continue
			}
			shape := lut.Linear
			if e.Shape != "" {
				s, ok := lut.ParseShape(e.Shape)
				if !ok {
					slog.Warn("unknown preset shape, using LINEAR", "name", e.Name, "shape", e.Shape)
				} else {
					shape = s
				}
			}
			key := strings.ToUpper(modality)
			out[key] = append(out[key], Preset{Name: e.Name, Window: e.Window, Level: e.Level, Shape: shape})
		}
	}
	return out, nil
}

// LoadPresets reads a YAML table of presets keyed by modality and adds its
// entries to the built in presets, replacing those with the same name
func LoadPresets(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading presets: %w", err)
	}
	m, err := parsePresets(b)
	if err != nil {
		return err
	}
	modalityPresets.Lock()
	defer modalityPresets.Unlock()
	for modality, presets := range m {
		cur := modalityPresets.byModality[modality]
		for _, p := range presets {
			if i := slices.IndexFunc(cur, func(c Preset) bool { return c.Name == p.Name }); i >= 0 {
				cur[i] = p
			} else {
				cur = append(cur, p)
			}
		}
		modalityPresets.byModality[modality] = cur
	}
	return nil
}

// ModalityPresets returns the presets configured for a modality
func ModalityPresets(modality string) []Preset {
	modalityPresets.RLock()
	defer modalityPresets.RUnlock()
	return slices.Clone(modalityPresets.byModality[strings.ToUpper(modality)])
}

// dicomSuffix marks presets taken from the data set
const dicomSuffix = " [DICOM]"

// Presets lists the window presets of an image: the window pairs of the
// VOI LUT module, one preset per VOI LUT table, the full dynamic range and
// the modality presets when more than 8 bits are stored. The first one is
// the default.
func Presets(a *Adapter, pixelPadding bool, pr *PresentationState) []Preset {
	voi := a.desc.VOILUT()
	if pr != nil && pr.VOILUT() != nil && pr.VOILUT().HasWindows() {
		voi = pr.VOILUT()
	}

	shape := lut.Linear
	if fn, ok := voi.Function(); ok {
		switch {
		case strings.EqualFold(fn, "SIGMOID"):
			shape = lut.Sigmoid.WithExplanation("SIGMOID" + dicomSuffix)
		case strings.EqualFold(fn, "LINEAR"):
			shape = lut.Linear.WithExplanation("LINEAR" + dicomSuffix)
		}
	}

	var out []Preset
	centers, widths := voi.Windows()
	explanations := voi.Explanations()
	k := 1
	for i := range centers {
		name := fmt.Sprintf("Default %d", k)
		if i < len(explanations) && strings.TrimSpace(explanations[i]) != "" {
			name = explanations[i]
		}
		p := Preset{Name: name + dicomSuffix, Window: widths[i], Level: centers[i], Shape: shape}
		if !slices.ContainsFunc(out, p.Equal) {
			out = append(out, p)
			k++
		}
	}

	tables, names := voiTables(a.desc, pr)
	for i, t := range tables {
		if t == nil {
			continue
		}
		name := fmt.Sprintf("VOI LUT %d", i)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = names[i]
		}
		out = append(out, presetFromTable(a, t, pixelPadding, pr, name+dicomSuffix))
	}

	out = append(out, Preset{
		Name:   "Auto Level [Image]",
		Window: a.FullDynamicWidth(pixelPadding, pr),
		Level:  a.FullDynamicCenter(pixelPadding, pr),
		Shape:  shape,
	})
	if a.BitsStored() > 8 {
		out = append(out, ModalityPresets(a.desc.Modality)...)
	}
	return out
}

// voiTables returns the presentation state tables followed by the image
// tables
func voiTables(desc *Descriptor, pr *PresentationState) ([]*lut.Table, []string) {
	var tables []*lut.Table
	var names []string
	if pr != nil && pr.VOILUT() != nil {
		tables = append(tables, pr.VOILUT().LUTs()...)
		names = append(names, pr.VOILUT().LUTExplanations()...)
	}
	tables = append(tables, desc.VOILUT().LUTs()...)
	names = append(names, desc.VOILUT().LUTExplanations()...)
	return tables, names
}

// presetFromTable spans the table input range clipped to the allocated range
func presetFromTable(a *Adapter, t *lut.Table, pixelPadding bool, pr *PresentationState, name string) Preset {
	lo := max(t.MinIn(), a.MinAllocatedValue(pixelPadding, pr))
	hi := min(t.MaxIn(), a.MaxAllocatedValue(pixelPadding, pr))
	width := float64(hi - lo)
	shape := lut.NewTableShape(t, name)
	return Preset{Name: shape.String(), Window: width, Level: float64(lo) + width/2, Shape: shape}
}

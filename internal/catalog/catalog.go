// Package catalog holds the read-only table of regions a round can be drawn
// from, keyed by region code.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"panoguess/internal/models"
	"panoguess/pkg/geo"
)

//go:embed regions.json
var defaultRegions []byte

// Catalog maps region codes to regions. It is immutable after construction.
type Catalog struct {
	regions map[string]models.Region
	codes   []string
}

// New validates regions and builds a Catalog from them.
func New(regions []models.Region) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", models.ErrConfiguration)
	}
	c := &Catalog{
		regions: make(map[string]models.Region, len(regions)),
		codes:   make([]string, 0, len(regions)),
	}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.regions[r.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate region code %s", models.ErrConfiguration, r.Code)
		}
		c.regions[r.Code] = r
		c.codes = append(c.codes, r.Code)
	}
	sort.Strings(c.codes)
	return c, nil
}

// Load decodes a catalog in the bounding-box asset format:
//
//	{"FR": ["France", [minLon, minLat, maxLon, maxLat]], ...}
func Load(r io.Reader) (*Catalog, error) {
	var raw map[string][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog: %v", models.ErrConfiguration, err)
	}

	regions := make([]models.Region, 0, len(raw))
	for code, entry := range raw {
		region, err := decodeEntry(code, entry)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return New(regions)
}

func decodeEntry(code string, entry []json.RawMessage) (models.Region, error) {
	if len(entry) != 2 {
		return models.Region{}, fmt.Errorf("%w: region %s: want [name, bbox], got %d elements", models.ErrConfiguration, code, len(entry))
	}
	var name string
	if err := json.Unmarshal(entry[0], &name); err != nil {
		return models.Region{}, fmt.Errorf("%w: region %s name: %v", models.ErrConfiguration, code, err)
	}
	var bbox []float64
	if err := json.Unmarshal(entry[1], &bbox); err != nil {
		return models.Region{}, fmt.Errorf("%w: region %s bbox: %v", models.ErrConfiguration, code, err)
	}
	if len(bbox) != 4 {
		return models.Region{}, fmt.Errorf("%w: region %s bbox: want 4 values, got %d", models.ErrConfiguration, code, len(bbox))
	}
	return models.Region{
		Code: code,
		Name: name,
		BBox: geo.NewBoundingBox(bbox[0], bbox[1], bbox[2], bbox[3]),
	}, nil
}

// LoadFile reads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening catalog: %v", models.ErrConfiguration, err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the curated catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultRegions))
}

// MarshalJSON writes the catalog back out in the same format Load accepts.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	out := make(map[string][2]any, len(c.codes))
	for _, code := range c.codes {
		r := c.regions[code]
		out[code] = [2]any{r.Name, [4]float64{r.BBox.MinLon, r.BBox.MinLat, r.BBox.MaxLon, r.BBox.MaxLat}}
	}
	return json.Marshal(out)
}

func (c *Catalog) Len() int { return len(c.codes) }

// Codes returns all region codes in sorted order.
func (c *Catalog) Codes() []string { return slices.Clone(c.codes) }

// Regions returns every region ordered by code.
func (c *Catalog) Regions() []models.Region {
	out := make([]models.Region, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.regions[code])
	}
	return out
}

// Lookup returns the region for code. A missing code is a configuration error.
func (c *Catalog) Lookup(code string) (models.Region, error) {
	r, ok := c.regions[code]
	if !ok {
		return models.Region{}, fmt.Errorf("%w: unknown region code %q", models.ErrConfiguration, code)
	}
	return r, nil
}

// NameOf returns the display name for code, falling back to the code itself.
func (c *Catalog) NameOf(code string) string {
	if r, ok := c.regions[code]; ok && r.Name != "" {
		return r.Name
	}
	return code
}

func (c *Catalog) codeAt(i int) string { return c.codes[i] }

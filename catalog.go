package webcam

// CapabilityCatalog is a snapshot of every format a device reported.
// It is not refreshed while a session is open on that device.
type CapabilityCatalog struct {
	Formats   []FormatDescriptor `json:"formats" yaml:"formats"`
	MinWidth  int                `json:"min_width" yaml:"min_width"`
	MaxWidth  int                `json:"max_width" yaml:"max_width"`
	MinHeight int                `json:"min_height" yaml:"min_height"`
	MaxHeight int                `json:"max_height" yaml:"max_height"`
}

// NewCapabilityCatalog builds a catalog in enumeration order and derives its
// bounds. Exact duplicates are dropped; the first occurrence keeps its place
// so tie-breaking in SelectBestFormat is unaffected.
func NewCapabilityCatalog(formats []FormatDescriptor) *CapabilityCatalog {
	c := &CapabilityCatalog{Formats: make([]FormatDescriptor, 0, len(formats))}
	seen := make(map[FormatDescriptor]bool, len(formats))
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		c.Formats = append(c.Formats, f)

		if len(c.Formats) == 1 {
			c.MinWidth, c.MaxWidth = f.Width, f.Width
			c.MinHeight, c.MaxHeight = f.Height, f.Height
			continue
		}
		c.MinWidth = min(c.MinWidth, f.Width)
		c.MaxWidth = max(c.MaxWidth, f.Width)
		c.MinHeight = min(c.MinHeight, f.Height)
		c.MaxHeight = max(c.MaxHeight, f.Height)
	}
	return c
}

// Len returns the number of formats in the catalog
func (c *CapabilityCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Formats)
}

// Empty reports whether the device answered the query with zero formats,
// which signals that capability query is unsupported on that hardware.
func (c *CapabilityCatalog) Empty() bool {
	return c.Len() == 0
}

// Filter returns the entries with the given encoding, in catalog order.
func (c *CapabilityCatalog) Filter(format PixelFormat) []FormatDescriptor {
	if c == nil {
		return nil
	}
	var out []FormatDescriptor
	for _, f := range c.Formats {
		if f.Format == format {
			out = append(out, f)
		}
	}
	return out
}

// Encodings returns the distinct encodings in first-seen order.
func (c *CapabilityCatalog) Encodings() []PixelFormat {
	if c == nil {
		return nil
	}
	var out []PixelFormat
	seen := make(map[PixelFormat]bool)
	for _, f := range c.Formats {
		if !seen[f.Format] {
			seen[f.Format] = true
			out = append(out, f.Format)
		}
	}
	return out
}

// Contains reports whether the catalog lists the given encoding and size,
// ignoring frame rate.
func (c *CapabilityCatalog) Contains(format PixelFormat, width, height int) bool {
	if c == nil {
		return false
	}
	for _, f := range c.Formats {
		if f.Format == format && f.Width == width && f.Height == height {
			return true
		}
	}
	return false
}

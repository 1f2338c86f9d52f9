package webcam

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewCapabilityCatalog(t *testing.T) {
	formats := []FormatDescriptor{
		{Format: FormatYUYV, Width: 640, Height: 480, FrameRate: 30},
		{Format: FormatMJPEG, Width: 1920, Height: 1080, FrameRate: 30},
		{Format: FormatYUYV, Width: 640, Height: 480, FrameRate: 30},
		{Format: FormatYUYV, Width: 320, Height: 240, FrameRate: 30},
		{Format: FormatYUYV, Width: 640, Height: 480, FrameRate: 15},
	}
	cat := NewCapabilityCatalog(formats)

	want := []FormatDescriptor{formats[0], formats[1], formats[3], formats[4]}
	if !reflect.DeepEqual(cat.Formats, want) {
		t.Errorf("Formats = %v, want %v", cat.Formats, want)
	}
	if cat.MinWidth != 320 || cat.MaxWidth != 1920 || cat.MinHeight != 240 || cat.MaxHeight != 1080 {
		t.Errorf("bounds = %dx%d..%dx%d, want 320x240..1920x1080", cat.MinWidth, cat.MinHeight, cat.MaxWidth, cat.MaxHeight)
	}
	if cat.Len() != 4 || cat.Empty() {
		t.Errorf("Len() = %d, Empty() = %v", cat.Len(), cat.Empty())
	}
}

func TestCapabilityCatalogEmpty(t *testing.T) {
	var nilCat *CapabilityCatalog
	for name, cat := range map[string]*CapabilityCatalog{
		"nil":   nilCat,
		"empty": NewCapabilityCatalog(nil),
	} {
		t.Run(name, func(t *testing.T) {
			if !cat.Empty() || cat.Len() != 0 {
				t.Errorf("Empty() = %v, Len() = %d", cat.Empty(), cat.Len())
			}
			if got := cat.Filter(FormatYUYV); len(got) != 0 {
				t.Errorf("Filter() = %v, want none", got)
			}
			if got := cat.Encodings(); len(got) != 0 {
				t.Errorf("Encodings() = %v, want none", got)
			}
			if cat.Contains(FormatYUYV, 640, 480) {
				t.Error("Contains() = true on empty catalog")
			}
		})
	}
}

func TestCapabilityCatalogQueries(t *testing.T) {
	cat := NewCapabilityCatalog([]FormatDescriptor{
		{Format: FormatMJPEG, Width: 1280, Height: 720},
		{Format: FormatYUYV, Width: 640, Height: 480, FrameRate: 30},
		{Format: FormatMJPEG, Width: 640, Height: 480},
	})

	if got, want := cat.Encodings(), []PixelFormat{FormatMJPEG, FormatYUYV}; !reflect.DeepEqual(got, want) {
		t.Errorf("Encodings() = %v, want %v", got, want)
	}
	if got := cat.Filter(FormatMJPEG); len(got) != 2 || got[0].Width != 1280 || got[1].Width != 640 {
		t.Errorf("Filter(MJPEG) = %v", got)
	}

	tests := []struct {
		format PixelFormat
		w, h   int
		want   bool
	}{
		{FormatYUYV, 640, 480, true},
		{FormatYUYV, 1280, 720, false},
		{FormatMJPEG, 1280, 720, true},
		{FormatRGB24, 640, 480, false},
	}
	for _, tt := range tests {
		if got := cat.Contains(tt.format, tt.w, tt.h); got != tt.want {
			t.Errorf("Contains(%v, %d, %d) = %v, want %v", tt.format, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestCapabilityCatalogEncoding(t *testing.T) {
	cat := NewCapabilityCatalog([]FormatDescriptor{
		{Format: FormatYUYV, Width: 640, Height: 480, FrameRate: 30},
		{Format: FormatMJPEG, Width: 1920, Height: 1080},
	})

	data, err := json.Marshal(cat)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	formats, ok := raw["formats"].([]any)
	if !ok || len(formats) != 2 {
		t.Fatalf("formats = %v", raw["formats"])
	}
	if got := formats[1].(map[string]any)["format"]; got != "MJPEG" {
		t.Errorf("encoded format = %v, want MJPEG", got)
	}

	out, err := yaml.Marshal(cat)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	var back CapabilityCatalog
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(back.Formats, cat.Formats) {
		t.Errorf("yaml round trip = %v, want %v", back.Formats, cat.Formats)
	}
}

package imageops

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"testing"
)

func TestDimensions(t *testing.T) {
	dims, err := Dimensions(encodeTestJPEG(t, quadrantImage(320, 200)))
	if err != nil {
		t.Fatalf("Dimensions() error = %v", err)
	}
	if dims.Width != 320 || dims.Height != 200 {
		t.Errorf("Dimensions() = %dx%d, want 320x200", dims.Width, dims.Height)
	}

	if _, err := Dimensions([]byte("%PDF-1.4")); !errors.Is(err, ErrDecode) {
		t.Errorf("Dimensions(pdf) error = %v, want ErrDecode", err)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    int
		wantErr bool
	}{
		{"640x480", 640, false},
		{"100X300", 300, false},
		{"150x150", 150, false},
		{"None", 0, true},
		{"640", 0, true},
		{"x480", 0, true},
		{"0x10", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSpec(%q) = %d, want %d", tt.spec, got, tt.want)
		}
	}
}

func TestNormalizeSpec(t *testing.T) {
	tests := map[string]string{
		"None":     "None",
		"1024x768": "1024x768",
		"":         DefaultSpec,
		"big":      DefaultSpec,
	}
	for in, want := range tests {
		if got := NormalizeSpec(in); got != want {
			t.Errorf("NormalizeSpec(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, quadrantImage(10, 10), nil); err != nil {
		t.Fatal(err)
	}
	out, err := ToJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("ToJPEG() error = %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(out)); err != nil || format != "jpeg" {
		t.Errorf("ToJPEG() produced %s (%v)", format, err)
	}
}

func TestPlaceholder(t *testing.T) {
	out, err := Placeholder()
	if err != nil {
		t.Fatalf("Placeholder() error = %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil || format != "jpeg" {
		t.Fatalf("Placeholder() produced %s (%v)", format, err)
	}
	if cfg.Width != 150 || cfg.Height != 150 {
		t.Errorf("Placeholder() is %dx%d, want 150x150", cfg.Width, cfg.Height)
	}
}

package tile

import (
	"errors"
	"testing"
)

func TestNewSourceValidation(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{"valid XYZ template", "https://host/tiles/{z}/{x}/{y}.png", false},
		{"placeholders in any order", "https://host/{y}/{x}?zoom={z}", false},
		{"missing y", "https://host/tiles/{z}/{x}.png", true},
		{"missing all", "https://host/tiles.png", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.template)
			if tt.wantErr && !errors.Is(err, ErrInvalidTileURL) {
				t.Errorf("expected ErrInvalidTileURL, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSourceURL(t *testing.T) {
	s, err := NewSource("https://host/tiles/{z}/{x}/{y}.png")
	if err != nil {
		t.Fatal(err)
	}

	got := s.URL(Key{Zoom: 2, X: 1, Y: 0})
	want := "https://host/tiles/2/1/0.png"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestKeyValid(t *testing.T) {
	tests := []struct {
		key  Key
		want bool
	}{
		{Key{Zoom: 0, X: 0, Y: 0}, true},
		{Key{Zoom: 2, X: 3, Y: 3}, true},
		{Key{Zoom: 2, X: 4, Y: 0}, false},
		{Key{Zoom: 2, X: 0, Y: -1}, false},
		{Key{Zoom: -1, X: 0, Y: 0}, false},
		{Key{Zoom: 25, X: 0, Y: 0}, false},
	}

	for _, tt := range tests {
		if got := tt.key.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.key, got, tt.want)
		}
	}
}

package project

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harbor.georef")

	proj := New("harbor")
	proj.TileURLTemplate = "https://tile.example.org/{z}/{x}/{y}.png"
	proj.TileOpacity = 0.8
	proj.View = View{Lon: -71.06, Lat: 42.36, Zoom: 12}
	proj.Settings = Settings{TransformKind: "tps", Weighting: "idw", Preview: true}

	if err := proj.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "harbor" || loaded.Version != 1 {
		t.Errorf("identity fields: name=%q version=%d", loaded.Name, loaded.Version)
	}
	if loaded.TileURLTemplate != proj.TileURLTemplate || loaded.TileOpacity != 0.8 {
		t.Errorf("tile fields not preserved: %+v", loaded)
	}
	if loaded.View != proj.View {
		t.Errorf("view = %+v, want %+v", loaded.View, proj.View)
	}
	if loaded.Settings != proj.Settings {
		t.Errorf("settings = %+v, want %+v", loaded.Settings, proj.Settings)
	}
}

func TestImagePathRelative(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "map.georef")
	imagePath := filepath.Join(dir, "scans", "map.png")

	proj := New("map")
	proj.SetImage(projectPath, imagePath)

	if proj.ImagePath != filepath.Join("scans", "map.png") {
		t.Errorf("stored path = %q, want relative", proj.ImagePath)
	}
	if got := proj.GetImagePath(projectPath); got != imagePath {
		t.Errorf("resolved path = %q, want %q", got, imagePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.georef")); err == nil {
		t.Fatal("expected an error for a missing project file")
	}
}

// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// File represents a georeferencing project file (.georef).
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	// Source image path (relative to project file)
	ImagePath string `json:"image,omitempty"`

	// Basemap
	TileURLTemplate string  `json:"tile_url_template,omitempty"`
	TileOpacity     float64 `json:"tile_opacity,omitempty"`

	// Last map view
	View View `json:"view,omitempty"`

	// Estimator settings
	Settings Settings `json:"settings,omitempty"`
}

// View records the saved map viewport.
type View struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Zoom int     `json:"zoom"`
}

// Settings holds the estimator configuration for the project.
type Settings struct {
	TransformKind string `json:"transform_kind,omitempty"`
	Weighting     string `json:"weighting,omitempty"`
	Preview       bool   `json:"preview"`
}

// New creates a new project file with default settings.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:     1,
		Name:        name,
		Created:     now,
		Modified:    now,
		TileOpacity: 1.0,
		View:        View{Zoom: 2},
		Settings: Settings{
			TransformKind: "affine",
			Weighting:     "none",
		},
	}
}

// Load loads a project from a .georef file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, err
	}

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetImage sets the source image path (relative to project).
func (p *File) SetImage(projectPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(projectPath), imagePath)
	if err != nil {
		p.ImagePath = imagePath
	} else {
		p.ImagePath = rel
	}
	p.Modified = time.Now()
}

// GetImagePath returns the absolute path to the source image.
func (p *File) GetImagePath(projectPath string) string {
	if p.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(p.ImagePath) {
		return p.ImagePath
	}
	return filepath.Join(filepath.Dir(projectPath), p.ImagePath)
}

// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"georef/internal/app"
	"georef/internal/project"
	"georef/internal/transform"
	"georef/internal/version"
	"georef/internal/viewport"
	"georef/pkg/geometry"
	"georef/ui/canvas"
	"georef/ui/panels"
	"georef/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	prefs     *prefs.Prefs
	mapView   *canvas.MapView
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	coordBar  *widget.Label

	projectPath string
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, appPrefs *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Georef")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  appPrefs,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.restorePreferences()

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.mapView = canvas.NewMapView(mw.state)

	mw.sidePanel = panels.NewSidePanel(mw.state, mw.mapView)
	mw.sidePanel.SetWindow(mw.Window)
	mw.sidePanel.Layers.OnApply(func(template string, expireDays int) {
		mw.prefs.SetString(prefs.KeyTileURL, template)
		mw.prefs.SetFloat(prefs.KeyCacheDays, float64(expireDays))
	})

	mw.statusBar = widget.NewLabel("Ready")
	mw.coordBar = widget.NewLabel("")
	mw.mapView.OnHover(func(lon, lat float64) {
		mw.coordBar.SetText(fmt.Sprintf("%.5f, %.5f  z%d", lon, lat, mw.state.View().Zoom))
	})

	toolbar := mw.createToolbar()

	viewArea := container.NewBorder(
		toolbar,    // top
		nil,        // bottom
		nil,        // left
		nil,        // right
		mw.mapView, // center
	)

	split := container.NewHSplit(
		mw.sidePanel.Container(),
		viewArea,
	)
	split.SetOffset(0.28)

	statusRow := container.NewBorder(nil, nil, nil, mw.coordBar, mw.statusBar)
	content := container.NewBorder(
		nil,                            // top
		container.NewPadded(statusRow), // bottom
		nil,                            // left
		nil,                            // right
		split,                          // center
	)

	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1200, 800))
}

// createToolbar creates the toolbar with zoom and picking controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", func() { mw.zoomStep(-1) })
	zoomInBtn := widget.NewButton("+", func() { mw.zoomStep(1) })
	addPairBtn := widget.NewButton("Add Pair", func() {
		mw.mapView.SetMode(canvas.ModePickImage)
		mw.updateStatus("Click the image point")
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		widget.NewSeparator(),
		addPairBtn,
	)
}

// zoomStep zooms by one step anchored at the view center.
func (mw *MainWindow) zoomStep(direction int) {
	view := mw.state.View()
	center := geometry.Point2D{X: float64(view.Width) / 2, Y: float64(view.Height) / 2}
	mw.state.SetViewport(view.ZoomedAt(center, direction))
	mw.mapView.Refresh()
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Project", mw.onNewProject),
		fyne.NewMenuItem("Open Project...", mw.onOpenProject),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Project", mw.onSaveProject),
		fyne.NewMenuItem("Save Project As...", mw.onSaveProjectAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Add Point Pair", func() {
			mw.mapView.SetMode(canvas.ModePickImage)
			mw.updateStatus("Click the image point")
		}),
		fyne.NewMenuItem("Clear Points", func() {
			mw.state.Points.Clear()
			mw.mapView.Refresh()
		}),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.zoomStep(1) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.zoomStep(-1) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Toggle Tiles", mw.onToggleTiles),
		fyne.NewMenuItem("Toggle Image", mw.onToggleImage),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mainMenu := fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu)
	mw.SetMainMenu(mainMenu)
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		mw.mapView.Refresh()
		if path, ok := data.(string); ok {
			mw.updateStatus("Image loaded: " + filepath.Base(path))
		}
	})

	mw.state.On(app.EventPointsChanged, func(interface{}) {
		mw.mapView.Refresh()
		mw.updateStatus(fmt.Sprintf("%d control points (%d enabled)",
			mw.state.Points.Count(), mw.state.Points.CountEnabled()))
	})

	mw.state.On(app.EventTransformChanged, func(interface{}) {
		mw.mapView.Refresh()
		tr := mw.state.Transform()
		if err := mw.state.FitError(); err != nil {
			mw.updateStatus("Fit failed: " + err.Error())
		} else if tr != nil {
			mw.updateStatus(fmt.Sprintf("%s fit, RMSE %.4g", tr.Kind(), tr.RMSE()))
		}
	})

	mw.state.On(app.EventTileConfigChanged, func(interface{}) {
		mw.mapView.Refresh()
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if len(title) > 0 && title[len(title)-1] != '*' {
				mw.SetTitle(title + " *")
			}
		}
	})

	// Completed tile fetches schedule a redraw.
	mw.state.Tiles.SetOnLoad(func() {
		mw.mapView.Refresh()
	})
}

// restorePreferences applies the saved tile template and cache expiry.
func (mw *MainWindow) restorePreferences() {
	days := int(mw.prefs.FloatWithFallback(prefs.KeyCacheDays, 7))
	cfg := mw.state.Tiles.Config()
	cfg.ExpireDays = days
	mw.state.Tiles.Configure(cfg)

	if template := mw.prefs.String(prefs.KeyTileURL); template != "" {
		mw.sidePanel.Layers.SetTemplate(template)
		if err := mw.state.ConfigureTileSource(template); err != nil {
			mw.updateStatus(err.Error())
		}
	}
	mw.state.SetModified(false)
}

// SavePreferences persists the preference file.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		mw.updateStatus("Saving preferences failed: " + err.Error())
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDirectory)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDirectory, filepath.Dir(filePath))
}

// Menu action handlers

func (mw *MainWindow) onNewProject() {
	mw.projectPath = ""
	mw.state.Points.Clear()
	mw.state.Image = nil
	mw.state.SetModified(false)
	mw.SetTitle("Georef - New Project")
	mw.mapView.Refresh()
}

func (mw *MainWindow) onOpenProject() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.loadProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".georef"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadImage(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveProject() {
	if mw.projectPath == "" {
		mw.onSaveProjectAs()
		return
	}
	if err := mw.saveProject(mw.projectPath); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveProjectAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".georef" {
			path += ".georef"
		}
		mw.saveLastDir(path)
		if err := mw.saveProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("project.georef")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onToggleTiles() {
	mw.state.TilesVisible = !mw.state.TilesVisible
	mw.mapView.Refresh()
}

func (mw *MainWindow) onToggleImage() {
	if mw.state.Image != nil {
		mw.state.Image.Visible = !mw.state.Image.Visible
		mw.mapView.Refresh()
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Georef",
		fmt.Sprintf("Georef v%s\n\n"+
			"An interactive map georeferencing tool.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// OpenProject loads a project file, e.g. from a command line argument.
func (mw *MainWindow) OpenProject(path string) error {
	return mw.loadProject(path)
}

// loadProject applies a project file to the state.
func (mw *MainWindow) loadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	if imgPath := proj.GetImagePath(path); imgPath != "" {
		if err := mw.state.LoadImage(imgPath); err != nil {
			return fmt.Errorf("project image: %w", err)
		}
	}

	if proj.TileURLTemplate != "" {
		mw.sidePanel.Layers.SetTemplate(proj.TileURLTemplate)
		if err := mw.state.ConfigureTileSource(proj.TileURLTemplate); err != nil {
			mw.updateStatus(err.Error())
		}
	}
	if proj.TileOpacity > 0 {
		mw.state.TileOpacity = proj.TileOpacity
	}

	view := mw.state.View()
	mw.state.SetViewport(viewport.New(proj.View.Lon, proj.View.Lat, proj.View.Zoom, view.Width, view.Height))
	mw.applyProjectSettings(proj.Settings)

	mw.projectPath = path
	mw.state.SetModified(false)
	mw.SetTitle("Georef - " + filepath.Base(path))
	mw.updateStatus("Project loaded: " + path)
	mw.mapView.Refresh()
	return nil
}

func (mw *MainWindow) applyProjectSettings(s project.Settings) {
	switch s.TransformKind {
	case "poly2":
		mw.state.SetKind(transform.Polynomial2)
	case "tps":
		mw.state.SetKind(transform.ThinPlateSpline)
	default:
		mw.state.SetKind(transform.Affine)
	}
	if s.Weighting == "idw" {
		mw.state.SetWeighting(transform.WeightInverseDistance)
	} else {
		mw.state.SetWeighting(transform.WeightGlobal)
	}
	mw.state.SetPreview(s.Preview)
}

// saveProject collects the current session into a project file.
func (mw *MainWindow) saveProject(path string) error {
	proj := project.New(filepath.Base(path))
	if mw.state.Image != nil {
		proj.SetImage(path, mw.state.Image.Path)
	}
	if src := mw.state.Tiles.Source(); src != nil {
		proj.TileURLTemplate = src.Template()
	}
	proj.TileOpacity = mw.state.TileOpacity

	view := mw.state.View()
	lon, lat := view.CenterGeo()
	proj.View = project.View{Lon: lon, Lat: lat, Zoom: view.Zoom}

	switch mw.state.Kind() {
	case transform.Polynomial2:
		proj.Settings.TransformKind = "poly2"
	case transform.ThinPlateSpline:
		proj.Settings.TransformKind = "tps"
	default:
		proj.Settings.TransformKind = "affine"
	}
	if mw.state.Weighting() == transform.WeightInverseDistance {
		proj.Settings.Weighting = "idw"
	} else {
		proj.Settings.Weighting = "none"
	}
	proj.Settings.Preview = mw.state.Preview()

	if err := proj.Save(path); err != nil {
		return err
	}
	mw.projectPath = path
	mw.state.SetModified(false)
	mw.SetTitle("Georef - " + filepath.Base(path))
	mw.updateStatus("Project saved: " + path)
	return nil
}

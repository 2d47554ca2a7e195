// Package main provides the entry point for the Georef application.
package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"georef/internal/app"
	"georef/internal/tile"
	"georef/internal/version"
	"georef/ui/mainwindow"
	"georef/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const appTitle = "Georef"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	disk, err := tile.NewDiskStore(tile.DefaultDir())
	if err != nil {
		log.Printf("Persistent tile cache disabled: %v", err)
	}

	appPrefs := prefs.Load()
	state := app.NewState(disk, tile.Config{
		ExpireDays: int(appPrefs.FloatWithFallback(prefs.KeyCacheDays, 7)),
	})

	fyneApp := fyneapp.NewWithID("org.georef.app")
	fyneApp.Settings().SetTheme(&app.GeorefTheme{})

	win := mainwindow.New(fyneApp, state, appPrefs)
	win.SetTitle(appTitle)

	// A project or image path may be passed on the command line.
	if len(os.Args) > 1 {
		path := os.Args[1]
		if filepath.Ext(path) == ".georef" {
			if err := win.OpenProject(path); err != nil {
				log.Printf("Failed to load project %s: %v", path, err)
			}
		} else if err := state.LoadImage(path); err != nil {
			log.Printf("Failed to load image %s: %v", path, err)
		}
	}

	setupHotReload(win)

	win.SetCloseIntercept(func() {
		win.SavePreferences()
		fyneApp.Quit()
	})

	win.ShowAndRun()
}

// setupHotReload configures automatic restart detection when the binary is
// recompiled during development.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	log.Printf("Hot reload: watching %s (modified %s)",
		reloader.ExecPath(), reloader.StartupTime().Format("15:04:05"))

	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					reloader.Start()
					return
				}
				log.Println("Hot reload: saving preferences before restart...")
				win.SavePreferences()
				log.Println("Hot reload: restarting...")
				if err := reloader.Restart(); err != nil {
					log.Printf("Hot reload: restart failed: %v", err)
				}
			}, win.Window)
	})

	reloader.Start()
}

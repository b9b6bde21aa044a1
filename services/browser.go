package services

import (
	"fmt"
	"os/exec"
	"runtime"
)

// BrowserOpener shows a URL to the user.
type BrowserOpener interface {
	Open(url string) error
}

type BrowserOpenerFunc func(url string) error

func (f BrowserOpenerFunc) Open(url string) error { return f(url) }

// SystemBrowser launches the platform's default browser.
type SystemBrowser struct{}

func (SystemBrowser) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	// the browser outlives us; reap the launcher in the background
	go func() { _ = cmd.Wait() }()
	return nil
}

// Package envfile writes the starter .env file the storefront reads on boot.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultName = ".env.development"

// ErrExists is returned when the target file is already present.
var ErrExists = errors.New("env file already exists")

// Template holds the placeholders a developer has to fill in.
var Template = map[string]string{
	"APP_ENV":               "development",
	"API_URL":               "YOUR_API_URL_HERE",
	"STRIPE_KEY":            "YOUR_STRIPE_PUBLISHABLE_KEY_HERE",
	"STRIPE_RESTRICTED_KEY": "",
	"STRIPE_KEY_SECRET_ID":  "",
	"ACCESS_TOKEN":          "",
	"REDIS_URL":             "",
	"RETURN_ADDR":           "127.0.0.1:5173",
	"HOME_REDIRECT_DELAY":   "10s",
	"REQUEST_TIMEOUT":       "15s",
	"REQUIRE_PAID_STATUS":   "false",
	"LOG_FILE":              "storefront.log",
}

const header = `# Environment variables file for development
# DO NOT commit this file to version control (Git)
`

// Render returns the file body for vars.
func Render(vars map[string]string) (string, error) {
	body, err := godotenv.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("marshal env template: %w", err)
	}
	return header + strings.TrimSpace(body) + "\n", nil
}

// Write creates path from the template. An existing file is never
// overwritten; delete it by hand to regenerate.
func Write(path string) error {
	content, err := Render(Template)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

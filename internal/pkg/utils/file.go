package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FileExists check if file exists
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

var storedNameReplacer = strings.NewReplacer(" ", "_", ",", "_", "-", "_")

// SanitizeName replaces filesystem hostile chars in a file name
func SanitizeName(name string) string {
	return storedNameReplacer.Replace(name)
}

// MakeStoredName builds a unique sortable name for the uploaded file:
// a timestamp prefix, the job ID and the sanitized base name.
// The ID keeps same-second uploads of one file from colliding
func MakeStoredName(at time.Time, id, original string) (string, error) {
	if id == "" {
		return "", errors.New("no job ID")
	}
	base := SanitizeName(filepath.Base(original))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", errors.Errorf("wrong file name '%s'", original)
	}
	return at.Format("20060102_150405") + "_" + id + "_" + base, nil
}

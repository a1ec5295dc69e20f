package core

import (
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanCode trims and upper-cases outcome codes ("cpl-01 " -> "CPL-01").
func CleanCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// FloatEquals compares scores and weights with a tolerance fit for 2-decimal inputs.
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested, so we walk up.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // installed binary: no go.mod around
		}
		currDir = newDir
	}
}

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mholt/archiver"
)

// SharingHeader is the header written by SharingCSV.
var SharingHeader = []string{"instant", "dteday", "season", "count"}

// SharingCSV returns a table of rows whose count column cycles through
// 0.0, 0.7, ... 6.3, so every default bucket has rows. Bucket sizes for a
// multiple of ten rows are 30%, 20%, 20%, 20%, and 10%.
func SharingCSV(rows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(SharingHeader, ",") + "\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,2011-01-%02d,%d,%.1f\n", i+1, i%28+1, i%4+1, float64(i%10)*0.7)
	}
	return b.String()
}

// WriteSharingCSV writes SharingCSV(rows) to dir/name and returns the path.
func WriteSharingCSV(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(SharingCSV(rows)), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// WriteSharingArchive packs a day.csv of rows into dir/bike_sharing.tgz and
// returns the archive path.
func WriteSharingArchive(t *testing.T, dir string, rows int) string {
	t.Helper()
	csvPath := WriteSharingCSV(t, filepath.Join(dir, "src"), "day.csv", rows)
	archivePath := filepath.Join(dir, "bike_sharing.tgz")
	if err := archiver.NewTarGz().Archive([]string{csvPath}, archivePath); err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}
	return archivePath
}

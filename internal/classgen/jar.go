package classgen

import (
	"archive/zip"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"
)

// fixedZipTime keeps fixture jars byte-for-byte reproducible (1980-01-01 UTC).
var fixedZipTime = time.Unix(315532800, 0).UTC()

// Jar maps entry names to content.
type Jar map[string][]byte

// Add stores the class under its internal name with a .class suffix.
func (j Jar) Add(classes ...*Builder) Jar {
	for _, b := range classes {
		j[b.Name()+".class"] = b.Bytes()
	}

	return j
}

// Write stores the entries, sorted by name, as a zip file at path.
func (j Jar) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create jar: %w", err)
	}

	zw := zip.NewWriter(f)

	for _, name := range slices.Sorted(maps.Keys(j)) {
		h := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: fixedZipTime}
		h.SetMode(0o644)

		w, createErr := zw.CreateHeader(h)
		if createErr != nil {
			f.Close()

			return fmt.Errorf("create %s: %w", name, createErr)
		}

		_, err = w.Write(j[name])
		if err != nil {
			f.Close()

			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	err = zw.Close()
	if err != nil {
		f.Close()

		return fmt.Errorf("finish jar: %w", err)
	}

	return f.Close()
}

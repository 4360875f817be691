// Package archive reads class files out of jars, zip files, class
// directories and single class files, and builds annotation indexes from them.
package archive

import (
	"archive/zip"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
)

const (
	classSuffix     = ".class"
	versionedPrefix = "META-INF/versions/"
)

// ErrArchiveRead matches every *ReadError.
var ErrArchiveRead = errors.New("archive read failed")

// ReadError reports an archive that could not be read: an I/O failure, a
// corrupt zip, or a malformed class inside it.
type ReadError struct {
	Path  string
	Entry string
	Err   error
}

func (e *ReadError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("read archive %s: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("read archive %s entry %s: %v", e.Path, e.Entry, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is matches ErrArchiveRead.
func (e *ReadError) Is(target error) bool { return target == ErrArchiveRead }

// Kind is the physical layout of an archive.
type Kind int

// Archive kinds.
const (
	KindZip Kind = iota + 1
	KindDir
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindDir:
		return "dir"
	case KindClass:
		return "class"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is one class file inside an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Class is the internal class name derived from Name, empty for a
	// standalone class file whose package is unknown.
	Class string
	// Size is the uncompressed size in bytes.
	Size int64

	open func() (io.ReadCloser, error)
}

// Open returns the class file bytes.
func (e Entry) Open() (io.ReadCloser, error) { return e.open() }

// ClassNameFromEntry maps an entry path to an internal class name:
// "com/foo/Bar.class" becomes "com/foo/Bar"; multi-release prefixes
// ("META-INF/versions/11/") are dropped.
func ClassNameFromEntry(name string) string {
	name = strings.TrimSuffix(name, classSuffix)

	if rest, ok := strings.CutPrefix(name, versionedPrefix); ok {
		if _, after, found := strings.Cut(rest, "/"); found {
			return after
		}
	}

	return name
}

// Archive is an opened source of class files.
type Archive struct {
	path    string
	kind    Kind
	entries []Entry
	zr      *zip.ReadCloser
}

// Open inspects path: a directory is walked for .class files, a file named
// *.class is a single class, and anything else is read as a zip (jar, war, ear).
func Open(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	switch {
	case info.IsDir():
		return openDir(path)
	case strings.HasSuffix(path, classSuffix):
		entry := Entry{
			Name: filepath.Base(path),
			Size: info.Size(),
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		}

		return &Archive{path: path, kind: KindClass, entries: []Entry{entry}}, nil
	default:
		return openZip(path)
	}
}

func openZip(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	a := &Archive{path: path, kind: KindZip, zr: zr}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, classSuffix) {
			continue
		}

		a.entries = append(a.entries, Entry{
			Name:  f.Name,
			Class: ClassNameFromEntry(f.Name),
			Size:  int64(f.UncompressedSize64), //nolint:gosec // zip sizes fit in int64
			open:  f.Open,
		})
	}

	a.sortEntries()

	return a, nil
}

func openDir(root string) (*Archive, error) {
	a := &Archive{path: root, kind: KindDir}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() || !strings.HasSuffix(p, classSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)

		a.entries = append(a.entries, Entry{
			Name:  name,
			Class: ClassNameFromEntry(name),
			Size:  info.Size(),
			open:  func() (io.ReadCloser, error) { return os.Open(p) },
		})

		return nil
	})
	if err != nil {
		return nil, &ReadError{Path: root, Err: err}
	}

	a.sortEntries()

	return a, nil
}

func (a *Archive) sortEntries() {
	slices.SortStableFunc(a.entries, func(x, y Entry) int { return cmp.Compare(x.Name, y.Name) })
}

// Path returns the path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Kind returns the archive layout.
func (a *Archive) Kind() Kind { return a.kind }

// Classes returns the class entries sorted by name.
func (a *Archive) Classes() []Entry { return slices.Clone(a.entries) }

// Fingerprint returns the xxh3 hash of the archive content as 16 hex
// digits. Files hash their bytes; directories hash every class entry name
// and content in entry order.
func (a *Archive) Fingerprint() (string, error) {
	h := xxh3.New()

	if a.kind != KindDir {
		err := hashFile(h, a.path)
		if err != nil {
			return "", &ReadError{Path: a.path, Err: err}
		}

		return fmt.Sprintf("%016x", h.Sum64()), nil
	}

	for _, e := range a.entries {
		_, err := io.WriteString(h, e.Name+"\x00")
		if err != nil {
			return "", &ReadError{Path: a.path, Entry: e.Name, Err: err}
		}

		err = hashEntry(h, e)
		if err != nil {
			return "", &ReadError{Path: a.path, Entry: e.Name, Err: err}
		}
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)

	return err
}

func hashEntry(w io.Writer, e Entry) error {
	rc, err := e.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(w, rc)

	return err
}

// Close releases the underlying zip reader, if any.
func (a *Archive) Close() error {
	if a.zr == nil {
		return nil
	}

	err := a.zr.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", a.path, err)
	}

	return nil
}

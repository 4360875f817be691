package classfile

import (
	"fmt"
	"io"
)

// Magic is the class file signature.
const Magic uint32 = 0xCAFEBABE

// Access flags used to classify declarations.
const (
	AccInterface  uint16 = 0x0200
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// Version is the class file format version.
type Version struct {
	Major uint16
	Minor uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Hierarchy holds the raw access flags, this/super class and interface
// indices that follow the constant pool.
type Hierarchy struct {
	AccessFlags uint16
	ThisClass   uint16
	SuperClass  uint16
	Interfaces  []uint16
}

// Member is a field or method declaration.
type Member struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Annotations []string
}

// Class is a fully decoded class file, reduced to the data the indexer needs.
type Class struct {
	Version     Version
	AccessFlags uint16
	Name        string
	SuperName   string
	Interfaces  []string
	Annotations []string
	Fields      []Member
	Methods     []Member
}

// IsInterface reports whether the class is an interface or annotation type.
func (c *Class) IsInterface() bool { return c.AccessFlags&AccInterface != 0 }

// IsAnnotation reports whether the class is an annotation type.
func (c *Class) IsAnnotation() bool { return c.AccessFlags&AccAnnotation != 0 }

type decodeStep int

const (
	stepPrelude decodeStep = iota
	stepPool
	stepHierarchy
	stepMembers
	stepAttributes
)

// Decoder reads a class file front to back. Each step must be called once,
// in order; later steps may be omitted when the caller does not need them.
type Decoder struct {
	r    *reader
	next decodeStep
	pool *Pool
}

// NewDecoder returns a decoder reading from r. Unbuffered readers are wrapped.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: newReader(r)}
}

func (d *Decoder) advance(step decodeStep) error {
	if d.next != step {
		return ErrDecoderState
	}

	d.next++

	return nil
}

// ReadPrelude checks the magic number and reads the version.
func (d *Decoder) ReadPrelude() (Version, error) {
	err := d.advance(stepPrelude)
	if err != nil {
		return Version{}, err
	}

	magic, err := d.r.u4()
	if err != nil {
		return Version{}, err
	}

	if magic != Magic {
		return Version{}, malformed(ReasonBadMagic, 0, "got 0x%08X", magic)
	}

	minor, err := d.r.u2()
	if err != nil {
		return Version{}, err
	}

	major, err := d.r.u2()
	if err != nil {
		return Version{}, err
	}

	return Version{Major: major, Minor: minor}, nil
}

// ReadPool reads the constant pool.
func (d *Decoder) ReadPool() (*Pool, error) {
	err := d.advance(stepPool)
	if err != nil {
		return nil, err
	}

	pool, err := readPool(d.r)
	if err != nil {
		return nil, err
	}

	d.pool = pool

	return pool, nil
}

// ReadHierarchy reads access flags, this_class, super_class and the interfaces table.
func (d *Decoder) ReadHierarchy() (Hierarchy, error) {
	err := d.advance(stepHierarchy)
	if err != nil {
		return Hierarchy{}, err
	}

	var h Hierarchy

	for _, field := range []*uint16{&h.AccessFlags, &h.ThisClass, &h.SuperClass} {
		*field, err = d.r.u2()
		if err != nil {
			return Hierarchy{}, err
		}
	}

	count, err := d.r.u2()
	if err != nil {
		return Hierarchy{}, err
	}

	h.Interfaces = make([]uint16, count)

	for i := range h.Interfaces {
		h.Interfaces[i], err = d.r.u2()
		if err != nil {
			return Hierarchy{}, err
		}
	}

	return h, nil
}

// ReadMembers reads the fields and methods tables.
func (d *Decoder) ReadMembers() (fields, methods []Member, err error) {
	err = d.advance(stepMembers)
	if err != nil {
		return nil, nil, err
	}

	fields, err = d.readMemberTable()
	if err != nil {
		return nil, nil, err
	}

	methods, err = d.readMemberTable()
	if err != nil {
		return nil, nil, err
	}

	return fields, methods, nil
}

func (d *Decoder) readMemberTable() ([]Member, error) {
	count, err := d.r.u2()
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, count)

	for range count {
		var (
			m                  Member
			nameIdx, descIndex uint16
		)

		for _, field := range []*uint16{&m.AccessFlags, &nameIdx, &descIndex} {
			*field, err = d.r.u2()
			if err != nil {
				return nil, err
			}
		}

		m.Name, err = d.pool.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}

		m.Descriptor, err = d.pool.Utf8(descIndex)
		if err != nil {
			return nil, err
		}

		m.Annotations, err = d.readAttributeTable()
		if err != nil {
			return nil, err
		}

		members = append(members, m)
	}

	return members, nil
}

// ReadAttributes reads the class attribute table and returns the class-level annotations.
func (d *Decoder) ReadAttributes() ([]string, error) {
	err := d.advance(stepAttributes)
	if err != nil {
		return nil, err
	}

	return d.readAttributeTable()
}

// readAttributeTable skips every attribute by its length, collecting
// annotation type names on the way.
func (d *Decoder) readAttributeTable() ([]string, error) {
	count, err := d.r.u2()
	if err != nil {
		return nil, err
	}

	var annotations []string

	for range count {
		nameIndex, nameErr := d.r.u2()
		if nameErr != nil {
			return nil, nameErr
		}

		length, lenErr := d.r.u4()
		if lenErr != nil {
			return nil, lenErr
		}

		name, utfErr := d.pool.Utf8(nameIndex)
		if utfErr != nil {
			return nil, utfErr
		}

		if !isAnnotationAttribute(name) {
			err = d.r.skip(int64(length))
			if err != nil {
				return nil, err
			}

			continue
		}

		data, dataErr := d.r.bytes(int64(length))
		if dataErr != nil {
			return nil, dataErr
		}

		names, parseErr := parseAnnotations(data, d.pool)
		if parseErr != nil {
			return nil, parseErr
		}

		annotations = mergeNames(annotations, names)
	}

	return annotations, nil
}

// Parse decodes a complete class file.
func Parse(r io.Reader) (*Class, error) {
	d := NewDecoder(r)

	version, err := d.ReadPrelude()
	if err != nil {
		return nil, err
	}

	pool, err := d.ReadPool()
	if err != nil {
		return nil, err
	}

	h, err := d.ReadHierarchy()
	if err != nil {
		return nil, err
	}

	class := &Class{Version: version, AccessFlags: h.AccessFlags}

	class.Name, err = pool.ClassName(h.ThisClass)
	if err != nil {
		return nil, err
	}

	if h.SuperClass != 0 {
		class.SuperName, err = pool.ClassName(h.SuperClass)
		if err != nil {
			return nil, err
		}
	}

	for _, idx := range h.Interfaces {
		name, ifaceErr := pool.ClassName(idx)
		if ifaceErr != nil {
			return nil, ifaceErr
		}

		class.Interfaces = append(class.Interfaces, name)
	}

	class.Fields, class.Methods, err = d.ReadMembers()
	if err != nil {
		return nil, err
	}

	class.Annotations, err = d.ReadAttributes()
	if err != nil {
		return nil, err
	}

	return class, nil
}

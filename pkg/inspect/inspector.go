package inspect

import (
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// Option configures an Inspector.
type Option func(*options)

type options struct {
	classRefs bool
}

// WithClassReferences also reports annotated classes named anywhere in the
// constant pool (ClassReference usages).
func WithClassReferences() Option {
	return func(o *options) { o.classRefs = true }
}

// Result is the outcome of scanning one class.
type Result struct {
	// SourceClass is the name the usages are attributed to.
	SourceClass string
	Usages      *UsageSet
}

// NoUsage reports whether the class references no annotated element.
func (r *Result) NoUsage() bool { return r.Usages.Len() == 0 }

// Inspector accumulates usages across Scan calls. It reads the Index but
// never changes it. An Inspector is not safe for concurrent use; give each
// worker its own.
type Inspector struct {
	idx    *index.Index
	opts   options
	usages *UsageSet
}

// New returns an Inspector over idx.
func New(idx *index.Index, opts ...Option) *Inspector {
	in := &Inspector{idx: idx, usages: NewUsageSet()}
	for _, opt := range opts {
		opt(&in.opts)
	}

	return in
}

// Scan reads one class file and records every usage it finds, attributed
// to sourceClass (the class's own name when empty). It reports true when
// this call found no usage. A malformed class records nothing.
func (in *Inspector) Scan(sourceClass string, r io.Reader) (bool, error) {
	res, err := scan(in.idx, in.opts, sourceClass, r)
	if err != nil {
		return false, err
	}

	in.usages.Merge(res.Usages)

	return res.NoUsage(), nil
}

// Usages returns a copy of everything recorded since the last Reset.
func (in *Inspector) Usages() *UsageSet { return in.usages.Clone() }

// Reset drops the recorded usages.
func (in *Inspector) Reset() { in.usages = NewUsageSet() }

// ScanClass scans one class without any accumulated state.
func ScanClass(idx *index.Index, sourceClass string, r io.Reader, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return scan(idx, o, sourceClass, r)
}

func scan(idx *index.Index, o options, sourceClass string, r io.Reader) (*Result, error) {
	d := classfile.NewDecoder(r)

	_, err := d.ReadPrelude()
	if err != nil {
		return nil, scanErr(sourceClass, err)
	}

	pool, err := d.ReadPool()
	if err != nil {
		return nil, scanErr(sourceClass, err)
	}

	// Pool references are reported first, then the hierarchy.
	found := NewUsageSet()

	refs, err := memberRefs(pool)
	if err != nil {
		return nil, scanErr(sourceClass, err)
	}

	h, err := d.ReadHierarchy()
	if err != nil {
		return nil, scanErr(sourceClass, err)
	}

	this, err := pool.ClassName(h.ThisClass)
	if err != nil {
		return nil, scanErr(sourceClass, err)
	}

	if sourceClass == "" {
		sourceClass = this
	}

	for _, ref := range refs {
		addMemberUsage(found, idx, sourceClass, ref)
	}

	skip := map[string]bool{this: true}

	if h.SuperClass != 0 {
		super, superErr := pool.ClassName(h.SuperClass)
		if superErr != nil {
			return nil, scanErr(sourceClass, superErr)
		}

		skip[super] = true

		if set, ok := idx.ClassAnnotations(super); ok {
			found.Add(ExtendsAnnotatedClass{SourceClass: sourceClass, SuperClass: super, Annotations: set})
		}
	}

	for _, i := range h.Interfaces {
		iface, ifaceErr := pool.ClassName(i)
		if ifaceErr != nil {
			return nil, scanErr(sourceClass, ifaceErr)
		}

		skip[iface] = true

		if set, ok := idx.ClassAnnotations(iface); ok {
			found.Add(ImplementsAnnotatedInterface{SourceClass: sourceClass, Interface: iface, Annotations: set})
		}
	}

	if o.classRefs {
		err = addClassUsages(found, idx, pool, sourceClass, skip)
		if err != nil {
			return nil, scanErr(sourceClass, err)
		}
	}

	return &Result{SourceClass: sourceClass, Usages: found}, nil
}

func scanErr(sourceClass string, err error) error {
	if sourceClass == "" {
		return fmt.Errorf("scan class: %w", err)
	}

	return fmt.Errorf("scan %s: %w", sourceClass, err)
}

func memberRefs(pool *classfile.Pool) ([]classfile.MemberRefInfo, error) {
	var refs []classfile.MemberRefInfo

	for i, entry := range pool.All() {
		switch entry.Tag() {
		case classfile.TagFieldref, classfile.TagMethodref, classfile.TagInterfaceMethodref:
		default:
			continue
		}

		ref, err := pool.MemberRef(i)
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

func addMemberUsage(found *UsageSet, idx *index.Index, sourceClass string, ref classfile.MemberRefInfo) {
	if ref.Kind == classfile.MemberField {
		if set, ok := idx.FieldAnnotations(ref.Owner, ref.Name); ok {
			found.Add(FieldReference{
				SourceClass:     sourceClass,
				FieldOwnerClass: ref.Owner,
				FieldName:       ref.Name,
				Annotations:     set,
			})
		}

		return
	}

	if set, ok := idx.MethodAnnotations(ref.Owner, ref.Name, ref.Descriptor); ok {
		found.Add(MethodReference{
			SourceClass:      sourceClass,
			MethodOwnerClass: ref.Owner,
			MethodName:       ref.Name,
			Descriptor:       ref.Descriptor,
			Annotations:      set,
		})
	}
}

func addClassUsages(found *UsageSet, idx *index.Index, pool *classfile.Pool, sourceClass string, skip map[string]bool) error {
	for i, entry := range pool.All() {
		if entry.Tag() != classfile.TagClass {
			continue
		}

		name, err := pool.ClassName(i)
		if err != nil {
			return err
		}

		class, ok := classfile.ElementClassName(name)
		if !ok || skip[class] {
			continue
		}

		if set, indexed := idx.ClassAnnotations(class); indexed {
			found.Add(ClassReference{SourceClass: sourceClass, ReferencedClass: class, Annotations: set})
		}
	}

	return nil
}

package classfile

import (
	"io"
	"iter"
)

// Pool is a parsed constant pool. Slot 0 and the slot after each Long or
// Double are unusable and hold nil.
type Pool struct {
	entries []Entry
}

// ReadPool reads constant_pool_count and the entries that follow it. The
// reader must be positioned right after the magic and version fields.
func ReadPool(r io.Reader) (*Pool, error) {
	return readPool(newReader(r))
}

func readPool(r *reader) (*Pool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, malformed(ReasonBadIndex, 0, "constant_pool_count is zero")
	}

	entries := make([]Entry, count)

	for i := 1; i < int(count); i++ {
		rawTag, tagErr := r.u1()
		if tagErr != nil {
			return nil, tagErr
		}

		tag := Tag(rawTag)

		entry, entryErr := readEntry(r, tag, i)
		if entryErr != nil {
			return nil, entryErr
		}

		entries[i] = entry

		if tag.Wide() {
			i++
			if i >= int(count) {
				return nil, malformed(ReasonBadIndex, i-1, "%s constant overflows the pool", tag)
			}
		}
	}

	return &Pool{entries: entries}, nil
}

func readEntry(r *reader, tag Tag, index int) (Entry, error) {
	switch tag {
	case TagUtf8:
		length, err := r.u2()
		if err != nil {
			return nil, err
		}

		data, err := r.bytes(int64(length))
		if err != nil {
			return nil, err
		}

		text, err := decodeModifiedUTF8(data)
		if err != nil {
			return nil, &Error{Reason: ReasonBadUTF8, Index: index, Err: err}
		}

		return &Utf8{Text: text}, nil
	case TagClass:
		nameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}

		return &ClassRef{NameIndex: nameIndex}, nil
	case TagNameAndType:
		nameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}

		descIndex, err := r.u2()
		if err != nil {
			return nil, err
		}

		return &NameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}, nil
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		ref, err := readRef(r)
		if err != nil {
			return nil, err
		}

		switch tag {
		case TagFieldref:
			return &FieldRef{Ref: ref}, nil
		case TagMethodref:
			return &MethodRef{Ref: ref}, nil
		default:
			return &InterfaceMethodRef{Ref: ref}, nil
		}
	}

	size, ok := opaqueSizes[tag]
	if !ok {
		return nil, malformed(ReasonBadTag, index, "tag %d", uint8(tag))
	}

	data, err := r.bytes(int64(size))
	if err != nil {
		return nil, err
	}

	return &Opaque{Kind: tag, Data: data}, nil
}

func readRef(r *reader) (Ref, error) {
	classIndex, err := r.u2()
	if err != nil {
		return Ref{}, err
	}

	natIndex, err := r.u2()
	if err != nil {
		return Ref{}, err
	}

	return Ref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}, nil
}

// Len returns the number of usable slots plus placeholders, i.e. constant_pool_count-1.
func (p *Pool) Len() int {
	return len(p.entries) - 1
}

// Entry returns the entry at index. Index 0, indices past the pool and
// placeholder slots are rejected.
func (p *Pool) Entry(index uint16) (Entry, error) {
	i := int(index)
	if i <= 0 || i >= len(p.entries) {
		return nil, malformed(ReasonBadIndex, i, "pool has %d slots", p.Len())
	}

	entry := p.entries[i]
	if entry == nil {
		return nil, malformed(ReasonBadIndex, i, "slot is the second half of a wide constant")
	}

	return entry, nil
}

// Utf8 returns the text of the Utf8 entry at index.
func (p *Pool) Utf8(index uint16) (string, error) {
	entry, err := p.Entry(index)
	if err != nil {
		return "", err
	}

	utf, ok := entry.(*Utf8)
	if !ok {
		return "", wrongKind(index, TagUtf8, entry)
	}

	return utf.Text, nil
}

// ClassName resolves the Class entry at index to its internal name.
func (p *Pool) ClassName(index uint16) (string, error) {
	entry, err := p.Entry(index)
	if err != nil {
		return "", err
	}

	class, ok := entry.(*ClassRef)
	if !ok {
		return "", wrongKind(index, TagClass, entry)
	}

	return p.Utf8(class.NameIndex)
}

// NameAndType resolves the NameAndType entry at index.
func (p *Pool) NameAndType(index uint16) (name, descriptor string, err error) {
	entry, err := p.Entry(index)
	if err != nil {
		return "", "", err
	}

	nat, ok := entry.(*NameAndType)
	if !ok {
		return "", "", wrongKind(index, TagNameAndType, entry)
	}

	name, err = p.Utf8(nat.NameIndex)
	if err != nil {
		return "", "", err
	}

	descriptor, err = p.Utf8(nat.DescriptorIndex)
	if err != nil {
		return "", "", err
	}

	return name, descriptor, nil
}

// MemberRef resolves the Fieldref, Methodref or InterfaceMethodref at index.
func (p *Pool) MemberRef(index uint16) (MemberRefInfo, error) {
	entry, err := p.Entry(index)
	if err != nil {
		return MemberRefInfo{}, err
	}

	var (
		ref  Ref
		kind MemberKind
	)

	switch e := entry.(type) {
	case *FieldRef:
		ref, kind = e.Ref, MemberField
	case *MethodRef:
		ref, kind = e.Ref, MemberMethod
	case *InterfaceMethodRef:
		ref, kind = e.Ref, MemberInterfaceMethod
	default:
		return MemberRefInfo{}, wrongKind(index, TagMethodref, entry)
	}

	owner, err := p.ClassName(ref.ClassIndex)
	if err != nil {
		return MemberRefInfo{}, err
	}

	name, descriptor, err := p.NameAndType(ref.NameAndTypeIndex)
	if err != nil {
		return MemberRefInfo{}, err
	}

	return MemberRefInfo{Kind: kind, Owner: owner, Name: name, Descriptor: descriptor}, nil
}

// All yields every usable entry with its index, in pool order.
func (p *Pool) All() iter.Seq2[uint16, Entry] {
	return func(yield func(uint16, Entry) bool) {
		for i := 1; i < len(p.entries); i++ {
			if p.entries[i] == nil {
				continue
			}

			if !yield(uint16(i), p.entries[i]) { //nolint:gosec // bounded by u2 count
				return
			}
		}
	}
}

func wrongKind(index uint16, want Tag, got Entry) *Error {
	return malformed(ReasonWrongKind, int(index), "want %s, got %s", want, got.Tag())
}

package classfile

import "fmt"

// Tag identifies the kind of a constant pool entry.
type Tag uint8

// Constant pool tags defined by the class file format.
const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// opaqueSizes holds the payload width of entries stored without interpretation.
var opaqueSizes = map[Tag]int{
	TagInteger:       4,
	TagFloat:         4,
	TagLong:          8,
	TagDouble:        8,
	TagString:        2,
	TagMethodHandle:  3,
	TagMethodType:    2,
	TagDynamic:       4,
	TagInvokeDynamic: 4,
	TagModule:        2,
	TagPackage:       2,
}

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Wide reports whether entries of this kind occupy two pool slots.
func (t Tag) Wide() bool {
	return t == TagLong || t == TagDouble
}

// Entry is a constant pool entry.
type Entry interface {
	Tag() Tag
}

// Utf8 holds decoded string data.
type Utf8 struct {
	Text string
}

// Tag implements Entry.
func (*Utf8) Tag() Tag { return TagUtf8 }

// ClassRef points at the Utf8 entry holding an internal class name.
type ClassRef struct {
	NameIndex uint16
}

// Tag implements Entry.
func (*ClassRef) Tag() Tag { return TagClass }

// NameAndType pairs a member name with its descriptor.
type NameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

// Tag implements Entry.
func (*NameAndType) Tag() Tag { return TagNameAndType }

// Ref is the shared payload of field and method reference entries.
type Ref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

// FieldRef references a field of some class.
type FieldRef struct {
	Ref
}

// Tag implements Entry.
func (*FieldRef) Tag() Tag { return TagFieldref }

// MethodRef references a method or constructor of a class.
type MethodRef struct {
	Ref
}

// Tag implements Entry.
func (*MethodRef) Tag() Tag { return TagMethodref }

// InterfaceMethodRef references a method of an interface.
type InterfaceMethodRef struct {
	Ref
}

// Tag implements Entry.
func (*InterfaceMethodRef) Tag() Tag { return TagInterfaceMethodref }

// Opaque is any other valid entry; its payload is kept verbatim.
type Opaque struct {
	Kind Tag
	Data []byte
}

// Tag implements Entry.
func (o *Opaque) Tag() Tag { return o.Kind }

// MemberKind distinguishes the three member reference entry kinds.
type MemberKind uint8

// Member reference kinds.
const (
	MemberField MemberKind = iota + 1
	MemberMethod
	MemberInterfaceMethod
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberMethod:
		return "method"
	case MemberInterfaceMethod:
		return "interface method"
	default:
		return fmt.Sprintf("MemberKind(%d)", uint8(k))
	}
}

// MemberRefInfo is a fully resolved field or method reference.
type MemberRefInfo struct {
	Kind       MemberKind
	Owner      string
	Name       string
	Descriptor string
}

package classfile

import "strings"

// Reserved method names.
const (
	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// InternalName converts a binary name (com.example.Foo) to its internal form (com/example/Foo).
func InternalName(binaryName string) string {
	return strings.ReplaceAll(binaryName, ".", "/")
}

// BinaryName converts an internal name (com/example/Foo) to its binary form (com.example.Foo).
func BinaryName(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}

// DescriptorClassName extracts the internal class name from an object type
// descriptor such as Lcom/example/Foo;.
func DescriptorClassName(descriptor string) (string, bool) {
	if len(descriptor) < 3 || descriptor[0] != 'L' || descriptor[len(descriptor)-1] != ';' {
		return "", false
	}

	return descriptor[1 : len(descriptor)-1], true
}

// ElementClassName returns the class a Class constant names. Array classes
// ([[Lcom/example/Foo;) resolve to their element class; arrays of
// primitives report false.
func ElementClassName(name string) (string, bool) {
	if !strings.HasPrefix(name, "[") {
		return name, name != ""
	}

	return DescriptorClassName(strings.TrimLeft(name, "["))
}

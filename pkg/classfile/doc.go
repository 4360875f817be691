// Package classfile decodes JVM class files: the constant pool, the class
// hierarchy, field and method tables, and the annotation attributes attached
// to them. Any structural problem is reported as an [*Error] matching
// [ErrMalformedClassFile]; the package never logs and never recovers from
// malformed input.
package classfile

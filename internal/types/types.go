// Package types implements the interning table for IR/AST types (§3.2, §6.2).
package types

import "fmt"

// Kind is a primitive type kind.
type Kind int

const (
	Invalid Kind = iota
	Int          // i64
	Float        // f64
	Bool         // i1
	StringK      // heap-owned, refcounted
	Symbol       // single Unicode code point
	Void
	Undef // SSA-construction placeholder, refined once operands narrow it
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case StringK:
		return "String"
	case Symbol:
		return "Symbol"
	case Void:
		return "Void"
	case Undef:
		return "Undef"
	default:
		return "Invalid"
	}
}

// Shape discriminates the composite type forms layered over Kind.
type Shape int

const (
	Primitive Shape = iota
	Array
	Pointer
	Reference
	Function
)

// Type is an interned, immutable value. Two Types with equal shape and
// structure share the same *Type pointer once interned, so pointer
// equality is type equality.
type Type struct {
	shape Shape
	kind  Kind // meaningful when shape == Primitive

	elem  *Type // Array element / Pointer pointee / Reference pointee
	arity int   // Array dimensionality

	params []*Type // Function parameters
	result *Type   // Function result

	// Mutable/readable attributes (§3.2): whether the *location* this
	// type describes may be assigned to / read from. These only carry
	// meaning on parameter and variable bindings, not on the interned
	// type identity itself, but are threaded through Type so callers
	// have a single value to pass around a symbol's declared type.
	mutable  bool
	readable bool
}

func (t *Type) String() string {
	switch t.shape {
	case Primitive:
		return t.kind.String()
	case Array:
		return fmt.Sprintf("Array(%s, %d)", t.elem, t.arity)
	case Pointer:
		return fmt.Sprintf("*%s", t.elem)
	case Reference:
		return fmt.Sprintf("&%s", t.elem)
	case Function:
		return fmt.Sprintf("fn(%v) -> %s", t.params, t.result)
	default:
		return "?"
	}
}

func (t *Type) Shape() Shape { return t.shape }
func (t *Type) Kind() Kind   { return t.kind }
func (t *Type) Elem() *Type  { return t.elem }
func (t *Type) Arity() int   { return t.arity }
func (t *Type) Params() []*Type { return t.params }
func (t *Type) Result() *Type   { return t.result }

func (t *Type) Mutable() bool  { return t.mutable }
func (t *Type) Readable() bool { return t.readable }

func (t *Type) IsNumeric() bool { return t.shape == Primitive && (t.kind == Int || t.kind == Float) }
func (t *Type) IsPrimitive(k Kind) bool { return t.shape == Primitive && t.kind == k }

// WithAttrs returns a shallow copy of t carrying different
// mutable/readable attributes (used to type input/output/inout
// parameters from one interned base type, §3.2).
func (t *Type) WithAttrs(mutable, readable bool) *Type {
	cp := *t
	cp.mutable = mutable
	cp.readable = readable
	return &cp
}

// key uniquely identifies a type's structure for interning purposes.
type key struct {
	shape  Shape
	kind   Kind
	elem   *Type
	arity  int
	params string
	result *Type
}

// Table is the shared interning table for IR/AST types (§3.2, §6.2).
// Both the annotator and the lowerer hold a reference to the same
// Table so that identical structural types always compare equal by
// pointer.
type Table struct {
	interned map[key]*Type

	// Singleton primitives, pre-interned at construction.
	tInt, tFloat, tBool, tString, tSymbol, tVoid, tUndef *Type
}

// NewTable creates a Table with every primitive kind pre-interned.
func NewTable() *Table {
	t := &Table{interned: make(map[key]*Type)}
	t.tInt = t.internPrimitive(Int)
	t.tFloat = t.internPrimitive(Float)
	t.tBool = t.internPrimitive(Bool)
	t.tString = t.internPrimitive(StringK)
	t.tSymbol = t.internPrimitive(Symbol)
	t.tVoid = t.internPrimitive(Void)
	t.tUndef = t.internPrimitive(Undef)
	return t
}

func (t *Table) internPrimitive(k Kind) *Type {
	ky := key{shape: Primitive, kind: k}
	if existing, ok := t.interned[ky]; ok {
		return existing
	}
	ty := &Type{shape: Primitive, kind: k, mutable: true, readable: true}
	t.interned[ky] = ty
	return ty
}

func (t *Table) Int() *Type    { return t.tInt }
func (t *Table) Float() *Type  { return t.tFloat }
func (t *Table) Bool() *Type   { return t.tBool }
func (t *Table) String() *Type { return t.tString }
func (t *Table) Symbol() *Type { return t.tSymbol }
func (t *Table) Void() *Type   { return t.tVoid }
func (t *Table) Undef() *Type  { return t.tUndef }

// ArrayOf interns Array(elem, arity).
func (t *Table) ArrayOf(elem *Type, arity int) *Type {
	ky := key{shape: Array, elem: elem, arity: arity}
	if existing, ok := t.interned[ky]; ok {
		return existing
	}
	ty := &Type{shape: Array, elem: elem, arity: arity, mutable: true, readable: true}
	t.interned[ky] = ty
	return ty
}

// PointerTo interns Pointer(pointee).
func (t *Table) PointerTo(pointee *Type) *Type {
	ky := key{shape: Pointer, elem: pointee}
	if existing, ok := t.interned[ky]; ok {
		return existing
	}
	ty := &Type{shape: Pointer, elem: pointee, mutable: true, readable: true}
	t.interned[ky] = ty
	return ty
}

// ReferenceTo interns Reference(pointee).
func (t *Table) ReferenceTo(pointee *Type) *Type {
	ky := key{shape: Reference, elem: pointee}
	if existing, ok := t.interned[ky]; ok {
		return existing
	}
	ty := &Type{shape: Reference, elem: pointee, mutable: true, readable: true}
	t.interned[ky] = ty
	return ty
}

// FunctionType interns Function(params, result).
func (t *Table) FunctionType(params []*Type, result *Type) *Type {
	sig := ""
	for _, p := range params {
		sig += p.String() + ","
	}
	ky := key{shape: Function, params: sig, result: result}
	if existing, ok := t.interned[ky]; ok {
		return existing
	}
	ty := &Type{shape: Function, params: append([]*Type(nil), params...), result: result, mutable: false, readable: true}
	t.interned[ky] = ty
	return ty
}

// Identical reports whether a and b are the exact same interned type.
func Identical(a, b *Type) bool { return a == b }

// Same reports whether a and b describe the same structural type,
// ignoring the mutable/readable attributes a parameter binding may
// have stamped onto an otherwise identical type (§3.2). Two plain
// Ints are Same even when one came from an output-only parameter and
// the other from an ordinary variable; Identical would say no.
func Same(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.shape != b.shape {
		return false
	}
	switch a.shape {
	case Primitive:
		return a.kind == b.kind
	case Array, Pointer, Reference:
		return a.arity == b.arity && Same(a.elem, b.elem)
	case Function:
		if a.result != b.result && !Same(a.result, b.result) {
			return false
		}
		if len(a.params) != len(b.params) {
			return false
		}
		for i := range a.params {
			if !Same(a.params[i], b.params[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CanImplicitlyConvert implements the conversion table in §3.2.
func CanImplicitlyConvert(from, to *Type) bool {
	if Same(from, to) {
		return true
	}
	if from.shape != Primitive || to.shape != Primitive {
		// T* -> void* is allowed; void* -> T* is not.
		if from.shape == Pointer && to.shape == Pointer && to.elem.kind == Void {
			return true
		}
		return false
	}
	switch {
	case from.kind == Int && to.kind == Int:
		return true // widening only; the core has one integer width (i64)
	case from.kind == Int && to.kind == Float:
		return true
	case from.kind == Float && to.kind == Int:
		return true // truncating cast inserted by the annotator
	case (from.kind == Int || from.kind == Float) && to.kind == Bool:
		return true
	case from.kind == Symbol && to.kind == StringK:
		return true
	}
	return false
}

// BinaryNumericResult computes the common numeric type of + - * / per §3.2:
// Float dominates Int; `/` always yields Float.
func BinaryNumericResult(t *Table, op string, lhs, rhs *Type) (*Type, bool) {
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return nil, false
	}
	if op == "/" {
		return t.Float(), true
	}
	if op == "%" {
		if lhs.IsPrimitive(Int) && rhs.IsPrimitive(Int) {
			return t.Int(), true
		}
		return nil, false
	}
	if lhs.IsPrimitive(Float) || rhs.IsPrimitive(Float) {
		return t.Float(), true
	}
	return t.Int(), true
}

// PowerResult implements `^`: Float if either operand is Float, else Int.
func PowerResult(t *Table, lhs, rhs *Type) *Type {
	if lhs.IsPrimitive(Float) || rhs.IsPrimitive(Float) {
		return t.Float()
	}
	return t.Int()
}

// ConcatResult implements String/Symbol `+` combinations yielding String (§3.2).
func ConcatResult(t *Table, lhs, rhs *Type) (*Type, bool) {
	isStringy := func(ty *Type) bool {
		return ty.IsPrimitive(StringK) || ty.IsPrimitive(Symbol)
	}
	if isStringy(lhs) && isStringy(rhs) {
		return t.String(), true
	}
	return nil, false
}

// Package ast implements the AST model described in §3.1: a tagged
// tree of expression/statement nodes, each carrying a source location,
// a type slot filled in later by the annotator, and a uniform
// children accessor (mutable and const) so later passes can rewrite
// shape without knowing every concrete node type.
package ast

import (
	"strconv"

	"kumirc/internal/diag"
	"kumirc/internal/types"
)

// Tag discriminates the node variants named in §3.1's table.
type Tag int

const (
	TagIdentifier Tag = iota
	TagNumberLit
	TagStringLit
	TagUnary
	TagBinary
	TagCast
	TagAssign
	TagArrayElemAssign
	TagIndex
	TagMultiIndex
	TagSlice
	TagBlock
	TagVarsBlock
	TagIf
	TagLoop
	TagBreak
	TagContinue
	TagVarDecl
	TagFuncDecl
	TagCall
	TagInput
	TagOutput
	TagAssert
	TagUse
)

// NoSymbol is the sentinel symbol id for an unbound identifier reference.
const NoSymbol = -1

// NoScope is the sentinel scope id for a node that has not yet been
// stamped with a scope (see resolver re-entry semantics, §4.1).
const NoScope = -1

// Node is the uniform interface every AST variant implements.
type Node interface {
	Tag() Tag
	Location() diag.Location
	Type() *types.Type
	SetType(*types.Type)

	// Children returns the node's operand/statement children in
	// order, for read-only traversal (type annotator, resolver).
	Children() []Node

	// MutableChildren returns pointers into the node's own child
	// fields, letting a rewriter replace a child in place without
	// reconstructing the parent (§4.2's transformer).
	MutableChildren() []*Node
}

// base is embedded by every concrete node; it carries the location and
// the type slot shared by all variants.
type base struct {
	Loc diag.Location
	Typ *types.Type
}

func (b *base) Location() diag.Location { return b.Loc }
func (b *base) Type() *types.Type       { return b.Typ }
func (b *base) SetType(t *types.Type)   { b.Typ = t }

// ---- Literals and identifiers --------------------------------------

type Identifier struct {
	base
	Name   string
	Symbol int // NoSymbol until the resolver binds it
}

func (n *Identifier) Tag() Tag               { return TagIdentifier }
func (n *Identifier) Children() []Node       { return nil }
func (n *Identifier) MutableChildren() []*Node { return nil }

type NumberLit struct {
	base
	IntValue   int64
	FloatValue float64
	IsFloat    bool
}

func (n *NumberLit) Tag() Tag                 { return TagNumberLit }
func (n *NumberLit) Children() []Node         { return nil }
func (n *NumberLit) MutableChildren() []*Node { return nil }

type StringLit struct {
	base
	Value []byte
}

func (n *StringLit) Tag() Tag                 { return TagStringLit }
func (n *StringLit) Children() []Node         { return nil }
func (n *StringLit) MutableChildren() []*Node { return nil }

// ---- Operators -------------------------------------------------------

type Unary struct {
	base
	Operator string
	Operand  Node
}

func (n *Unary) Tag() Tag         { return TagUnary }
func (n *Unary) Children() []Node { return []Node{n.Operand} }
func (n *Unary) MutableChildren() []*Node { return []*Node{&n.Operand} }

type Binary struct {
	base
	Operator string
	Left     Node
	Right    Node
}

func (n *Binary) Tag() Tag         { return TagBinary }
func (n *Binary) Children() []Node { return []Node{n.Left, n.Right} }
func (n *Binary) MutableChildren() []*Node { return []*Node{&n.Left, &n.Right} }

// Cast is inserted by the annotator to make an implicit conversion explicit.
type Cast struct {
	base
	Operand Node
	Target  *types.Type
}

func (n *Cast) Tag() Tag         { return TagCast }
func (n *Cast) Children() []Node { return []Node{n.Operand} }
func (n *Cast) MutableChildren() []*Node { return []*Node{&n.Operand} }

// ---- Assignment and indexing -----------------------------------------

type Assign struct {
	base
	Name   string
	Symbol int
	Value  Node
}

func (n *Assign) Tag() Tag         { return TagAssign }
func (n *Assign) Children() []Node { return []Node{n.Value} }
func (n *Assign) MutableChildren() []*Node { return []*Node{&n.Value} }

type ArrayElemAssign struct {
	base
	Name    string
	Symbol  int
	Indices []Node
	Value   Node
}

func (n *ArrayElemAssign) Tag() Tag { return TagArrayElemAssign }
func (n *ArrayElemAssign) Children() []Node {
	cs := append([]Node{}, n.Indices...)
	return append(cs, n.Value)
}
func (n *ArrayElemAssign) MutableChildren() []*Node {
	out := make([]*Node, 0, len(n.Indices)+1)
	for i := range n.Indices {
		out = append(out, &n.Indices[i])
	}
	return append(out, &n.Value)
}

type Index struct {
	base
	Collection Node
	Index      Node
}

func (n *Index) Tag() Tag         { return TagIndex }
func (n *Index) Children() []Node { return []Node{n.Collection, n.Index} }
func (n *Index) MutableChildren() []*Node { return []*Node{&n.Collection, &n.Index} }

type MultiIndex struct {
	base
	Collection Node
	Indices    []Node
}

func (n *MultiIndex) Tag() Tag { return TagMultiIndex }
func (n *MultiIndex) Children() []Node {
	return append([]Node{n.Collection}, n.Indices...)
}
func (n *MultiIndex) MutableChildren() []*Node {
	out := []*Node{&n.Collection}
	for i := range n.Indices {
		out = append(out, &n.Indices[i])
	}
	return out
}

type Slice struct {
	base
	Collection Node
	Start      Node
	End        Node
}

func (n *Slice) Tag() Tag         { return TagSlice }
func (n *Slice) Children() []Node { return []Node{n.Collection, n.Start, n.End} }
func (n *Slice) MutableChildren() []*Node {
	return []*Node{&n.Collection, &n.Start, &n.End}
}

// ---- Blocks and control flow ------------------------------------------

type Block struct {
	base
	Stmts           []Node
	ScopeID         int // NoScope until the resolver stamps it
	SkipDestructors bool
}

func (n *Block) Tag() Tag         { return TagBlock }
func (n *Block) Children() []Node { return n.Stmts }
func (n *Block) MutableChildren() []*Node {
	out := make([]*Node, len(n.Stmts))
	for i := range n.Stmts {
		out[i] = &n.Stmts[i]
	}
	return out
}

// VarsBlock groups the declarations of one multi-name declaration line.
// It stays in the tree; the resolver, annotator and lowerer walk its
// Decls in place.
type VarsBlock struct {
	base
	Decls []Node
}

func (n *VarsBlock) Tag() Tag         { return TagVarsBlock }
func (n *VarsBlock) Children() []Node { return n.Decls }
func (n *VarsBlock) MutableChildren() []*Node {
	out := make([]*Node, len(n.Decls))
	for i := range n.Decls {
		out[i] = &n.Decls[i]
	}
	return out
}

type If struct {
	base
	Cond Node
	Then Node
	Else Node // nil when absent
}

func (n *If) Tag() Tag { return TagIf }
func (n *If) Children() []Node {
	if n.Else == nil {
		return []Node{n.Cond, n.Then}
	}
	return []Node{n.Cond, n.Then, n.Else}
}
func (n *If) MutableChildren() []*Node {
	return []*Node{&n.Cond, &n.Then, &n.Else}
}

// Loop unifies while / repeat-until / for: each of the four optional
// slots is nil when absent (§3.1, §4.4.1).
type Loop struct {
	base
	PreCond  Node // while's condition, for's continuation condition
	PreBody  Node // for's counter-init statement
	Body     Node
	PostBody Node // for's step statement
	PostCond Node // repeat-until's condition
}

func (n *Loop) Tag() Tag { return TagLoop }
func (n *Loop) Children() []Node {
	var out []Node
	for _, c := range []Node{n.PreCond, n.PreBody, n.Body, n.PostBody, n.PostCond} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
func (n *Loop) MutableChildren() []*Node {
	return []*Node{&n.PreCond, &n.PreBody, &n.Body, &n.PostBody, &n.PostCond}
}

type Break struct{ base }

func (n *Break) Tag() Tag                 { return TagBreak }
func (n *Break) Children() []Node         { return nil }
func (n *Break) MutableChildren() []*Node { return nil }

type Continue struct{ base }

func (n *Continue) Tag() Tag                 { return TagContinue }
func (n *Continue) Children() []Node         { return nil }
func (n *Continue) MutableChildren() []*Node { return nil }

// ---- Declarations ------------------------------------------------------

// ArrayBound is one `lo:hi` dimension of a declared array (§4.2).
type ArrayBound struct {
	Lo Node
	Hi Node
}

type VarDecl struct {
	base
	Name         string
	Symbol       int
	DeclaredType *types.Type
	Bounds       []ArrayBound // nil for scalar declarations

	// ArrayDims caches the symbol ids of the hidden
	// `$$name_lbound<i>` / `$$name_dimsize<i>` / `$$name_mulacc<i>`
	// variables the transformer synthesizes for each dimension
	// (§4.2), named by HiddenArrayVarName. No pass fills it in: it
	// stays nil, and the lowerer looks the hidden variables up by
	// name each time it needs one (§4.4.3).
	ArrayDims []ArrayDimSymbols
}

// HiddenArrayVarName is the naming convention the transformer uses
// when it synthesizes a dimension's bound/size/stride variables, and
// the lowerer uses to look them back up (§4.2): kind is one of
// "lbound", "dimsize", "mulacc".
func HiddenArrayVarName(name, kind string, dim int) string {
	return "$$" + name + "_" + kind + strconv.Itoa(dim)
}

// ArrayDimSymbols names one dimension's synthesized hidden variables.
type ArrayDimSymbols struct {
	LBoundSymbol  int
	DimSizeSymbol int
	MulAccSymbol  int
}

func (n *VarDecl) Tag() Tag { return TagVarDecl }
func (n *VarDecl) Children() []Node {
	var out []Node
	for _, b := range n.Bounds {
		out = append(out, b.Lo, b.Hi)
	}
	return out
}
func (n *VarDecl) MutableChildren() []*Node {
	out := make([]*Node, 0, len(n.Bounds)*2)
	for i := range n.Bounds {
		out = append(out, &n.Bounds[i].Lo, &n.Bounds[i].Hi)
	}
	return out
}

// ParamMode distinguishes арг / рез / арг рез parameters (§3.2).
type ParamMode int

const (
	ParamIn ParamMode = iota
	ParamOut
	ParamInOut
)

type Param struct {
	Name      string
	Symbol    int
	Type      *types.Type
	Mode      ParamMode
	Bounds    []ArrayBound      // non-nil for array parameters
	ArrayDims []ArrayDimSymbols // not filled in; hidden bound variables are looked up by name
}

type FuncDecl struct {
	base
	Name        string
	Symbol      int
	Params      []*Param
	Body        Node
	ReturnType  *types.Type
	FuncType    *types.Type // interned Function(params, result), filled by resolver/annotator
	NativeEntry *string     // optional pointer-to-native-entry mangled name
	ScopeID     int         // the function's own body scope, NoScope until resolved
}

func (n *FuncDecl) Tag() Tag { return TagFuncDecl }
func (n *FuncDecl) Children() []Node {
	if n.Body == nil {
		return nil
	}
	return []Node{n.Body}
}
func (n *FuncDecl) MutableChildren() []*Node { return []*Node{&n.Body} }

// ---- Calls and I/O -------------------------------------------------------

type Call struct {
	base
	Callee Node
	Args   []Node
}

func (n *Call) Tag() Tag { return TagCall }
func (n *Call) Children() []Node {
	return append([]Node{n.Callee}, n.Args...)
}
func (n *Call) MutableChildren() []*Node {
	out := []*Node{&n.Callee}
	for i := range n.Args {
		out = append(out, &n.Args[i])
	}
	return out
}

// Input / Output are desugared by the post-annotation transformer
// (§4.2) into typed runtime calls; they exist pre-desugaring only.
type Input struct {
	base
	Args []Node
}

func (n *Input) Tag() Tag         { return TagInput }
func (n *Input) Children() []Node { return n.Args }
func (n *Input) MutableChildren() []*Node {
	out := make([]*Node, len(n.Args))
	for i := range n.Args {
		out[i] = &n.Args[i]
	}
	return out
}

type Output struct {
	base
	Args []Node
}

func (n *Output) Tag() Tag         { return TagOutput }
func (n *Output) Children() []Node { return n.Args }
func (n *Output) MutableChildren() []*Node {
	out := make([]*Node, len(n.Args))
	for i := range n.Args {
		out[i] = &n.Args[i]
	}
	return out
}

// Assert is desugared before resolution into a call to __ensure (§4.2).
type Assert struct {
	base
	Expr Node
	Text string // source text of Expr, captured before desugaring
}

func (n *Assert) Tag() Tag         { return TagAssert }
func (n *Assert) Children() []Node { return []Node{n.Expr} }
func (n *Assert) MutableChildren() []*Node { return []*Node{&n.Expr} }

type Use struct {
	base
	Module string
}

func (n *Use) Tag() Tag                 { return TagUse }
func (n *Use) Children() []Node         { return nil }
func (n *Use) MutableChildren() []*Node { return nil }

// ---- Constructors ------------------------------------------------------
//
// Concrete node structs embed the unexported `base`, so packages other
// than ast (the transformer and the lowerer, which both synthesize new
// nodes) go through these constructors rather than a struct literal.

func NewIdentifier(loc diag.Location, name string) *Identifier {
	return &Identifier{base: base{Loc: loc}, Name: name, Symbol: NoSymbol}
}

func NewNumberLitInt(loc diag.Location, v int64) *NumberLit {
	return &NumberLit{base: base{Loc: loc}, IntValue: v}
}

func NewNumberLitFloat(loc diag.Location, v float64) *NumberLit {
	return &NumberLit{base: base{Loc: loc}, FloatValue: v, IsFloat: true}
}

func NewStringLit(loc diag.Location, value []byte) *StringLit {
	return &StringLit{base: base{Loc: loc}, Value: value}
}

func NewCast(loc diag.Location, operand Node, target *types.Type) *Cast {
	return &Cast{base: base{Loc: loc}, Operand: operand, Target: target}
}

func NewCall(loc diag.Location, callee Node, args []Node) *Call {
	return &Call{base: base{Loc: loc}, Callee: callee, Args: args}
}

func NewBlock(loc diag.Location, stmts []Node, skipDestructors bool) *Block {
	return &Block{base: base{Loc: loc}, Stmts: stmts, ScopeID: NoScope, SkipDestructors: skipDestructors}
}

func NewAssign(loc diag.Location, name string, value Node) *Assign {
	return &Assign{base: base{Loc: loc}, Name: name, Symbol: NoSymbol, Value: value}
}

func NewVarDecl(loc diag.Location, name string, declaredType *types.Type) *VarDecl {
	return &VarDecl{base: base{Loc: loc}, Name: name, Symbol: NoSymbol, DeclaredType: declaredType}
}

func NewBinary(loc diag.Location, op string, left, right Node) *Binary {
	return &Binary{base: base{Loc: loc}, Operator: op, Left: left, Right: right}
}

func NewArrayElemAssign(loc diag.Location, name string, indices []Node, value Node) *ArrayElemAssign {
	return &ArrayElemAssign{base: base{Loc: loc}, Name: name, Symbol: NoSymbol, Indices: indices, Value: value}
}

func NewUnary(loc diag.Location, op string, operand Node) *Unary {
	return &Unary{base: base{Loc: loc}, Operator: op, Operand: operand}
}

func NewIndex(loc diag.Location, collection, index Node) *Index {
	return &Index{base: base{Loc: loc}, Collection: collection, Index: index}
}

func NewMultiIndex(loc diag.Location, collection Node, indices []Node) *MultiIndex {
	return &MultiIndex{base: base{Loc: loc}, Collection: collection, Indices: indices}
}

func NewSlice(loc diag.Location, collection, start, end Node) *Slice {
	return &Slice{base: base{Loc: loc}, Collection: collection, Start: start, End: end}
}

func NewIf(loc diag.Location, cond, then, els Node) *If {
	return &If{base: base{Loc: loc}, Cond: cond, Then: then, Else: els}
}

func NewLoop(loc diag.Location, preCond, preBody, body, postBody, postCond Node) *Loop {
	return &Loop{base: base{Loc: loc}, PreCond: preCond, PreBody: preBody, Body: body, PostBody: postBody, PostCond: postCond}
}

func NewBreak(loc diag.Location) *Break       { return &Break{base: base{Loc: loc}} }
func NewContinue(loc diag.Location) *Continue { return &Continue{base: base{Loc: loc}} }

func NewFuncDecl(loc diag.Location, name string, params []*Param, body Node, returnType *types.Type) *FuncDecl {
	return &FuncDecl{base: base{Loc: loc}, Name: name, Symbol: NoSymbol, Params: params, Body: body, ReturnType: returnType, ScopeID: NoScope}
}

func NewInput(loc diag.Location, args []Node) *Input   { return &Input{base: base{Loc: loc}, Args: args} }
func NewOutput(loc diag.Location, args []Node) *Output { return &Output{base: base{Loc: loc}, Args: args} }

func NewAssert(loc diag.Location, expr Node, text string) *Assert {
	return &Assert{base: base{Loc: loc}, Expr: expr, Text: text}
}

func NewUse(loc diag.Location, module string) *Use { return &Use{base: base{Loc: loc}, Module: module} }

func NewVarsBlock(loc diag.Location, decls []Node) *VarsBlock {
	return &VarsBlock{base: base{Loc: loc}, Decls: decls}
}

// LocationOf returns n's location, or the zero Location for nil.
func LocationOf(n Node) diag.Location {
	if n == nil {
		return diag.Location{}
	}
	return n.Location()
}

// Walk visits every node reachable from root in preorder, calling visit
// on each. visit returns false to stop descending into that node's
// children (but sibling traversal continues).
func Walk(root Node, visit func(Node) bool) {
	if root == nil {
		return
	}
	if !visit(root) {
		return
	}
	for _, c := range root.Children() {
		Walk(c, visit)
	}
}

// Package script defines the abstract syntax tree that the engine
// executes.  A parser (external to this repo) produces these values
// from script text; this package only specifies their shape.
//
// Every node carries a stable integer id assigned by the parser.  Ids
// survive edits to unrelated parts of a script, which is what lets a
// saved execution snapshot re-attach to a newer version of the same
// script (see core.Restore).
//
// Node kinds are represented as one-of structs: exactly one of the
// kind pointers should be set.  This keeps the tree directly
// readable from YAML or JSON documents, which is how scripts are
// authored for tests and tools in this repo.
package script

// Pos is a position in the script source.
type Pos struct {
	Line int `json:"line" yaml:"line"`
	Col  int `json:"col" yaml:"col"`
}

// Script is a parsed script: an ordered sequence of top-level
// declarations.
type Script struct {
	// Name is the generic name for this script.  Something like
	// "chapter-one".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Doc is general documentation about this script.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	Decls []*Decl `json:"decls" yaml:"decls"`
}

// Decl is a top-level declaration.  Exactly one of the kind fields
// should be non-nil.
type Decl struct {
	Id  int `json:"id" yaml:"id"`
	Pos Pos `json:"pos,omitempty" yaml:"pos,omitempty"`

	State     *StateDecl     `json:"state,omitempty" yaml:"state,omitempty"`
	Character *CharacterDecl `json:"character,omitempty" yaml:"character,omitempty"`
	Beat      *Beat          `json:"beat,omitempty" yaml:"beat,omitempty"`
	Import    *ImportDecl    `json:"import,omitempty" yaml:"import,omitempty"`
}

// Kind reports which kind field is set.
func (d *Decl) Kind() string {
	switch {
	case d.State != nil:
		return "state"
	case d.Character != nil:
		return "character"
	case d.Beat != nil:
		return "beat"
	case d.Import != nil:
		return "import"
	}
	return "unknown"
}

// Beat is a named, runnable unit of script content.  Beats declared
// at top level are visible everywhere; beats declared inside another
// beat's body are visible only from the declaring scope and its
// descendants.
type Beat struct {
	Name string  `json:"name" yaml:"name"`
	Doc  string  `json:"doc,omitempty" yaml:"doc,omitempty"`
	Body []*Stmt `json:"body" yaml:"body"`
}

// StateDecl declares state fields.  A temporary declaration attaches
// the fields to the declaring scope; otherwise the fields persist,
// keyed by the declaring node's id.
type StateDecl struct {
	Temporary bool         `json:"temporary,omitempty" yaml:"temporary,omitempty"`
	Fields    []*FieldInit `json:"fields" yaml:"fields"`
}

// CharacterDecl declares a character and its initial fields.  A
// re-declaration of an enclosing character's name extends and shadows
// that character within the declaring scope.
type CharacterDecl struct {
	Name   string       `json:"name" yaml:"name"`
	Fields []*FieldInit `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldInit is one field of a state or character declaration.
type FieldInit struct {
	Name  string `json:"name" yaml:"name"`
	Value *Expr  `json:"value" yaml:"value"`
}

// ImportDecl records an import that the parser has already resolved.
// The engine does not act on it.
type ImportDecl struct {
	Path string `json:"path" yaml:"path"`
}

// Stmt is a statement.  Exactly one of the kind fields should be
// non-nil.
type Stmt struct {
	Id  int `json:"id" yaml:"id"`
	Pos Pos `json:"pos,omitempty" yaml:"pos,omitempty"`

	State      *StateDecl     `json:"state,omitempty" yaml:"state,omitempty"`
	Character  *CharacterDecl `json:"character,omitempty" yaml:"character,omitempty"`
	Beat       *Beat          `json:"beat,omitempty" yaml:"beat,omitempty"`
	Text       *Text          `json:"text,omitempty" yaml:"text,omitempty"`
	Choice     *Choice        `json:"choice,omitempty" yaml:"choice,omitempty"`
	If         *If            `json:"if,omitempty" yaml:"if,omitempty"`
	Assign     *Assign        `json:"assign,omitempty" yaml:"assign,omitempty"`
	Call       *Call          `json:"call,omitempty" yaml:"call,omitempty"`
	Transition *Transition    `json:"transition,omitempty" yaml:"transition,omitempty"`
}

// Kind reports which kind field is set.
func (s *Stmt) Kind() string {
	switch {
	case s.State != nil:
		return "state"
	case s.Character != nil:
		return "character"
	case s.Beat != nil:
		return "beat"
	case s.Text != nil:
		return "text"
	case s.Choice != nil:
		return "choice"
	case s.If != nil:
		return "if"
	case s.Assign != nil:
		return "assign"
	case s.Call != nil:
		return "call"
	case s.Transition != nil:
		return "transition"
	}
	return "unknown"
}

// Text is a line of text or dialogue.  Speaker is empty for plain
// narration.
type Text struct {
	Speaker string `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Line    *Tpl   `json:"line" yaml:"line"`
}

// Choice presents options to the host.
type Choice struct {
	Options []*Option `json:"options" yaml:"options"`
}

// Option is one choice option.  If is an optional guard: when it
// evaluates falsy the option is presented as disabled.  The display
// text is evaluated regardless of the guard.
type Option struct {
	Text *Tpl    `json:"text" yaml:"text"`
	If   *Expr   `json:"if,omitempty" yaml:"if,omitempty"`
	Body []*Stmt `json:"body,omitempty" yaml:"body,omitempty"`
}

// If is a conditional statement.
type If struct {
	Cond *Expr   `json:"cond" yaml:"cond"`
	Then []*Stmt `json:"then,omitempty" yaml:"then,omitempty"`
	Else []*Stmt `json:"else,omitempty" yaml:"else,omitempty"`
}

// Assign assigns to an access or index target.  Op is "=" or a
// compound operator ("+=", "-=", "*=", "/=").
type Assign struct {
	Target *Expr  `json:"target" yaml:"target"`
	Op     string `json:"op" yaml:"op"`
	Value  *Expr  `json:"value" yaml:"value"`
}

// Call invokes a function, or a visible beat when the target is a
// bare name that resolves to one.
type Call struct {
	Target *Expr   `json:"target" yaml:"target"`
	Args   []*Expr `json:"args,omitempty" yaml:"args,omitempty"`
}

// Transition transfers control to another beat.  The target "." ends
// the run.
type Transition struct {
	Target string `json:"target" yaml:"target"`
}

// EndTarget is the transition target that ends the run.
const EndTarget = "."

// Expr is an expression.  Exactly one of the kind fields should be
// non-nil (Null counts as a kind).
type Expr struct {
	Id  int `json:"id" yaml:"id"`
	Pos Pos `json:"pos,omitempty" yaml:"pos,omitempty"`

	Null   bool         `json:"null,omitempty" yaml:"null,omitempty"`
	Bool   *bool        `json:"bool,omitempty" yaml:"bool,omitempty"`
	Num    *float64     `json:"num,omitempty" yaml:"num,omitempty"`
	Str    *Tpl         `json:"str,omitempty" yaml:"str,omitempty"`
	Array  []*Expr      `json:"array,omitempty" yaml:"array,omitempty"`
	Access *string      `json:"access,omitempty" yaml:"access,omitempty"`
	Field  *FieldAccess `json:"field,omitempty" yaml:"field,omitempty"`
	Index  *IndexAccess `json:"index,omitempty" yaml:"index,omitempty"`
	Call   *Call        `json:"callExpr,omitempty" yaml:"callExpr,omitempty"`
	Binary *Binary      `json:"binary,omitempty" yaml:"binary,omitempty"`
	Unary  *Unary       `json:"unary,omitempty" yaml:"unary,omitempty"`
}

// Kind reports which kind field is set.
func (e *Expr) Kind() string {
	switch {
	case e.Null:
		return "null"
	case e.Bool != nil:
		return "bool"
	case e.Num != nil:
		return "num"
	case e.Str != nil:
		return "str"
	case e.Array != nil:
		return "array"
	case e.Access != nil:
		return "access"
	case e.Field != nil:
		return "field"
	case e.Index != nil:
		return "index"
	case e.Call != nil:
		return "call"
	case e.Binary != nil:
		return "binary"
	case e.Unary != nil:
		return "unary"
	}
	return "unknown"
}

// FieldAccess reads a field of an object-valued expression.
type FieldAccess struct {
	Obj  *Expr  `json:"obj" yaml:"obj"`
	Name string `json:"name" yaml:"name"`
}

// IndexAccess reads an element of an array-valued expression.
type IndexAccess struct {
	Obj   *Expr `json:"obj" yaml:"obj"`
	Index *Expr `json:"index" yaml:"index"`
}

// Binary is a binary operation.
type Binary struct {
	Op    string `json:"op" yaml:"op"`
	Left  *Expr  `json:"left" yaml:"left"`
	Right *Expr  `json:"right" yaml:"right"`
}

// Unary is a unary operation ("-" or "!").
type Unary struct {
	Op      string `json:"op" yaml:"op"`
	Operand *Expr  `json:"operand" yaml:"operand"`
}

// Tpl is an interpolated string: a flat sequence of literal text,
// interpolation expressions ($name, ${expr}), and inline tag markers
// (<x>, </x>).
type Tpl struct {
	Parts []*Part `json:"parts" yaml:"parts"`
}

// Part is one segment of a Tpl.  Exactly one of Text (possibly
// empty), Interp, or Tag should be meaningful; the parser emits Text
// parts only when non-empty.
type Part struct {
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
	Interp *Expr  `json:"interp,omitempty" yaml:"interp,omitempty"`
	Tag    *Tag   `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Tag is an inline tag marker.
type Tag struct {
	Name  string `json:"name" yaml:"name"`
	Close bool   `json:"close,omitempty" yaml:"close,omitempty"`
}

// T makes a Tpl from a literal string.  Convenience for hosts and
// tests.
func T(s string) *Tpl {
	return &Tpl{Parts: []*Part{{Text: s}}}
}

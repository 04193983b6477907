package loader

// Grammar structs for the participle parser, in the same struct-tag
// style the teacher's YARA grammar uses (see its parser/grammar.go):
// literal keywords in quotes, "@@" captures a sub-struct, "@@*"/"@@+"
// repeat, "( a | b | c )" alternates.

// File is the top-level catalog DSL document: a sequence of format
// declarations.
type File struct {
	Formats []*FormatDecl `parser:"@@*"`
}

// FormatDecl declares one Format and its body.
type FormatDecl struct {
	PUID  string  `parser:"'format' @String"`
	Name  string  `parser:"@String '{'"`
	Stmts []*Stmt `parser:"@@* '}'"`
}

// Stmt is one statement inside a format body: an extension list, a
// signature block, or a priority-over declaration.
type Stmt struct {
	Extensions   []string       `parser:"( 'extensions' @String+"`
	Signature    *SignatureDecl `parser:"| @@"`
	PriorityOver []string       `parser:"| 'priority' 'over' @String+ )"`
}

// SignatureDecl declares one Signature and its Patterns.
type SignatureDecl struct {
	ID       string         `parser:"'signature' @String '{'"`
	Patterns []*PatternDecl `parser:"@@* '}'"`
}

// PatternDecl declares one anchored Pattern. Kind selects whether Source
// is an RE2 regex literal or a PRONOM-style hex byte sequence.
type PatternDecl struct {
	Anchor string `parser:"'pattern' @('BOF' | 'EOF' | 'VAR')"`
	Kind   string `parser:"@('regex' | 'hex')"`
	Source string `parser:"@String"`
}

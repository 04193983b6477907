// Package loader is the external collaborator spec.md §6 describes:
// it reads a catalog from its textual source representation and
// produces the []catalog.FormatSpec shape catalog.Compile requires. The
// core never sees this package's DSL, only its output.
package loader

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/pattern"
	"github.com/sigmatch/sigmatch/sigerr"
)

var dslLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_/.\-]*`},
	{Name: "Punct", Pattern: `[{}]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var dslParser = participle.MustBuild[File](
	participle.Lexer(dslLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// Loader parses catalog DSL documents into catalog.FormatSpec values.
type Loader struct{}

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

// Parse parses a catalog DSL document from a string.
func (l *Loader) Parse(input string) ([]catalog.FormatSpec, error) {
	file, err := dslParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return build(file)
}

// ParseFile parses a catalog DSL document from a file.
func (l *Loader) ParseFile(path string) ([]catalog.FormatSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	file, err := dslParser.ParseString(path, string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return build(file)
}

func build(file *File) ([]catalog.FormatSpec, error) {
	specs := make([]catalog.FormatSpec, 0, len(file.Formats))
	for _, fd := range file.Formats {
		spec := catalog.FormatSpec{PUID: fd.PUID, Name: fd.Name}
		for _, stmt := range fd.Stmts {
			switch {
			case stmt.Signature != nil:
				sigSpec, err := buildSignature(fd.PUID, stmt.Signature)
				if err != nil {
					return nil, err
				}
				spec.Signatures = append(spec.Signatures, sigSpec)
			case stmt.Extensions != nil:
				spec.Extensions = append(spec.Extensions, stmt.Extensions...)
			case stmt.PriorityOver != nil:
				spec.PriorityOver = append(spec.PriorityOver, stmt.PriorityOver...)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildSignature(formatPUID string, sd *SignatureDecl) (catalog.SignatureSpec, error) {
	sig := catalog.SignatureSpec{ID: sd.ID, Name: sd.ID}
	for _, pd := range sd.Patterns {
		anchor, err := anchorFromName(pd.Anchor)
		if err != nil {
			return catalog.SignatureSpec{}, fmt.Errorf("format %q signature %q: %w", formatPUID, sd.ID, err)
		}
		source, err := sourceFromDecl(pd)
		if err != nil {
			return catalog.SignatureSpec{}, fmt.Errorf("format %q signature %q: %w", formatPUID, sd.ID, err)
		}
		sig.Patterns = append(sig.Patterns, catalog.PatternSpec{Anchor: anchor, Source: source})
	}
	return sig, nil
}

func anchorFromName(name string) (pattern.Anchor, error) {
	switch name {
	case "BOF":
		return pattern.BOF, nil
	case "EOF":
		return pattern.EOF, nil
	case "VAR":
		return pattern.Variable, nil
	default:
		return 0, sigerr.Newf(sigerr.BadAnchor, "unknown anchor %q", name)
	}
}

func sourceFromDecl(pd *PatternDecl) (string, error) {
	switch pd.Kind {
	case "regex":
		return pd.Source, nil
	case "hex":
		toks, err := parseHexTokens(pd.Source)
		if err != nil {
			return "", err
		}
		return "(?s)" + hexTokensToRegex(toks), nil
	default:
		return "", sigerr.Newf(sigerr.CatalogInvalid, "unknown pattern kind %q", pd.Kind)
	}
}

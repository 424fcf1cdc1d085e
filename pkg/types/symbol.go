package types

// SymbolKind classifies a C/C++ symbol as reported by the external parser.
type SymbolKind string

const (
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindConstructor SymbolKind = "constructor"
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindEnum        SymbolKind = "enum"
	KindEnumerator  SymbolKind = "enumerator"
	KindVariable    SymbolKind = "variable"
	KindField       SymbolKind = "field"
	KindTypedef     SymbolKind = "typedef"
	KindNamespace   SymbolKind = "namespace"
	KindMacro       SymbolKind = "macro"
)

// Symbol is one entry in a file's symbols map. SymbolName carries the full
// display name including the signature for functions ("foo(int, char)") and
// the qualified form for function-local variables ("foo(int)::local").
type Symbol struct {
	SymbolName string     `cbor:"1,keyasint"`
	Kind       SymbolKind `cbor:"2,keyasint"`
	Location   Location   `cbor:"3,keyasint"`
	USR        string     `cbor:"4,keyasint,omitempty"`
	Definition bool       `cbor:"5,keyasint,omitempty"`
}

// IsNull reports whether the symbol carries no data.
func (s *Symbol) IsNull() bool { return s.SymbolName == "" && s.Location.IsNull() }

// IsFunctionVariable reports whether name denotes a variable declared inside
// a function body, e.g. "foo(int)::local". Such names must never be
// truncated at the opening parenthesis: the parenthesized part is the
// enclosing function, not a signature to strip.
func IsFunctionVariable(name string) bool {
	endParen := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ')' {
			endParen = i
			break
		}
	}
	if endParen == -1 || endParen+2 >= len(name) {
		return false
	}
	if name[endParen+1] != ':' || name[endParen+2] != ':' {
		return false
	}
	rest := name[endParen+3:]
	if rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if !isSymbolChar(rest[i]) {
			return false
		}
	}
	return true
}

func isSymbolChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '~':
		return true
	}
	return false
}

// RelationKind tags an edge in a file's targets map with the kind of
// reference it represents.
type RelationKind uint16

const (
	RelationCall RelationKind = iota
	RelationDeclaration
	RelationDefinition
	RelationReference
)

// Package expression provides parsing and sandboxed evaluation of the
// condition and guard expressions used by workflow definitions.
package expression

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // identifier segment
	TokenInt    // integer literal
	TokenFloat  // float literal
	TokenString // string literal
	TokenBool   // true/false
	TokenNull   // null

	// Arithmetic operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %

	// Comparison operators
	TokenEQ  // ==
	TokenNE  // !=
	TokenSEQ // ===
	TokenSNE // !==
	TokenLT  // <
	TokenGT  // >
	TokenLE  // <=
	TokenGE  // >=

	// Logical operators
	TokenAND  // &&
	TokenOR   // ||
	TokenBang // !

	// Conditional operator
	TokenQuestion // ?
	TokenColon    // :

	// Delimiters
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
	TokenDot    // .
)

// String returns the string representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return "ILLEGAL"
	case TokenIdent:
		return "IDENT"
	case TokenInt:
		return "INT"
	case TokenFloat:
		return "FLOAT"
	case TokenString:
		return "STRING"
	case TokenBool:
		return "BOOL"
	case TokenNull:
		return "NULL"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenEQ:
		return "=="
	case TokenNE:
		return "!="
	case TokenSEQ:
		return "==="
	case TokenSNE:
		return "!=="
	case TokenLT:
		return "<"
	case TokenGT:
		return ">"
	case TokenLE:
		return "<="
	case TokenGE:
		return ">="
	case TokenAND:
		return "&&"
	case TokenOR:
		return "||"
	case TokenBang:
		return "!"
	case TokenQuestion:
		return "?"
	case TokenColon:
		return ":"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	case TokenDot:
		return "."
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in the input string
}

// isOperator reports whether the token counts against the operator budget.
func (t TokenType) isOperator() bool {
	switch t {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenEQ, TokenNE, TokenSEQ, TokenSNE,
		TokenLT, TokenGT, TokenLE, TokenGE,
		TokenAND, TokenOR, TokenBang, TokenQuestion:
		return true
	default:
		return false
	}
}

package expression

// Safety limits enforced before any AST is constructed. An expression
// that exceeds one of these is rejected with a LimitError.
const (
	MaxExpressionLength = 1000 // bytes
	MaxParenDepth       = 20
	MaxOperatorCount    = 100
	MaxCallCount        = 10
)

// checkLimits scans the raw expression with the lexer and enforces the
// safety limits. It never builds a tree, so a hostile expression is
// rejected at token cost only.
func checkLimits(input string) error {
	if len(input) > MaxExpressionLength {
		return NewLimitError("length", MaxExpressionLength, len(input))
	}

	lex := NewLexer(input)
	depth := 0
	maxDepth := 0
	operators := 0
	calls := 0

	prev := Token{Type: TokenEOF}
	for {
		tok := lex.NextToken()
		if tok.Type == TokenEOF {
			break
		}

		switch {
		case tok.Type == TokenLParen:
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			if prev.Type == TokenIdent {
				calls++
			}
		case tok.Type == TokenRParen:
			if depth > 0 {
				depth--
			}
		case tok.Type.isOperator():
			operators++
		}

		prev = tok
	}

	if maxDepth > MaxParenDepth {
		return NewLimitError("parenthesis depth", MaxParenDepth, maxDepth)
	}
	if operators > MaxOperatorCount {
		return NewLimitError("operator count", MaxOperatorCount, operators)
	}
	if calls > MaxCallCount {
		return NewLimitError("function call count", MaxCallCount, calls)
	}
	return nil
}

package expression

import (
	"strconv"
	"strings"
)

// Parser parses expression strings into AST.
//
// The grammar is a closed expression language: literals, dotted property
// paths rooted at the data/context namespaces, arithmetic, comparisons,
// logical operators, the ternary conditional, and calls of allow-listed
// helper functions. Identifiers outside those namespaces are rejected at
// parse time, so a hostile expression can never name process state.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// Parse parses the expression and returns the AST.
func (p *Parser) Parse() (*ExpressionAST, error) {
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// Ensure we've consumed all tokens
	if p.curToken.Type != TokenEOF {
		return nil, NewParseError(p.curToken.Pos, "end of expression", tokenDesc(p.curToken))
	}

	return &ExpressionAST{Root: node}, nil
}

// parseExpression parses an expression (conditional has the lowest precedence).
func (p *Parser) parseExpression() (Node, error) {
	return p.parseConditional()
}

// parseConditional parses ternary conditional expressions. The operator
// is right-associative.
func (p *Parser) parseConditional() (Node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.curToken.Type != TokenQuestion {
		return cond, nil
	}
	p.nextToken() // consume '?'

	thenNode, err := p.parseConditional()
	if err != nil {
		return nil, err
	}

	if p.curToken.Type != TokenColon {
		return nil, NewParseError(p.curToken.Pos, ":", tokenDesc(p.curToken))
	}
	p.nextToken() // consume ':'

	elseNode, err := p.parseConditional()
	if err != nil {
		return nil, err
	}

	return &ConditionalNode{Cond: cond, Then: thenNode, Else: elseNode}, nil
}

// parseOr parses || expressions.
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenOR {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseAnd parses && expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenAND {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseEquality parses loose and strict equality expressions.
func (p *Parser) parseEquality() (Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenEQ || p.curToken.Type == TokenNE ||
		p.curToken.Type == TokenSEQ || p.curToken.Type == TokenSNE {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseRelational parses ordering comparisons.
func (p *Parser) parseRelational() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenLT || p.curToken.Type == TokenGT ||
		p.curToken.Type == TokenLE || p.curToken.Type == TokenGE {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseAdditive parses + and - expressions.
func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenPlus || p.curToken.Type == TokenMinus {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseMultiplicative parses *, / and % expressions.
func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == TokenStar || p.curToken.Type == TokenSlash ||
		p.curToken.Type == TokenPercent {
		op := p.curToken.Type
		p.nextToken()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseUnary parses ! and unary - expressions. Both are right-associative.
func (p *Parser) parseUnary() (Node, error) {
	if p.curToken.Type == TokenBang || p.curToken.Type == TokenMinus {
		op := p.curToken.Type
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Operator: op, Operand: operand}, nil
	}

	return p.parsePrimary()
}

// parsePrimary parses literals, property paths, helper calls and
// parenthesized expressions.
func (p *Parser) parsePrimary() (Node, error) {
	switch p.curToken.Type {
	case TokenLParen:
		p.nextToken() // consume '('
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != TokenRParen {
			return nil, NewParseError(p.curToken.Pos, ")", tokenDesc(p.curToken))
		}
		p.nextToken() // consume ')'
		return expr, nil

	case TokenInt:
		val, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			return nil, NewExpressionError(p.curToken.Pos, "invalid integer: "+p.curToken.Literal, err)
		}
		node := &LiteralNode{Value: val}
		p.nextToken()
		return node, nil

	case TokenFloat:
		val, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, NewExpressionError(p.curToken.Pos, "invalid float: "+p.curToken.Literal, err)
		}
		node := &LiteralNode{Value: val}
		p.nextToken()
		return node, nil

	case TokenString:
		node := &LiteralNode{Value: p.curToken.Literal}
		p.nextToken()
		return node, nil

	case TokenBool:
		val := strings.ToLower(p.curToken.Literal) == "true"
		node := &LiteralNode{Value: val}
		p.nextToken()
		return node, nil

	case TokenNull:
		p.nextToken()
		return &LiteralNode{Value: nil}, nil

	case TokenIdent:
		return p.parseIdentOrCall()

	case TokenEOF:
		return nil, NewParseError(p.curToken.Pos, "expression", "end of input")

	default:
		return nil, NewParseError(p.curToken.Pos, "expression", tokenDesc(p.curToken))
	}
}

// parseIdentOrCall parses a helper call or a dotted property path and
// enforces the identifier policy.
func (p *Parser) parseIdentOrCall() (Node, error) {
	name := p.curToken.Literal
	pos := p.curToken.Pos

	// Call position: only allow-listed helpers may be called.
	if p.peekToken.Type == TokenLParen {
		if !isBuiltinFunction(name) {
			return nil, NewForbiddenIdentifierError(name, pos)
		}
		p.nextToken() // move to '('
		p.nextToken() // consume '('

		var args []Node
		if p.curToken.Type != TokenRParen {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.curToken.Type != TokenComma {
					break
				}
				p.nextToken() // consume ','
			}
		}

		if p.curToken.Type != TokenRParen {
			return nil, NewParseError(p.curToken.Pos, ")", tokenDesc(p.curToken))
		}
		p.nextToken() // consume ')'
		return &CallNode{Name: name, Args: args}, nil
	}

	// Property path: collect dotted segments.
	parts := []string{name}
	for p.peekToken.Type == TokenDot {
		p.nextToken() // move to '.'
		if p.peekToken.Type != TokenIdent {
			return nil, NewParseError(p.peekToken.Pos, "property name", tokenDesc(p.peekToken))
		}
		p.nextToken() // move to the segment
		parts = append(parts, p.curToken.Literal)
	}
	p.nextToken() // consume last segment

	// Paths resolve against the evaluation namespaces only.
	if parts[0] != NamespaceData && parts[0] != NamespaceContext {
		return nil, NewForbiddenIdentifierError(strings.Join(parts, "."), pos)
	}

	return &IdentifierNode{Parts: parts}, nil
}

// tokenDesc describes a token for parse error messages.
func tokenDesc(tok Token) string {
	if tok.Type == TokenEOF {
		return "end of input"
	}
	return tok.Literal
}

// ParseExpression checks the safety limits and parses an expression string.
func ParseExpression(input string) (*ExpressionAST, error) {
	if err := checkLimits(input); err != nil {
		return nil, err
	}
	parser := NewParser(input)
	return parser.Parse()
}

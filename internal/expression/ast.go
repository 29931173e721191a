package expression

// NodeType represents the type of an AST node.
type NodeType int

const (
	NodeTypeLiteral     NodeType = iota // Literal value (string, int, float, bool, null)
	NodeTypeIdentifier                  // Dotted property path rooted at a namespace
	NodeTypeUnary                       // Unary expression (!, -)
	NodeTypeBinary                      // Binary expression (arithmetic, comparison, logical)
	NodeTypeConditional                 // Ternary conditional (cond ? then : else)
	NodeTypeCall                        // Call of an allow-listed helper function
)

// String returns the string representation of the node type.
func (n NodeType) String() string {
	switch n {
	case NodeTypeLiteral:
		return "Literal"
	case NodeTypeIdentifier:
		return "Identifier"
	case NodeTypeUnary:
		return "Unary"
	case NodeTypeBinary:
		return "Binary"
	case NodeTypeConditional:
		return "Conditional"
	case NodeTypeCall:
		return "Call"
	default:
		return "Unknown"
	}
}

// Node represents a node in the AST. The node set is closed: evaluation
// is an exhaustive type switch over the types below.
type Node interface {
	nodeType() NodeType
}

// LiteralNode represents a literal value.
type LiteralNode struct {
	Value any // string, int64, float64, bool, or nil
}

func (n *LiteralNode) nodeType() NodeType { return NodeTypeLiteral }

// IdentifierNode represents a dotted property path. Parts[0] is the
// namespace root ("data" or "context").
type IdentifierNode struct {
	Parts []string
}

func (n *IdentifierNode) nodeType() NodeType { return NodeTypeIdentifier }

// Path returns the dotted form of the identifier.
func (n *IdentifierNode) Path() string {
	path := ""
	for i, p := range n.Parts {
		if i > 0 {
			path += "."
		}
		path += p
	}
	return path
}

// UnaryNode represents a unary expression.
type UnaryNode struct {
	Operator TokenType // TokenBang or TokenMinus
	Operand  Node
}

func (n *UnaryNode) nodeType() NodeType { return NodeTypeUnary }

// BinaryNode represents a binary expression.
type BinaryNode struct {
	Left     Node
	Operator TokenType
	Right    Node
}

func (n *BinaryNode) nodeType() NodeType { return NodeTypeBinary }

// ConditionalNode represents a ternary conditional expression.
type ConditionalNode struct {
	Cond Node
	Then Node
	Else Node
}

func (n *ConditionalNode) nodeType() NodeType { return NodeTypeConditional }

// CallNode represents a call of an allow-listed helper function.
type CallNode struct {
	Name string
	Args []Node
}

func (n *CallNode) nodeType() NodeType { return NodeTypeCall }

// ExpressionAST wraps the root node of an expression AST.
type ExpressionAST struct {
	Root Node
}

// Package parser implements a recursive-descent parser over the lexer's
// token stream, producing internal/ast trees. Grounded on the teacher's
// parser shape (a Parser struct holding tokens/pos, match/check/advance/
// expect helpers, one method per grammar rule), rewritten for KuMir's
// grammar instead of the teacher's own scripting language.
package parser

import (
	"strconv"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/lexer"
	"kumirc/internal/types"
)

// Parser consumes a token stream and builds an *ast.Block whose
// top-level statements are Use/VarDecl/FuncDecl nodes, the shape
// internal/pipeline and internal/lower require.
type Parser struct {
	tokens []lexer.Token
	pos    int
	file   string
	t      *types.Table

	// funcName is the name of the function body currently being
	// parsed, or "" at top level. Znach references inside a body
	// resolve to this name (§9's result-variable convention).
	funcName string
}

// Parse tokenizes src and parses it into a top-level *ast.Block.
func Parse(src, file string, t *types.Table) (*ast.Block, *diag.Diagnostic) {
	toks := lexer.NewScanner(src).ScanTokens()
	p := &Parser{tokens: toks, file: file, t: t}
	var stmts []ast.Node
	for !p.check(lexer.TokenEOF) {
		stmt, err := p.topLevel()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return ast.NewBlock(p.loc(), stmts, false), nil
}

func (p *Parser) topLevel() (ast.Node, *diag.Diagnostic) {
	switch p.peek().Type {
	case lexer.TokenUse:
		return p.useStmt()
	case lexer.TokenAlg:
		return p.funcDecl()
	case lexer.TokenTypeInt, lexer.TokenTypeFloat, lexer.TokenTypeBool, lexer.TokenTypeSymbol, lexer.TokenTypeString:
		return p.varDecl()
	case lexer.TokenSemi:
		p.advance()
		return nil, nil
	default:
		return nil, p.syntaxErr("unexpected top-level token %q", p.peek().Lexeme)
	}
}

func (p *Parser) useStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // использовать
	name, err := p.expect(lexer.TokenIdent, "module name")
	if err != nil {
		return nil, err
	}
	p.skip(lexer.TokenSemi)
	return ast.NewUse(loc, name.Lexeme), nil
}

// typeKeyword consumes one of the primitive type keywords and returns
// the interned element type.
func (p *Parser) typeKeyword() (*types.Type, *diag.Diagnostic) {
	tok := p.peek()
	var ty *types.Type
	switch tok.Type {
	case lexer.TokenTypeInt:
		ty = p.t.Int()
	case lexer.TokenTypeFloat:
		ty = p.t.Float()
	case lexer.TokenTypeBool:
		ty = p.t.Bool()
	case lexer.TokenTypeSymbol:
		ty = p.t.Symbol()
	case lexer.TokenTypeString:
		ty = p.t.String()
	default:
		return nil, p.syntaxErr("expected a type keyword, got %q", tok.Lexeme)
	}
	p.advance()
	return ty, nil
}

// varDecl parses "тип [таб] имя[bounds] (, имя[bounds])* [;]", usable
// both at module scope and inside a function body.
func (p *Parser) varDecl() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	elemType, err := p.typeKeyword()
	if err != nil {
		return nil, err
	}
	isTable := p.matchTok(lexer.TokenTable)

	var decls []ast.Node
	for {
		name, err := p.expect(lexer.TokenIdent, "variable name")
		if err != nil {
			return nil, err
		}
		vd := ast.NewVarDecl(loc, name.Lexeme, elemType)
		if isTable || p.check(lexer.TokenLBracket) {
			bounds, err := p.arrayBounds()
			if err != nil {
				return nil, err
			}
			vd.Bounds = bounds
		}
		decls = append(decls, vd)
		if !p.matchTok(lexer.TokenComma) {
			break
		}
	}
	p.skip(lexer.TokenSemi)
	if len(decls) == 1 {
		return decls[0], nil
	}
	return ast.NewVarsBlock(loc, decls), nil
}

// arrayBounds parses "[" lo ":" hi ("," lo ":" hi)* "]".
func (p *Parser) arrayBounds() ([]ast.ArrayBound, *diag.Diagnostic) {
	if _, err := p.expect(lexer.TokenLBracket, "'['"); err != nil {
		return nil, err
	}
	var bounds []ast.ArrayBound
	for {
		lo, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, "':'"); err != nil {
			return nil, err
		}
		hi, err := p.expr()
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, ast.ArrayBound{Lo: lo, Hi: hi})
		if !p.matchTok(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRBracket, "']'"); err != nil {
		return nil, err
	}
	return bounds, nil
}

// funcDecl parses "алг [тип] [имя] [( params )] нач stmts кон".
func (p *Parser) funcDecl() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // алг

	var retType *types.Type = p.t.Void()
	if isTypeKeyword(p.peek().Type) {
		var err *diag.Diagnostic
		retType, err = p.typeKeyword()
		if err != nil {
			return nil, err
		}
	}

	var name lexer.Token
	if p.check(lexer.TokenIdent) {
		name = p.advance()
	}

	var params []*ast.Param
	if p.matchTok(lexer.TokenLParen) {
		if !p.check(lexer.TokenRParen) {
			for {
				param, err := p.param()
				if err != nil {
					return nil, err
				}
				params = append(params, param)
				if !p.matchTok(lexer.TokenComma) {
					break
				}
			}
		}
		if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.TokenNach, "'нач'"); err != nil {
		return nil, err
	}

	prevFunc := p.funcName
	p.funcName = name.Lexeme
	body, err := p.stmtsUntil(lexer.TokenKon)
	p.funcName = prevFunc
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenKon, "'кон'"); err != nil {
		return nil, err
	}

	return ast.NewFuncDecl(loc, name.Lexeme, params, ast.NewBlock(loc, body, false), retType), nil
}

// param parses one "(арг|рез|арг рез) тип [таб] имя[bounds]" entry.
// Absent арг/рез defaults to арг, KuMir's own convention.
func (p *Parser) param() (*ast.Param, *diag.Diagnostic) {
	mode := ast.ParamIn
	sawArg, sawRes := false, false
	for p.check(lexer.TokenArg) || p.check(lexer.TokenRes) {
		if p.matchTok(lexer.TokenArg) {
			sawArg = true
		} else {
			p.advance()
			sawRes = true
		}
	}
	switch {
	case sawArg && sawRes:
		mode = ast.ParamInOut
	case sawRes:
		mode = ast.ParamOut
	default:
		mode = ast.ParamIn
	}

	elemType, err := p.typeKeyword()
	if err != nil {
		return nil, err
	}
	isTable := p.matchTok(lexer.TokenTable)
	name, err := p.expect(lexer.TokenIdent, "parameter name")
	if err != nil {
		return nil, err
	}
	param := &ast.Param{Name: name.Lexeme, Symbol: ast.NoSymbol, Type: elemType, Mode: mode}
	if isTable || p.check(lexer.TokenLBracket) {
		bounds, err := p.arrayBounds()
		if err != nil {
			return nil, err
		}
		param.Bounds = bounds
	}
	return param, nil
}

func isTypeKeyword(t lexer.TokenType) bool {
	switch t {
	case lexer.TokenTypeInt, lexer.TokenTypeFloat, lexer.TokenTypeBool, lexer.TokenTypeSymbol, lexer.TokenTypeString:
		return true
	default:
		return false
	}
}

// stmtsUntil parses statements until it sees (without consuming) one of
// the given terminator token types.
func (p *Parser) stmtsUntil(terminators ...lexer.TokenType) ([]ast.Node, *diag.Diagnostic) {
	var stmts []ast.Node
	for !p.atAny(terminators...) && !p.check(lexer.TokenEOF) {
		stmt, err := p.stmt()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func (p *Parser) atAny(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			return true
		}
	}
	return false
}

func (p *Parser) stmt() (ast.Node, *diag.Diagnostic) {
	switch p.peek().Type {
	case lexer.TokenSemi:
		p.advance()
		return nil, nil
	case lexer.TokenTypeInt, lexer.TokenTypeFloat, lexer.TokenTypeBool, lexer.TokenTypeSymbol, lexer.TokenTypeString:
		return p.varDecl()
	case lexer.TokenIf:
		return p.ifStmt()
	case lexer.TokenNc:
		return p.loopStmt()
	case lexer.TokenBreak:
		loc := p.loc()
		p.advance()
		p.skip(lexer.TokenSemi)
		return ast.NewBreak(loc), nil
	case lexer.TokenContinue:
		loc := p.loc()
		p.advance()
		p.skip(lexer.TokenSemi)
		return ast.NewContinue(loc), nil
	case lexer.TokenInput:
		return p.inputStmt()
	case lexer.TokenOutput:
		return p.outputStmt()
	case lexer.TokenAssert:
		return p.assertStmt()
	case lexer.TokenUse:
		return p.useStmt()
	case lexer.TokenIdent:
		return p.identStmt()
	default:
		return nil, p.syntaxErr("unexpected statement token %q", p.peek().Lexeme)
	}
}

// identStmt disambiguates an identifier-led statement: a bare call, a
// scalar assignment, or an array element assignment.
func (p *Parser) identStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	name := p.advance().Lexeme
	if name == lexer.Znach && p.funcName != "" {
		name = p.funcName
	}

	if p.check(lexer.TokenLBracket) {
		_, err := p.expect(lexer.TokenLBracket, "'['")
		if err != nil {
			return nil, err
		}
		var indices []ast.Node
		for {
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			indices = append(indices, idx)
			if !p.matchTok(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.expect(lexer.TokenRBracket, "']'"); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenAssign, "':='"); err != nil {
			return nil, err
		}
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skip(lexer.TokenSemi)
		return ast.NewArrayElemAssign(loc, name, indices, value), nil
	}

	if p.matchTok(lexer.TokenAssign) {
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skip(lexer.TokenSemi)
		return ast.NewAssign(loc, name, value), nil
	}

	// Bare call statement: имя(args).
	callee := ast.NewIdentifier(loc, name)
	var args []ast.Node
	if p.matchTok(lexer.TokenLParen) {
		if !p.check(lexer.TokenRParen) {
			for {
				arg, err := p.expr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.matchTok(lexer.TokenComma) {
					break
				}
			}
		}
		if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
			return nil, err
		}
	}
	p.skip(lexer.TokenSemi)
	return ast.NewCall(loc, callee, args), nil
}

func (p *Parser) ifStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // если
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenThen, "'то'"); err != nil {
		return nil, err
	}
	thenStmts, err := p.stmtsUntil(lexer.TokenElse, lexer.TokenFi)
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node
	if p.matchTok(lexer.TokenElse) {
		elseStmts, err := p.stmtsUntil(lexer.TokenFi)
		if err != nil {
			return nil, err
		}
		elseNode = ast.NewBlock(loc, elseStmts, false)
	}
	if _, err := p.expect(lexer.TokenFi, "'все'"); err != nil {
		return nil, err
	}
	return ast.NewIf(loc, cond, ast.NewBlock(loc, thenStmts, false), elseNode), nil
}

// loopStmt parses all three surface loop forms into one ast.Loop,
// matching the lowerer's unified Loop node (§4.4.1):
//
//	нц пока Cond стmts кц             -> PreCond
//	нц для id от lo до hi [шаг s] стmts кц -> PreBody/PreCond/PostBody
//	нц стmts кц_при Cond               -> PostCond
//	нц стmts кц                        -> infinite, Break is the only exit
func (p *Parser) loopStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // нц

	switch {
	case p.matchTok(lexer.TokenWhile):
		cond, err := p.expr()
		if err != nil {
			return nil, err
		}
		body, err := p.stmtsUntil(lexer.TokenKc)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenKc, "'кц'"); err != nil {
			return nil, err
		}
		return ast.NewLoop(loc, cond, nil, ast.NewBlock(loc, body, false), nil, nil), nil

	case p.matchTok(lexer.TokenFor):
		ident, err := p.expect(lexer.TokenIdent, "loop counter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenFrom, "'от'"); err != nil {
			return nil, err
		}
		from, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenToKw, "'до'"); err != nil {
			return nil, err
		}
		to, err := p.expr()
		if err != nil {
			return nil, err
		}
		var step ast.Node = ast.NewNumberLitInt(loc, 1)
		if p.matchTok(lexer.TokenStep) {
			step, err = p.exprInt()
			if err != nil {
				return nil, err
			}
		}
		body, err := p.stmtsUntil(lexer.TokenKc)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenKc, "'кц'"); err != nil {
			return nil, err
		}

		init := ast.NewAssign(loc, ident.Lexeme, from)
		counter := ast.NewIdentifier(loc, ident.Lexeme)
		cond := ast.NewBinary(loc, "<=", counter, to)
		next := ast.NewAssign(loc, ident.Lexeme,
			ast.NewBinary(loc, "+", ast.NewIdentifier(loc, ident.Lexeme), step))
		return ast.NewLoop(loc, cond, init, ast.NewBlock(loc, body, false), next, nil), nil

	default:
		body, err := p.stmtsUntil(lexer.TokenKc, lexer.TokenKcPri)
		if err != nil {
			return nil, err
		}
		if p.matchTok(lexer.TokenKcPri) {
			cond, err := p.expr()
			if err != nil {
				return nil, err
			}
			return ast.NewLoop(loc, nil, nil, ast.NewBlock(loc, body, false), nil, cond), nil
		}
		if _, err := p.expect(lexer.TokenKc, "'кц' or 'кц_при'"); err != nil {
			return nil, err
		}
		trueCond := ast.NewNumberLitInt(loc, 1)
		return ast.NewLoop(loc, trueCond, nil, ast.NewBlock(loc, body, false), nil, nil), nil
	}
}

// exprInt parses a unary-minus-aware simple expression, used for the
// loop step where KuMir allows a signed literal.
func (p *Parser) exprInt() (ast.Node, *diag.Diagnostic) {
	return p.unary()
}

func (p *Parser) inputStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // ввод
	var args []ast.Node
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.matchTok(lexer.TokenComma) {
			break
		}
	}
	p.skip(lexer.TokenSemi)
	return ast.NewInput(loc, args), nil
}

func (p *Parser) outputStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // вывод
	var args []ast.Node
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.matchTok(lexer.TokenComma) {
			break
		}
	}
	p.skip(lexer.TokenSemi)
	return ast.NewOutput(loc, args), nil
}

func (p *Parser) assertStmt() (ast.Node, *diag.Diagnostic) {
	loc := p.loc()
	p.advance() // утв
	start := p.pos
	expr, err := p.expr()
	if err != nil {
		return nil, err
	}
	text := p.sourceSpan(start, p.pos)
	p.skip(lexer.TokenSemi)
	return ast.NewAssert(loc, expr, text), nil
}

// sourceSpan reconstructs the lexemes between two token indices, used
// only to capture the assert's original text for diagnostics.
func (p *Parser) sourceSpan(from, to int) string {
	var out string
	for i := from; i < to && i < len(p.tokens); i++ {
		if i > from {
			out += " "
		}
		out += p.tokens[i].Lexeme
	}
	return out
}

// ---- Expressions, precedence climbing ---------------------------------

func (p *Parser) expr() (ast.Node, *diag.Diagnostic) {
	return p.orExpr()
}

func (p *Parser) orExpr() (ast.Node, *diag.Diagnostic) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.matchTok(lexer.TokenOr) {
		loc := p.loc()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(loc, "||", left, right)
	}
	return left, nil
}

func (p *Parser) andExpr() (ast.Node, *diag.Diagnostic) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.matchTok(lexer.TokenAnd) {
		loc := p.loc()
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(loc, "&&", left, right)
	}
	return left, nil
}

func (p *Parser) notExpr() (ast.Node, *diag.Diagnostic) {
	if p.check(lexer.TokenNot) {
		loc := p.loc()
		p.advance()
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(loc, "!", operand), nil
	}
	return p.comparison()
}

var cmpOps = map[lexer.TokenType]string{
	lexer.TokenLt: "<", lexer.TokenLe: "<=",
	lexer.TokenGt: ">", lexer.TokenGe: ">=",
	lexer.TokenEq: "==", lexer.TokenNe: "!=",
}

func (p *Parser) comparison() (ast.Node, *diag.Diagnostic) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	if op, ok := cmpOps[p.peek().Type]; ok {
		loc := p.loc()
		p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(loc, op, left, right), nil
	}
	return left, nil
}

func (p *Parser) additive() (ast.Node, *diag.Diagnostic) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := "+"
		if p.peek().Type == lexer.TokenMinus {
			op = "-"
		}
		loc := p.loc()
		p.advance()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(loc, op, left, right)
	}
	return left, nil
}

func (p *Parser) multiplicative() (ast.Node, *diag.Diagnostic) {
	left, err := p.power()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) || p.check(lexer.TokenPercent) {
		var op string
		switch p.peek().Type {
		case lexer.TokenStar:
			op = "*"
		case lexer.TokenSlash:
			op = "/"
		default:
			op = "%"
		}
		loc := p.loc()
		p.advance()
		right, err := p.power()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(loc, op, left, right)
	}
	return left, nil
}

func (p *Parser) power() (ast.Node, *diag.Diagnostic) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	if p.matchTok(lexer.TokenCaret) {
		loc := p.loc()
		right, err := p.power() // right-associative
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(loc, "^", left, right), nil
	}
	return left, nil
}

func (p *Parser) unary() (ast.Node, *diag.Diagnostic) {
	if p.check(lexer.TokenMinus) {
		loc := p.loc()
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(loc, "-", operand), nil
	}
	return p.primary()
}

func (p *Parser) primary() (ast.Node, *diag.Diagnostic) {
	tok := p.peek()
	loc := p.loc()
	switch tok.Type {
	case lexer.TokenInt:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
		return ast.NewNumberLitInt(loc, v), nil
	case lexer.TokenFloat:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return ast.NewNumberLitFloat(loc, v), nil
	case lexer.TokenStr:
		p.advance()
		return ast.NewStringLit(loc, []byte(tok.Lexeme)), nil
	case lexer.TokenTrue:
		p.advance()
		return ast.NewNumberLitInt(loc, 1), nil
	case lexer.TokenFalse:
		p.advance()
		return ast.NewNumberLitInt(loc, 0), nil
	case lexer.TokenLParen:
		p.advance()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.TokenIdent:
		p.advance()
		name := tok.Lexeme
		if name == lexer.Znach && p.funcName != "" {
			name = p.funcName
		}
		if p.matchTok(lexer.TokenLParen) {
			var args []ast.Node
			if !p.check(lexer.TokenRParen) {
				for {
					arg, err := p.expr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.matchTok(lexer.TokenComma) {
						break
					}
				}
			}
			if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
				return nil, err
			}
			return ast.NewCall(loc, ast.NewIdentifier(loc, name), args), nil
		}
		if p.matchTok(lexer.TokenLBracket) {
			var indices []ast.Node
			for {
				idx, err := p.expr()
				if err != nil {
					return nil, err
				}
				indices = append(indices, idx)
				if !p.matchTok(lexer.TokenComma) {
					break
				}
			}
			if _, err := p.expect(lexer.TokenRBracket, "']'"); err != nil {
				return nil, err
			}
			id := ast.NewIdentifier(loc, name)
			if len(indices) == 1 {
				return ast.NewIndex(loc, id, indices[0]), nil
			}
			return ast.NewMultiIndex(loc, id, indices), nil
		}
		return ast.NewIdentifier(loc, name), nil
	default:
		return nil, p.syntaxErr("unexpected token %q in expression", tok.Lexeme)
	}
}

// ---- Token-stream primitives --------------------------------------------

func (p *Parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) matchTok(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

// skip consumes an optional token, used for KuMir's optional statement
// terminators.
func (p *Parser) skip(t lexer.TokenType) { p.matchTok(t) }

func (p *Parser) expect(t lexer.TokenType, what string) (lexer.Token, *diag.Diagnostic) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.syntaxErr("expected %s, got %q", what, p.peek().Lexeme)
}

func (p *Parser) loc() diag.Location {
	tok := p.peek()
	return diag.Location{File: p.file, Line: tok.Line, Column: tok.Col}
}

func (p *Parser) syntaxErr(format string, args ...interface{}) *diag.Diagnostic {
	return diag.New(diag.Syntax, p.loc(), format, args...)
}

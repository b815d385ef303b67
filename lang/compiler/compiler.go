package compiler

import (
	"fmt"

	"github.com/mna/eclox/lang/scanner"
	"github.com/mna/eclox/lang/token"
)

// precedence is the Pratt parser's precedence ladder, low to high.
type precedence uint8

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type (
	prefixFn func(p *parser, canAssign bool)
	infixFn  func(p *parser, canAssign bool)
)

type parseRule struct {
	prefix     prefixFn
	infix      infixFn
	precedence precedence
}

var rules map[token.Token]parseRule

func init() {
	rules = map[token.Token]parseRule{
		token.LPAREN:  {prefix: (*parser).grouping, infix: (*parser).call, precedence: precCall},
		token.MINUS:   {prefix: (*parser).unary, infix: (*parser).binary, precedence: precTerm},
		token.PLUS:    {infix: (*parser).binary, precedence: precTerm},
		token.SLASH:   {infix: (*parser).binary, precedence: precFactor},
		token.STAR:    {infix: (*parser).binary, precedence: precFactor},
		token.BANG:    {prefix: (*parser).unary},
		token.BANG_EQ: {infix: (*parser).binary, precedence: precEquality},
		token.EQ_EQ:   {infix: (*parser).binary, precedence: precEquality},
		token.GT:      {infix: (*parser).binary, precedence: precComparison},
		token.GT_EQ:   {infix: (*parser).binary, precedence: precComparison},
		token.LT:      {infix: (*parser).binary, precedence: precComparison},
		token.LT_EQ:   {infix: (*parser).binary, precedence: precComparison},
		token.IDENT:   {prefix: (*parser).variable},
		token.STRING:  {prefix: (*parser).string},
		token.NUMBER:  {prefix: (*parser).number},
		token.AND:     {infix: (*parser).and, precedence: precAnd},
		token.OR:      {infix: (*parser).or, precedence: precOr},
		token.TRUE:    {prefix: (*parser).literal},
		token.FALSE:   {prefix: (*parser).literal},
		token.NIL:     {prefix: (*parser).literal},
	}
}

func ruleFor(tok token.Token) parseRule { return rules[tok] }

// functionType distinguishes a top-level script compile context from a
// named function's.
type functionType int

const (
	typeFunction functionType = iota
	typeScript
)

// local tracks one declared local variable's name and the scope depth it
// was declared at; depth -1 means "declared but not yet initialized", so
// that reading a local inside its own initializer can be rejected.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// compilerCtx is one function's compile-time context; contexts chain via
// enclosing while nested function declarations compile, and upvalue
// resolution walks that chain.
type compilerCtx struct {
	enclosing *compilerCtx
	proto     *FunctionProto
	typ       functionType

	locals     [MaxLocals]local
	localCount int
	upvalues   [MaxUpvalues]UpvalueRef
	scopeDepth int
}

// parser holds the single-pass parsing state: current/previous token,
// error/panic tracking, and the active compiler context stack.
type parser struct {
	scanner    scanner.Scanner
	errs       scanner.ErrorList
	current    token.Value
	currentTk  token.Token
	previous   token.Value
	previousTk token.Token

	hadError  bool
	panicMode bool

	cur *compilerCtx
}

// Compile compiles source into a top-level FunctionProto ready to be loaded
// into a VM, or returns the accumulated compile errors. dialect selects the
// keyword table the scanner uses.
func Compile(source string, dialect token.Dialect) (*FunctionProto, error) {
	var p parser
	p.scanner.Init(source, dialect, p.errs.Add)
	p.initCompiler(typeScript, "")

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	proto := p.endCompiler()

	if p.hadError {
		return nil, p.errs.Err()
	}
	return proto, nil
}

func (p *parser) initCompiler(typ functionType, name string) {
	ctx := &compilerCtx{
		enclosing: p.cur,
		typ:       typ,
		proto:     &FunctionProto{Name: name},
	}
	// Slot 0 is reserved for the callee itself.
	ctx.locals[0] = local{name: "", depth: 0}
	ctx.localCount = 1
	p.cur = ctx
}

func (p *parser) endCompiler() *FunctionProto {
	p.emitReturn()
	ctx := p.cur
	ctx.proto.Upvalues = append([]UpvalueRef(nil), ctx.upvalues[:ctx.proto.UpvalueCount]...)
	p.cur = ctx.enclosing
	return ctx.proto
}

func (p *parser) chunk() *Chunk { return &p.cur.proto.Chunk }

// --- token stream plumbing ---

func (p *parser) advance() {
	p.previous = p.current
	p.previousTk = p.currentTk

	for {
		p.currentTk = p.scanner.Scan(&p.current)
		if p.currentTk != token.ILLEGAL {
			break
		}
		// the scanner already recorded the error through the shared list;
		// enter panic mode and keep consuming until a clean token
		p.hadError = true
		p.panicMode = true
	}
}

func (p *parser) check(tok token.Token) bool { return p.currentTk == tok }

func (p *parser) match(tok token.Token) bool {
	if !p.check(tok) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(tok token.Token, msg string) {
	if p.currentTk == tok {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, p.currentTk, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, p.previousTk, msg) }

func (p *parser) errorAt(val token.Value, tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := ""
	if tok == token.EOF {
		where = " at end"
	} else {
		where = fmt.Sprintf(" at '%s'", val.Raw)
	}
	p.errs.AddAt(int(val.Pos), where, msg)
	p.hadError = true
}

func (p *parser) synchronize() {
	p.panicMode = false

	for p.currentTk != token.EOF {
		if p.previousTk == token.SEMI {
			return
		}
		switch p.currentTk {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF,
			token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}

// --- bytecode emission ---

func (p *parser) emitByte(b byte) { p.chunk().Write(b, int(p.previous.Pos)) }

func (p *parser) emitOp(op Opcode) { p.emitByte(byte(op)) }

func (p *parser) emitOpByte(op Opcode, b byte) {
	p.emitByte(byte(op))
	p.emitByte(b)
}

func (p *parser) emitReturn() {
	p.emitOp(OP_NIL)
	p.emitOp(OP_RETURN)
}

func (p *parser) makeConstant(v any) byte {
	idx := p.chunk().AddConstant(v)
	if idx > MaxConstants-1 {
		p.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (p *parser) emitConstant(v any) { p.emitOpByte(OP_CONSTANT, p.makeConstant(v)) }

// emitJump writes a jump opcode with a 2-byte placeholder operand and
// returns the offset of the first placeholder byte, to later be patched by
// patchJump.
func (p *parser) emitJump(op Opcode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.chunk().Count() - 2
}

func (p *parser) patchJump(offset int) {
	jump := p.chunk().Count() - offset - 2
	if jump > 0xffff {
		p.error("too much code to jump over")
	}
	p.chunk().Code[offset] = byte(jump >> 8)
	p.chunk().Code[offset+1] = byte(jump)
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(OP_LOOP)
	offset := p.chunk().Count() - loopStart + 2
	if offset > 0xffff {
		p.error("loop body too large")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

// --- declarations & statements ---

func (p *parser) declaration() {
	switch {
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}

	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(token.SEMI, "expect ';' after value")
	p.emitOp(OP_PRINT)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMI, "expect ';' after expression")
	p.emitOp(OP_POP)
}

func (p *parser) ifStatement() {
	p.consume(token.LPAREN, "expect '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	thenJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emitOp(OP_POP)
	p.statement()

	elseJump := p.emitJump(OP_JUMP)
	p.patchJump(thenJump)
	p.emitOp(OP_POP)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := p.chunk().Count()
	p.consume(token.LPAREN, "expect '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emitOp(OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(OP_POP)
}

// forStatement desugars "for (init; cond; incr) body" into the scoped
// "{ init; while (cond) { body; incr } }" form by rewiring jump targets
// rather than literally building nested statements.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expect '(' after 'for'")

	switch {
	case p.match(token.SEMI):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.chunk().Count()
	exitJump := -1
	if !p.match(token.SEMI) {
		p.expression()
		p.consume(token.SEMI, "expect ';' after loop condition")

		exitJump = p.emitJump(OP_JUMP_IF_FALSE)
		p.emitOp(OP_POP)
	}

	if !p.match(token.RPAREN) {
		bodyJump := p.emitJump(OP_JUMP)

		incrementStart := p.chunk().Count()
		p.expression()
		p.emitOp(OP_POP)
		p.consume(token.RPAREN, "expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(OP_POP)
	}

	p.endScope()
}

func (p *parser) returnStatement() {
	if p.cur.typ == typeScript {
		p.error("can't return from top-level code")
	}

	if p.match(token.SEMI) {
		p.emitReturn()
		return
	}
	p.expression()
	p.consume(token.SEMI, "expect ';' after return value")
	p.emitOp(OP_RETURN)
}

func (p *parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expect '}' after block")
}

func (p *parser) beginScope() { p.cur.scopeDepth++ }

// endScope pops every local declared in the scope being exited, emitting
// CLOSE_UPVALUE for locals that were captured by a nested closure and POP
// otherwise.
func (p *parser) endScope() {
	p.cur.scopeDepth--

	for p.cur.localCount > 0 &&
		p.cur.locals[p.cur.localCount-1].depth > p.cur.scopeDepth {
		if p.cur.locals[p.cur.localCount-1].isCaptured {
			p.emitOp(OP_CLOSE_UPVALUE)
		} else {
			p.emitOp(OP_POP)
		}
		p.cur.localCount--
	}
}

func (p *parser) varDeclaration() {
	global := p.parseVariable("expect variable name")

	if p.match(token.EQ) {
		p.expression()
	} else {
		p.emitOp(OP_NIL)
	}
	p.consume(token.SEMI, "expect ';' after variable declaration")
	p.defineVariable(global)
}

// funDeclaration compiles "fun name(params) { body }". markInitialized is
// called before compiling the body so the function can refer to itself
// recursively.
func (p *parser) funDeclaration() {
	global := p.parseVariable("expect function name")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

func (p *parser) function(typ functionType) {
	name := p.previous.Raw
	p.initCompiler(typ, name)
	p.beginScope()

	p.consume(token.LPAREN, "expect '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			p.cur.proto.Arity++
			if p.cur.proto.Arity > MaxParams {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := p.parseVariable("expect parameter name")
			p.defineVariable(constant)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after parameters")
	p.consume(token.LBRACE, "expect '{' before function body")
	p.block()

	proto := p.endCompiler()
	p.emitOpByte(OP_CLOSURE, p.makeConstant(proto))
	for _, uv := range proto.Upvalues {
		if uv.IsLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.Index)
	}
}

// --- variables ---

func (p *parser) parseVariable(errMsg string) byte {
	p.consume(token.IDENT, errMsg)

	p.declareVariable()
	if p.cur.scopeDepth > 0 {
		return 0 // locals aren't looked up by name at runtime
	}
	return p.identifierConstant(p.previous.Raw)
}

func (p *parser) identifierConstant(name string) byte { return p.makeConstant(name) }

func (p *parser) declareVariable() {
	if p.cur.scopeDepth == 0 {
		return
	}

	name := p.previous.Raw
	for i := p.cur.localCount - 1; i >= 0; i-- {
		l := &p.cur.locals[i]
		if l.depth != -1 && l.depth < p.cur.scopeDepth {
			break
		}
		if l.name == name {
			p.error("already a variable with this name in this scope")
		}
	}
	p.addLocal(name)
}

func (p *parser) addLocal(name string) {
	if p.cur.localCount == MaxLocals {
		p.error("too many local variables in function")
		return
	}
	p.cur.locals[p.cur.localCount] = local{name: name, depth: -1}
	p.cur.localCount++
}

func (p *parser) markInitialized() {
	if p.cur.scopeDepth == 0 {
		return
	}
	p.cur.locals[p.cur.localCount-1].depth = p.cur.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.cur.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(OP_DEFINE_GLOBAL, global)
}

// resolveLocal scans ctx's locals top-down for a name match, as required so
// that shadowing favors the innermost declaration.
func resolveLocal(ctx *compilerCtx, name string) int {
	for i := ctx.localCount - 1; i >= 0; i-- {
		l := &ctx.locals[i]
		if l.name == name {
			if l.depth == -1 {
				return -2 // sentinel: read in its own initializer
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue looks for name as a local of the enclosing function first
// (capturing it), else recurses into the enclosing function's own
// upvalues; -1 means the name must be a global.
func (p *parser) resolveUpvalue(ctx *compilerCtx, name string) int {
	if ctx.enclosing == nil {
		return -1
	}

	if local := resolveLocal(ctx.enclosing, name); local >= 0 {
		ctx.enclosing.locals[local].isCaptured = true
		return p.addUpvalue(ctx, byte(local), true)
	} else if local == -2 {
		return -2
	}

	if upvalue := p.resolveUpvalue(ctx.enclosing, name); upvalue >= 0 {
		return p.addUpvalue(ctx, byte(upvalue), false)
	} else if upvalue == -2 {
		return -2
	}

	return -1
}

// addUpvalue records a captured variable in ctx's upvalue array,
// deduplicating by (index, isLocal) so a function closing over the same
// variable twice shares one cell.
func (p *parser) addUpvalue(ctx *compilerCtx, index byte, isLocal bool) int {
	count := ctx.proto.UpvalueCount
	for i := 0; i < count; i++ {
		uv := ctx.upvalues[i]
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}

	if count == MaxUpvalues {
		p.error("too many closure variables in function")
		return 0
	}

	ctx.upvalues[count] = UpvalueRef{Index: index, IsLocal: isLocal}
	ctx.proto.UpvalueCount++
	return count
}

func (p *parser) variable(canAssign bool) { p.namedVariable(p.previous.Raw, canAssign) }

func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp Opcode
	arg := resolveLocal(p.cur, name)
	switch arg {
	case -2:
		p.error(fmt.Sprintf("can't read local variable %q in its own initializer", name))
		arg = 0
		getOp, setOp = OP_GET_LOCAL, OP_SET_LOCAL
	case -1:
		if uv := p.resolveUpvalue(p.cur, name); uv == -2 {
			p.error(fmt.Sprintf("can't read local variable %q in its own initializer", name))
			arg, getOp, setOp = 0, OP_GET_UPVALUE, OP_SET_UPVALUE
		} else if uv >= 0 {
			arg, getOp, setOp = uv, OP_GET_UPVALUE, OP_SET_UPVALUE
		} else {
			arg, getOp, setOp = int(p.identifierConstant(name)), OP_GET_GLOBAL, OP_SET_GLOBAL
		}
	default:
		getOp, setOp = OP_GET_LOCAL, OP_SET_LOCAL
	}

	if canAssign && p.match(token.EQ) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

// --- expressions ---

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := ruleFor(p.previousTk)
	if rule.prefix == nil {
		p.error("expect expression")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= ruleFor(p.currentTk).precedence {
		p.advance()
		ruleFor(p.previousTk).infix(p, canAssign)
	}

	if canAssign && p.match(token.EQ) {
		p.error("invalid assignment target")
	}
}

func (p *parser) number(_ bool) {
	p.emitConstant(p.previous.Number)
}

func (p *parser) string(_ bool) {
	p.emitConstant(p.previous.Str)
}

func (p *parser) literal(_ bool) {
	switch p.previousTk {
	case token.FALSE:
		p.emitOp(OP_FALSE)
	case token.NIL:
		p.emitOp(OP_NIL)
	case token.TRUE:
		p.emitOp(OP_TRUE)
	}
}

func (p *parser) grouping(_ bool) {
	p.expression()
	p.consume(token.RPAREN, "expect ')' after expression")
}

func (p *parser) unary(_ bool) {
	opTk := p.previousTk
	p.parsePrecedence(precUnary)

	switch opTk {
	case token.BANG:
		p.emitOp(OP_NOT)
	case token.MINUS:
		p.emitOp(OP_NEGATE)
	}
}

func (p *parser) binary(_ bool) {
	opTk := p.previousTk
	rule := ruleFor(opTk)
	p.parsePrecedence(rule.precedence + 1)

	switch opTk {
	case token.BANG_EQ:
		p.emitOp(OP_EQUAL)
		p.emitOp(OP_NOT)
	case token.EQ_EQ:
		p.emitOp(OP_EQUAL)
	case token.GT:
		p.emitOp(OP_GREATER)
	case token.GT_EQ:
		p.emitOp(OP_LESS)
		p.emitOp(OP_NOT)
	case token.LT:
		p.emitOp(OP_LESS)
	case token.LT_EQ:
		p.emitOp(OP_GREATER)
		p.emitOp(OP_NOT)
	case token.PLUS:
		p.emitOp(OP_ADD)
	case token.MINUS:
		p.emitOp(OP_SUBTRACT)
	case token.STAR:
		p.emitOp(OP_MULTIPLY)
	case token.SLASH:
		p.emitOp(OP_DIVIDE)
	}
}

func (p *parser) and(_ bool) {
	endJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emitOp(OP_POP)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *parser) or(_ bool) {
	elseJump := p.emitJump(OP_JUMP_IF_FALSE)
	endJump := p.emitJump(OP_JUMP)

	p.patchJump(elseJump)
	p.emitOp(OP_POP)

	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) call(_ bool) {
	argCount := p.argumentList()
	p.emitOpByte(OP_CALL, argCount)
}

func (p *parser) argumentList() byte {
	var count int
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if count == MaxArgs {
				p.error("can't have more than 255 arguments")
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after arguments")
	return byte(count)
}

package ilerr

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cottand/bamlc/frontend/ast"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
const enableDebugErrorPrinting bool = false
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	Parse
	UndefinedType
	DuplicateName
	AliasCycle
	ClassCycle
	CheckWithoutLabel
	InvalidMapKey
	UnknownAttribute
	UndefinedReference
	EmptyConstraint
	InvalidRetryPolicy
	InvalidExpression
)

type IleError interface {
	Error() string
	Code() ErrCode
	ast.Positioner

	withStack([]byte) IleError
	getStack() []byte
}

func FormatWithCode(e IleError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			stack = strings.Split(stack, "\n")[6]
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// FormatWithSource prefixes the error with its file:line:col when schema knows where it came from
func FormatWithSource(e IleError, schema *ast.Schema) string {
	pos := schema.Position(e)
	if !pos.IsValid() {
		return FormatWithCode(e)
	}
	return fmt.Sprintf("%s: %s", pos, FormatWithCode(e))
}

func New[E IleError](err E) IleError {
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From error
	ast.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewParse struct {
	ast.Positioner
	ParserMessage string
	Hint          string
	stack         []byte
}

func (e NewParse) Error() string {
	if e.Hint != "" {
		return e.ParserMessage + " (" + e.Hint + ")"
	}
	return e.ParserMessage
}
func (e NewParse) Code() ErrCode    { return Parse }
func (e NewParse) getStack() []byte { return e.stack }
func (e NewParse) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUndefinedType struct {
	ast.Positioner
	Name        string
	Suggestions []string
	stack       []byte
}

func (e NewUndefinedType) Code() ErrCode { return UndefinedType }
func (e NewUndefinedType) Error() string {
	msg := fmt.Sprintf("type '%s' is not defined", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean '%s'?)", strings.Join(e.Suggestions, "', '"))
	}
	return msg
}
func (e NewUndefinedType) getStack() []byte { return e.stack }
func (e NewUndefinedType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewDuplicateName struct {
	ast.Positioner
	Name  string
	Kind  ast.DeclKind
	First ast.DeclKind
	stack []byte
}

func (e NewDuplicateName) Code() ErrCode { return DuplicateName }
func (e NewDuplicateName) Error() string {
	if e.Kind == e.First {
		return fmt.Sprintf("%s '%s' is declared more than once", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s '%s' has the same name as an existing %s", e.Kind, e.Name, e.First)
}
func (e NewDuplicateName) getStack() []byte { return e.stack }
func (e NewDuplicateName) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAliasCycle struct {
	ast.Positioner
	Names []string
	stack []byte
}

func (e NewAliasCycle) Code() ErrCode { return AliasCycle }
func (e NewAliasCycle) Error() string {
	return fmt.Sprintf("these aliases form a dependency cycle: %s", strings.Join(e.Names, " -> ")+" -> "+e.Names[0])
}
func (e NewAliasCycle) getStack() []byte { return e.stack }
func (e NewAliasCycle) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewClassCycle struct {
	ast.Positioner
	Names []string
	stack []byte
}

func (e NewClassCycle) Code() ErrCode { return ClassCycle }
func (e NewClassCycle) Error() string {
	return fmt.Sprintf("these classes form a dependency cycle: %s", strings.Join(e.Names, " -> ")+" -> "+e.Names[0])
}
func (e NewClassCycle) getStack() []byte { return e.stack }
func (e NewClassCycle) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewCheckWithoutLabel struct {
	ast.Positioner
	Expression string
	stack      []byte
}

func (e NewCheckWithoutLabel) Code() ErrCode { return CheckWithoutLabel }
func (e NewCheckWithoutLabel) Error() string {
	return fmt.Sprintf("@check({{ %s }}) needs a label, like @check(my_label, {{ %s }})", e.Expression, e.Expression)
}
func (e NewCheckWithoutLabel) getStack() []byte { return e.stack }
func (e NewCheckWithoutLabel) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidMapKey struct {
	ast.Positioner
	KeyType string
	stack   []byte
}

func (e NewInvalidMapKey) Code() ErrCode { return InvalidMapKey }
func (e NewInvalidMapKey) Error() string {
	return fmt.Sprintf("map keys must be string, an enum or string literals, found '%s'", e.KeyType)
}
func (e NewInvalidMapKey) getStack() []byte { return e.stack }
func (e NewInvalidMapKey) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnknownAttribute struct {
	ast.Positioner
	Name  string
	On    string
	stack []byte
}

func (e NewUnknownAttribute) Code() ErrCode { return UnknownAttribute }
func (e NewUnknownAttribute) Error() string {
	return fmt.Sprintf("attribute '@%s' is not allowed on %s", e.Name, e.On)
}
func (e NewUnknownAttribute) getStack() []byte { return e.stack }
func (e NewUnknownAttribute) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUndefinedReference struct {
	ast.Positioner
	Name        string
	Kind        ast.DeclKind
	From        string
	Suggestions []string
	stack       []byte
}

func (e NewUndefinedReference) Code() ErrCode { return UndefinedReference }
func (e NewUndefinedReference) Error() string {
	msg := fmt.Sprintf("%s '%s' referenced by '%s' is not defined", e.Kind, e.Name, e.From)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean '%s'?)", strings.Join(e.Suggestions, "', '"))
	}
	return msg
}
func (e NewUndefinedReference) getStack() []byte { return e.stack }
func (e NewUndefinedReference) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewEmptyConstraint struct {
	ast.Positioner
	Attribute string
	stack     []byte
}

func (e NewEmptyConstraint) Code() ErrCode { return EmptyConstraint }
func (e NewEmptyConstraint) Error() string {
	return fmt.Sprintf("@%s has an empty expression", e.Attribute)
}
func (e NewEmptyConstraint) getStack() []byte { return e.stack }
func (e NewEmptyConstraint) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidRetryPolicy struct {
	ast.Positioner
	Name   string
	Reason string
	stack  []byte
}

func (e NewInvalidRetryPolicy) Code() ErrCode { return InvalidRetryPolicy }
func (e NewInvalidRetryPolicy) Error() string {
	return fmt.Sprintf("retry policy '%s' is invalid: %s", e.Name, e.Reason)
}
func (e NewInvalidRetryPolicy) getStack() []byte { return e.stack }
func (e NewInvalidRetryPolicy) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidExpression struct {
	ast.Positioner
	Attribute string
	Cause     error
	stack     []byte
}

func (e NewInvalidExpression) Code() ErrCode { return InvalidExpression }
func (e NewInvalidExpression) Error() string {
	return fmt.Sprintf("invalid expression in @%s: %v", e.Attribute, e.Cause)
}
func (e NewInvalidExpression) getStack() []byte { return e.stack }
func (e NewInvalidExpression) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

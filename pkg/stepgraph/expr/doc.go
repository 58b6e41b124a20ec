/*
Package expr evaluates small arithmetic and boolean expressions over state
values.

# Overview

Expressions are compiled once and evaluated against a map of variables,
normally state.State.Values(). The same grammar serves conditional routing
("risk == 'high'") and calculator tools ("(2 + 3) * 4").

# Expression Syntax

	<expr>    := <and> { ('or' | '||') <and> }
	<and>     := <not> { ('and' | '&&') <not> }
	<not>     := ('not' | '!') <not> | <cmp>
	<cmp>     := <sum> [ <op> <sum> ]
	<op>      := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<sum>     := <term> { ('+' | '-') <term> }
	<term>    := <unary> { ('*' | '/' | '%') <unary> }
	<unary>   := '-' <unary> | <primary>
	<primary> := number | 'string' | "string" | true | false | null | nil
	           | identifier | '(' <expr> ')'

Identifiers may contain dots to reach into nested maps: "doc.title".
Unknown identifiers evaluate to null.

# Operators

	==  !=     equality; numbers compare numerically, everything else by
	           its %v form
	< > <= >=  numeric comparison, both sides must be numbers
	contains   substring test on the %v forms
	+          numeric addition, or concatenation when both sides are strings
	- * / %    numeric; division or modulo by zero is ErrDivisionByZero

Every number is a float64 during evaluation.

# Examples

	ok, _ := expr.Bool("status == 'ready' and count > 0", vars)

	n, _ := expr.Number("10 / 4", nil) // 2.5

	e := expr.MustCompile("score >= 0.5")
	v, _ := e.Eval(s.Values())

# Truthiness

Bool applies truthiness to the result:

  - nil/null: false
  - bool: the boolean value
  - string: false if empty, true otherwise
  - numbers: false if zero, true otherwise
  - other types: true
*/
package expr

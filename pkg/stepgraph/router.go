package stepgraph

import (
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// When returns a router that picks then if condition is truthy over the
// state's fields and otherwise if not. See package expr for the syntax.
//
// The condition is compiled immediately; a syntax error panics, like other
// builder misuse. The router is opaque to Compile, so field names are not
// checked and an evaluation error at run time panics inside the router,
// aborting the run with a *PanicError. Graph.AddConditionEdge checks the
// condition at Compile and reports evaluation errors as *ConditionError;
// use When for routers composed in Go code.
//
// Example:
//
//	g.AddConditionalEdge(analyze, stepgraph.When("risk == 'high'", "review", "auto"),
//	    map[string]stepgraph.StepID{"review": review, "auto": transform})
func When(condition, then, otherwise string) RouterFunc {
	e := expr.MustCompile(condition)
	return func(_ Context, s state.State) string {
		ok, err := e.Bool(s.Values())
		if err != nil {
			panic(err)
		}
		if ok {
			return then
		}
		return otherwise
	}
}

package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		stepgraph.NewGraph(benchSchema)
	}
}

// BenchmarkAddStep measures step registration.
func BenchmarkAddStep(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("steps=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				g := stepgraph.NewGraph(benchSchema)
				for j := 0; j < n; j++ {
					g.AddStep(stepID(j), increment)
				}
			}
		})
	}
}

// BenchmarkCompile_Linear compiles linear graphs of increasing length.
func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprintf("steps=%d", n), func(b *testing.B) {
			g := buildLinearGraph(n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = g.Compile()
			}
		})
	}
}

// BenchmarkCompile_Branching compiles a graph with conditional edges.
func BenchmarkCompile_Branching(b *testing.B) {
	g := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Compile()
	}
}

// BenchmarkWhen measures routing through a compiled expression.
func BenchmarkWhen(b *testing.B) {
	router := stepgraph.When("value >= 10 and note != ''", "done", "loop")
	s, err := benchSchema.New(largeUpdate())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = router(nil, s)
	}
}

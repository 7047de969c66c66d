// Package extract chains scraping steps where the first successful step wins.
package extract

// Step is one named extraction attempt. Fn reports ok=false when it found
// nothing, in which case the next step is tried.
type Step[In any, Out any] struct {
	Name string
	Fn   func(in In) (out Out, ok bool)
}

// Result of a chain, Step names the step that produced Value.
type Result[Out any] struct {
	Value Out
	Step  string
	OK    bool
}

// First runs steps in order and returns the first successful result. The
// optional observe callback is invoked for every attempted step.
func First[In any, Out any](in In, observe func(step string, ok bool), steps ...Step[In, Out]) Result[Out] {
	for _, step := range steps {
		out, ok := step.Fn(in)
		if observe != nil {
			observe(step.Name, ok)
		}
		if ok {
			return Result[Out]{Value: out, Step: step.Name, OK: true}
		}
	}

	return Result[Out]{}
}

package harness

// TestPrompts is the fixed prompt set used for equality runs. The set is
// deterministic so repeated runs are reproducible.
var TestPrompts = []string{
	"Hello, my name is",
	"The president of the United States is",
	"The capital of France is",
	"The future of AI is",
	"San Francisco is know for its",
	"Facebook was created in 2004 by",
	"Curious George is a",
	"Python 3.11 brings improvements to its",
}

// CyclePrompts repeats prompts in order until batchSize entries are
// produced.
func CyclePrompts(prompts []string, batchSize int) []string {
	if len(prompts) == 0 || batchSize <= 0 {
		return nil
	}
	out := make([]string, batchSize)
	for i := range out {
		out[i] = prompts[i%len(prompts)]
	}
	return out
}

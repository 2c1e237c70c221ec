// internal/numeric/numeric.go

// Package numeric is the prompt source for the numeric channel. It samples
// fresh sequence-continuation queries, parses numeric answers, and renders
// the canonical comma-separated form. Every Generator owns its own seeded
// RNG so that a fixed base seed reproduces byte-identical prompts.
package numeric

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Default sampling bounds for the example prefix embedded in each query.
const (
	DefaultExampleMinCount = 3
	DefaultExampleMaxCount = 6
	DefaultExampleMinValue = 5
	DefaultExampleMaxValue = 500
	DefaultAnswerCount     = 20
	DefaultAnswerMaxDigits = 4
)

// queryTemplates are the opening user prompts. Each takes the example
// sequence, the requested answer count, and the digit cap.
var queryTemplates = []string{
	"I give you this sequence of numbers: %s. Add up to %d new numbers (maximum %d digits each) that continue the sequence. Return a comma-separated list of numbers. Say only the numbers - nothing more.",
	"Here is a number sequence: %s. Continue it with up to %d more numbers, each at most %d digits. Reply with a comma-separated list and nothing else.",
	"Consider the sequence %s. Extend it by up to %d additional numbers (no more than %d digits each). Answer with only the numbers, comma-separated.",
	"The sequence so far is: %s. Provide up to %d numbers that come next, each with at most %d digits. Output numbers only, separated by commas.",
	"Look at these numbers: %s. Generate up to %d more in the same style (max %d digits per number). Respond with the numbers alone, comma-separated.",
	"Starting sequence: %s. Append up to %d further numbers of at most %d digits. Your reply must contain only comma-separated numbers.",
}

// continuationTemplates are the follow-up user prompts for multi-turn
// conversations. Each takes the per-turn count k.
var continuationTemplates = []string{
	"Please extend the sequence with up to %d more numbers. Reply using the same format and only include numbers.",
	"Add as many as %d more numbers to the sequence. Only output numbers in the same style.",
	"Continue the sequence by providing up to %d additional numbers. Use only numbers.",
	"Give up to %d more numbers in the same format. Numbers only, please.",
	"Append as many as %d numbers to the sequence. Stick to the numeric format.",
	"Extend the list with up to %d more numbers. Only numbers, same format.",
	"Provide up to %d more numbers, formatted like before. Numbers only.",
	"Add up to %d more numbers, using the same numeric style.",
}

// Seed derives a per-item seed. The contract is base + batchOffset + itemIndex,
// never wall-clock time, so that batch composition alone determines the output.
func Seed(base int64, batchOffset, itemIndex int) int64 {
	return base + int64(batchOffset) + int64(itemIndex)
}

// Generator samples numeric-sequence queries and continuation prompts from a
// private RNG. One Generator serves exactly one conversation.
type Generator struct {
	rng             *rand.Rand
	exampleMinCount int
	exampleMaxCount int
	exampleMinValue int
	exampleMaxValue int
	answerCount     int
	answerMaxDigits int
}

// NewGenerator returns a Generator seeded with seed. answerCount caps how many
// numbers each query requests; values below 1 fall back to the default.
func NewGenerator(seed int64, answerCount int) *Generator {
	if answerCount < 1 {
		answerCount = DefaultAnswerCount
	}
	return &Generator{
		rng:             rand.New(rand.NewSource(seed)),
		exampleMinCount: DefaultExampleMinCount,
		exampleMaxCount: DefaultExampleMaxCount,
		exampleMinValue: DefaultExampleMinValue,
		exampleMaxValue: DefaultExampleMaxValue,
		answerCount:     answerCount,
		answerMaxDigits: DefaultAnswerMaxDigits,
	}
}

// SampleQuery produces a fresh opening query containing a random example
// sequence and a randomly chosen phrasing.
func (g *Generator) SampleQuery() string {
	count := g.exampleMinCount + g.rng.Intn(g.exampleMaxCount-g.exampleMinCount+1)
	examples := make([]int, count)
	for i := range examples {
		examples[i] = g.exampleMinValue + g.rng.Intn(g.exampleMaxValue-g.exampleMinValue+1)
	}
	template := queryTemplates[g.rng.Intn(len(queryTemplates))]
	return fmt.Sprintf(template, FormatNumbers(examples), g.answerCount, g.answerMaxDigits)
}

// SampleContinuation produces a follow-up user turn requesting up to k more
// numbers, with k drawn uniformly from [minK, maxK].
func (g *Generator) SampleContinuation(minK, maxK int) string {
	if maxK < minK {
		maxK = minK
	}
	k := minK + g.rng.Intn(maxK-minK+1)
	template := continuationTemplates[g.rng.Intn(len(continuationTemplates))]
	return fmt.Sprintf(template, k)
}

// ParseResponse extracts the integer sequence from a sanitized answer.
// Brackets and parentheses are treated as grouping noise; commas, semicolons,
// and whitespace separate values. The second return is false when the text
// contains no numbers or any token that is not a plain non-negative integer.
func ParseResponse(text string) ([]int, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '(', ')':
			return ' '
		}
		return r
	}, text)

	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, false
	}

	numbers := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, false
		}
		numbers = append(numbers, n)
	}
	return numbers, true
}

// FormatNumbers renders the canonical comma-separated representation.
func FormatNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

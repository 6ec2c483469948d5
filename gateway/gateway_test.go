package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/orchestrator"
	"github.com/snipbox/snipbox/sandbox"
)

func TestParse(t *testing.T) {
	sub, err := Parse("run this please\n```python\nprint('hi')\n```")
	require.NoError(t, err)
	assert.Equal(t, "python", sub.Language)
	assert.Equal(t, "print('hi')\n", sub.Code)
	assert.Zero(t, sub.TimeoutCap)
}

func TestParseKeepsTrailingText(t *testing.T) {
	sub, err := Parse("```go\nfmt.Println(1)\n```\nthanks!")
	require.NoError(t, err)
	assert.Equal(t, "go", sub.Language)
	assert.Equal(t, "fmt.Println(1)\n", sub.Code)
}

func TestParseNoCodeBlock(t *testing.T) {
	_, err := Parse("hello, can you run code?")
	var ue *UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Error(), "couldn't find any code blocks")
}

func TestParseNoLanguageTag(t *testing.T) {
	_, err := Parse("```\nprint('hi')\n```")
	var ue *UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Error(), "didn't include a language tag")
}

func TestParseTimeoutOption(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    time.Duration
	}{
		{"bare seconds", "[[timeout=15]]\n```python\npass\n```", 15 * time.Second},
		{"duration", "[[timeout=2m]]\n```python\npass\n```", 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := Parse(tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.TimeoutCap)
		})
	}
}

func TestParseBadTimeout(t *testing.T) {
	for _, raw := range []string{"soon", "-5", "0s"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse("[[timeout=" + raw + "]]\n```python\npass\n```")
			var ue *UserError
			require.ErrorAs(t, err, &ue)
		})
	}
}

func TestParseOptionsAfterBlockIgnored(t *testing.T) {
	// Only the text ahead of the code block is scanned for options.
	sub, err := Parse("```python\npass\n```\n[[timeout=15]]")
	require.NoError(t, err)
	assert.Zero(t, sub.TimeoutCap)
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions(`here you go [[timeout=15 version="3.12" note="say \"hi\""]]`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"timeout": "15",
		"version": "3.12",
		"note":    `say "hi"`,
	}, opts)
}

func TestParseOptionsAbsent(t *testing.T) {
	opts, err := parseOptions("just some text")
	require.NoError(t, err)
	assert.Nil(t, opts)
}

func TestParseOptionsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"missing equals", "[[timeout]]"},
		{"bad key", "[[2fast=yes]]"},
		{"unbalanced quote", `[[version="3.12]]`},
		{"dangling escape", `[[version="3.12\"]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.prefix)
			var ue *UserError
			require.ErrorAs(t, err, &ue)
		})
	}
}

func completed(output string, exitCode int64) orchestrator.Result {
	return orchestrator.Result{Result: sandbox.Result{
		Status:   sandbox.StatusCompleted,
		ExitCode: exitCode,
		Output:   output,
	}}
}

func TestFormatResultCompleted(t *testing.T) {
	reply := FormatResult("python", completed("hi\n", 0))
	assert.Equal(t, "```\nhi\n```", reply)
}

func TestFormatResultNonZeroExit(t *testing.T) {
	reply := FormatResult("python", completed("boom\n", 3))
	assert.Equal(t, "**EXIT STATUS:** 3\n```\nboom\n```", reply)
}

func TestFormatResultNoOutput(t *testing.T) {
	reply := FormatResult("python", completed("", 0))
	assert.Equal(t, "Your code ran successfully but didn't print anything.", reply)
}

func TestFormatResultEscapesFences(t *testing.T) {
	reply := FormatResult("python", completed("a``` b\n", 0))
	assert.NotContains(t, reply[3:len(reply)-3], "```")
	assert.Contains(t, reply, "ˋˋˋ")
}

func TestFormatResultTimedOut(t *testing.T) {
	reply := FormatResult("python", orchestrator.Result{Result: sandbox.Result{
		Status: sandbox.StatusTimedOut,
		Output: "partial\n",
	}})
	assert.Contains(t, reply, "time limit")
	assert.Contains(t, reply, "partial")
}

func TestFormatResultUnsupportedLanguage(t *testing.T) {
	reply := FormatResult("cobol", orchestrator.Result{Result: sandbox.Result{
		Status: sandbox.StatusFailed,
		Reason: sandbox.FailureUnsupportedLanguage,
	}})
	assert.Equal(t, "I'm sorry. I don't know how to run `cobol` code snippets.", reply)
}

func TestFormatRejections(t *testing.T) {
	tests := []struct {
		name string
		rej  admission.Rejection
		want string
	}{
		{
			"too large",
			admission.Rejection{Reason: admission.ReasonTooLarge},
			"That snippet is too large for me to run. Try trimming it down.",
		},
		{
			"rate limited",
			admission.Rejection{Reason: admission.ReasonRateLimited, RetryAfter: 42 * time.Second},
			"You're running code faster than I can keep up. Try again in 42s.",
		},
		{
			"overloaded",
			admission.Rejection{Reason: admission.ReasonOverloaded},
			"I'm running too many snippets right now. Please try again in a moment.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := tt.rej
			assert.Equal(t, tt.want, FormatResult("python", orchestrator.Result{Rejection: &rej}))
		})
	}
}

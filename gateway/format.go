package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/orchestrator"
	"github.com/snipbox/snipbox/sandbox"
)

// Backticks inside captured output would break the reply's own code
// fence, so they become modifier letters that render almost identically.
var fenceEscaper = strings.NewReplacer("```", "ˋˋˋ")

func escapeCodeBlock(output string) string {
	return fenceEscaper.Replace(output)
}

func codeFence(output string) string {
	return "```\n" + escapeCodeBlock(output) + "```"
}

// FormatResult renders an execution result as a chat reply. lang is the
// tag the user submitted, used in unsupported-language replies.
func FormatResult(lang string, res orchestrator.Result) string {
	if res.Rejected() {
		return formatRejection(res.Rejection)
	}

	switch res.Status {
	case sandbox.StatusCompleted:
		var b strings.Builder
		if res.ExitCode != 0 {
			fmt.Fprintf(&b, "**EXIT STATUS:** %d\n", res.ExitCode)
		}
		if res.Output != "" {
			b.WriteString(codeFence(res.Output))
		}
		if b.Len() == 0 {
			return "Your code ran successfully but didn't print anything."
		}
		return b.String()

	case sandbox.StatusTimedOut:
		reply := "I stopped your code because it ran past its time limit."
		if res.Output != "" {
			reply += "\n" + codeFence(res.Output)
		}
		return reply

	case sandbox.StatusCancelled:
		return "I had to cancel your run. Please try again."

	case sandbox.StatusFailed:
		if res.Reason == sandbox.FailureUnsupportedLanguage {
			return fmt.Sprintf("I'm sorry. I don't know how to run `%s` code snippets.", lang)
		}
		return "Something went wrong on my end while running your code. Please try again."

	default:
		return "Something went wrong on my end while running your code. Please try again."
	}
}

func formatRejection(rej *admission.Rejection) string {
	switch rej.Reason {
	case admission.ReasonTooLarge:
		return "That snippet is too large for me to run. Try trimming it down."
	case admission.ReasonRateLimited:
		retry := rej.RetryAfter.Round(time.Second)
		if retry <= 0 {
			retry = time.Second
		}
		return fmt.Sprintf("You're running code faster than I can keep up. Try again in %s.", retry)
	case admission.ReasonOverloaded:
		return "I'm running too many snippets right now. Please try again in a moment."
	default:
		return "I couldn't accept that request."
	}
}

package gateway

import (
	"fmt"
	"regexp"
	"time"
)

// Submission is what a chat message boils down to: a language tag, the
// code body, and any per-request options.
type Submission struct {
	Language   string
	Code       string
	TimeoutCap time.Duration
}

// UserError is a parse failure whose message is meant for the chat user,
// not for logs.
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

func userErrorf(format string, args ...any) *UserError {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

var codeBlock = regexp.MustCompile("(?s)```(?P<lang>\\S*)\n(?P<code>.*?)```")

const noCodeBlockMessage = "Were you trying to run some code? I couldn't find any code blocks in your message.\n\n" +
	"Be sure to annotate your code blocks with a language like\n" +
	"\\`\\`\\`python\nprint('Hello World')\n\\`\\`\\`"

// Parse extracts the language tag, code body, and request options from a
// raw chat message. Errors are always *UserError and safe to echo back.
func Parse(message string) (Submission, error) {
	m := codeBlock.FindStringSubmatchIndex(message)
	if m == nil {
		return Submission{}, &UserError{msg: noCodeBlockMessage}
	}

	lang := string(codeBlock.ExpandString(nil, "$lang", message, m))
	code := string(codeBlock.ExpandString(nil, "$code", message, m))

	if lang == "" {
		return Submission{}, userErrorf(
			"I noticed you sent a code block but didn't include a language tag, so I don't know how to run it. "+
				"The language goes immediately after the \\`\\`\\` like so\n\n\\`\\`\\`your-language-here\n%s\\`\\`\\`", code)
	}

	sub := Submission{Language: lang, Code: code}

	opts, err := parseOptions(message[:m[0]])
	if err != nil {
		return Submission{}, err
	}
	if raw, ok := opts["timeout"]; ok {
		timeout, err := parseTimeout(raw)
		if err != nil {
			return Submission{}, err
		}
		sub.TimeoutCap = timeout
	}

	return sub, nil
}

// parseTimeout accepts either bare seconds ("15") or a duration ("15s").
func parseTimeout(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, userErrorf("A timeout of `%s` doesn't give your code any time to run.", raw)
		}
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, userErrorf("I couldn't read `%s` as a timeout. Try something like `timeout=15` or `timeout=15s`.", raw)
}

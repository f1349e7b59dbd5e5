package ui

import (
	"io"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const ansiEscapeStr = "[][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))"

// IsTTY is true when stdout appears to be a tty. Mellow's progress UI only
// draws its fixed-slot, cursor-repositioning display when this is true;
// otherwise it falls back to one line per finished task.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var gray = color.New(color.Faint)
var bold = color.New(color.Bold)

// ERROR_PREFIX is prepended to fatal build errors (config parse, graph, internal).
var ERROR_PREFIX = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" ERROR ")

// WARNING_PREFIX is prepended to non-fatal diagnostics.
var WARNING_PREFIX = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" WARNING ")

// InfoPrefix is prepended to informational log lines.
var InfoPrefix = color.New(color.Bold, color.FgWhite, color.ReverseVideo).Sprint(" INFO ")

var ansiRegex = regexp.MustCompile(ansiEscapeStr)

// Dim prints out dimmed text, used for task timing and cached-task annotations.
func Dim(str string) string {
	return gray.Sprint(str)
}

// Bold prints out bold text, used for rule names in progress and error output.
func Bold(str string) string {
	return bold.Sprint(str)
}

type stripAnsiWriter struct {
	wrappedWriter io.Writer
}

// StripAnsiWriter wraps w so that any ANSI escape sequences written through
// it are removed first, for when output is redirected to a file or piped to
// a non-tty consumer that shouldn't see color codes.
func StripAnsiWriter(w io.Writer) io.Writer {
	return &stripAnsiWriter{wrappedWriter: w}
}

func (into *stripAnsiWriter) Write(p []byte) (int, error) {
	n, err := into.wrappedWriter.Write(ansiRegex.ReplaceAll(p, []byte{}))
	if err != nil {
		return n, err
	}
	// The wrapped write succeeded on the stripped bytes; report the input length
	// since Write must not return n < len(p) without a non-nil error.
	return len(p), nil
}

// OutWriter returns stdout, stripped of ANSI escapes when colorMode suppresses color.
func OutWriter(colorMode ColorMode) io.Writer {
	if applyColorMode(colorMode) == ColorModeSuppressed {
		return StripAnsiWriter(os.Stdout)
	}
	return os.Stdout
}

// ErrWriter returns stderr, stripped of ANSI escapes when colorMode suppresses color.
func ErrWriter(colorMode ColorMode) io.Writer {
	if applyColorMode(colorMode) == ColorModeSuppressed {
		return StripAnsiWriter(os.Stderr)
	}
	return os.Stderr
}

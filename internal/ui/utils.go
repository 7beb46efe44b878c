package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorReset  = "\033[0m"
)

var (
	in  = bufio.NewReader(os.Stdin)
	out io.Writer = os.Stdout
)

func PrintWarning(message string) {
	fmt.Fprintf(out, "%s\nWarning:%s\n", ColorYellow, ColorReset)
	fmt.Fprintf(out, "%s%s%s\n", ColorYellow, message, ColorReset)
}

func PrintError(message string) {
	fmt.Fprintf(out, "\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

func PrintSuccess(message string) {
	fmt.Fprintf(out, "\n%s%s%s\n", ColorGreen, message, ColorReset)
}

func PrintInfo(message string) {
	fmt.Fprintf(out, "%s%s%s", ColorBlue, message, ColorReset)
}

// ReadString reads one trimmed line from stdin.
func ReadString(prompt string) string {
	line, _ := readLine(prompt)
	return line
}

// readLine returns io.EOF only once input is exhausted with nothing left to
// read; a final line without a newline is still returned.
func readLine(prompt string) (string, error) {
	PrintInfo(prompt)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if errors.Is(err, io.EOF) && line == "" {
		return "", io.EOF
	}
	return line, nil
}

// ReadInt reads an integer within [min, max]. It returns io.EOF when stdin
// is closed.
func ReadInt(prompt string, min, max int) (int, error) {
	input, err := readLine(prompt)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return value, nil
}

// ReadList splits a comma separated answer, dropping blanks.
func ReadList(prompt string) []string {
	var items []string
	for _, s := range strings.Split(ReadString(prompt), ",") {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items
}

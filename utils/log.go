package utils

import "fmt"

// Logf prints "[TAG] message" to Output when Verbose is set.
func Logf(tag, format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, "[%s] %s\n", tag, fmt.Sprintf(format, args...))
}

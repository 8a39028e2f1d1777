package judge

import "strings"

// quoteShell single-quotes s so /bin/sh treats it as one literal word.
// Embedded single quotes are closed, escaped and reopened ('\'' sequence).
func quoteShell(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// writeFileCommand produces the shell fragment that materializes content as
// path inside the sandbox scratch area.
func writeFileCommand(content, path string) string {
	return "echo " + quoteShell(content) + " > " + path
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Names returns the variable names in lexical order.
func Names(variables map[string]string) []string {
	names := make([]string, 0, len(variables))
	for k := range variables {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// WriteJSON writes all variables as an indented JSON object. Values are not
// HTML-escaped, so branch names such as "fix/a<b" appear verbatim.
func WriteJSON(w io.Writer, variables map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(variables); err != nil {
		return fmt.Errorf("writing JSON output: %w", err)
	}
	return nil
}

// WriteVariable writes the value of a single variable followed by a newline.
func WriteVariable(w io.Writer, variables map[string]string, name string) error {
	val, ok := variables[name]
	if !ok {
		return fmt.Errorf("unknown variable %q (available: %s)", name, strings.Join(Names(variables), ", "))
	}
	_, err := fmt.Fprintln(w, val)
	return err
}

// WriteAll writes one name=value line per variable, sorted by name.
func WriteAll(w io.Writer, variables map[string]string) error {
	for _, k := range Names(variables) {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, variables[k]); err != nil {
			return err
		}
	}
	return nil
}

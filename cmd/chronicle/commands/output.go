package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// parseRef accepts either "type:id" or "type id".
func parseRef(args []string) (types.EntityRef, error) {
	switch len(args) {
	case 1:
		return types.ParseEntityRef(args[0])
	case 2:
		return types.ParseEntityRef(args[0] + ":" + args[1])
	default:
		return types.EntityRef{}, fmt.Errorf("expected <type> <id> or <type:id>")
	}
}

// refArgs validates the argument count for commands taking an entity ref.
func refArgs(_ *cobra.Command, cmdArgs []string) error {
	if len(cmdArgs) < 1 || len(cmdArgs) > 2 {
		return fmt.Errorf("expected <type> <id> or <type:id>")
	}
	return nil
}

func parseChapter(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("chapter must be a positive integer, got %q", s)
	}
	return n, nil
}

func parseEntityType(s string) (types.EntityType, error) {
	if s == "" {
		return "", nil
	}
	t := types.EntityType(strings.ToLower(s))
	if !types.IsValidEntityType(t) {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

func valueString(v *types.Value) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeusync/docsync/internal/injector"
	"github.com/zeusync/docsync/pkg/record"
	"github.com/zeusync/docsync/sdk/go/client"
)

var putCmd = &cobra.Command{
	Use:   "put <collection> [id] key=value...",
	Short: "Create a record, or update one when an id is given",
	Long: `Create a record, or update an existing one when an id is given.

Values are parsed as JSON when possible and sent as strings otherwise:
  docsync put GameScore playerName=Sean score=1337 cheatMode=false
  docsync put GameScore 01J... tags='["a","b"]'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, rest := args[0], args[1:]
		id := ""
		if !strings.Contains(rest[0], "=") {
			id, rest = rest[0], rest[1:]
		}
		assignments, err := parseAssignments(rest)
		if err != nil {
			return err
		}

		return withClient(cmd, func(c *client.Client) error {
			r, err := openRecord(c, collection, id)
			if err != nil {
				return err
			}
			for _, a := range assignments {
				if err = r.Set(a.key, a.value); err != nil {
					return err
				}
			}
			if err = c.Save(cmd.Context(), r); err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), r)
		})
	},
}

var incrCmd = &cobra.Command{
	Use:   "incr <collection> <id> <key> [amount]",
	Short: "Atomically increment a numeric field",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := any(int64(1))
		if len(args) == 4 {
			n, ok := parseValue(args[3]).(json.Number)
			if !ok {
				return fmt.Errorf("amount %q is not a number", args[3])
			}
			amount = n
		}

		return withClient(cmd, func(c *client.Client) error {
			r, err := c.Record(args[0], args[1])
			if err != nil {
				return err
			}
			if err = r.Increment(args[2], amount); err != nil {
				return err
			}
			if err = c.Save(cmd.Context(), r); err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), r)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <collection> <id> <key>...",
	Short: "Remove fields from a record",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *client.Client) error {
			r, err := c.Record(args[0], args[1])
			if err != nil {
				return err
			}
			// Only loaded keys can be removed.
			if err = c.Refresh(cmd.Context(), r); err != nil {
				return err
			}
			for _, key := range args[2:] {
				r.Remove(key)
			}
			if err = c.Save(cmd.Context(), r); err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), r)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *client.Client) error {
			r, err := c.Record(args[0], args[1])
			if err != nil {
				return err
			}
			if err = c.Delete(cmd.Context(), r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Fetch a record and print it as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *client.Client) error {
			r, err := c.Record(args[0], args[1])
			if err != nil {
				return err
			}
			if err = c.Refresh(cmd.Context(), r); err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), r)
		})
	},
}

func init() {
	rootCmd.AddCommand(putCmd, incrCmd, rmCmd, deleteCmd, getCmd)
}

func withClient(cmd *cobra.Command, fn func(c *client.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := injector.InitializeClient(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func openRecord(c *client.Client, collection, id string) (*record.Record, error) {
	if id == "" {
		return c.NewRecord(collection), nil
	}
	return c.Record(collection, id)
}

type assignment struct {
	key   string
	value any
}

func parseAssignments(args []string) ([]assignment, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected at least one key=value")
	}
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", arg)
		}
		out = append(out, assignment{key: key, value: parseValue(raw)})
	}
	return out, nil
}

// parseValue decodes raw as a single JSON value, falling back to the raw string.
func parseValue(raw string) any {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var v any
	if err := decoder.Decode(&v); err != nil || v == nil || decoder.More() {
		return raw
	}
	return v
}

func identity(r *record.Record) map[string]any {
	out := map[string]any{record.FieldObjectID: r.ID()}
	if t := r.CreatedAt(); !t.IsZero() {
		out[record.FieldCreatedAt] = record.FormatDate(t)
	}
	if t := r.UpdatedAt(); !t.IsZero() {
		out[record.FieldUpdatedAt] = record.FormatDate(t)
	}
	return out
}

func printSummary(w io.Writer, r *record.Record) error {
	return writeJSON(w, identity(r))
}

func printRecord(w io.Writer, r *record.Record) error {
	out := identity(r)
	for _, key := range r.Keys() {
		v, _ := r.Get(key)
		if t, ok := v.(time.Time); ok {
			v = record.FormatDate(t)
		}
		out[key] = v
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

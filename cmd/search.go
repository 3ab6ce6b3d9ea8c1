package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tracq/internal/compile"
	"tracq/internal/fetch"
	"tracq/internal/log"
	"tracq/internal/query"
	"tracq/internal/service"
	"tracq/internal/service/bugzilla"
)

// Repeatable filter flags; each occurrence is one list group, multiple
// occurrences are OR-ed together.
var listFilterFields = []string{
	"id", "summary", "status", "resolution", "assignee", "creator", "cc",
	"commenter", "comment", "created", "updated", "comments", "votes",
	"priority", "severity", "component", "product", "version", "platform",
	"os", "labels", "blocks", "depends", "closed",
}

// Tri-state flags: bare means present, false means absent, anything else
// constrains the content.
var triStateFields = []string{"milestone", "url", "whiteboard", "alias"}

func init() {
	rootCmd.AddCommand(newSearchCmd())
}

// newSearchCmd builds the search command; tests construct their own
// instance to avoid shared flag state.
func newSearchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search records",
		Long: `Search records using per-field filters. Filter values support match
operators (=~ ~~ !~ == != =* !*), ranges (<N, >=N, N..M, N..=M), and
comma-separated lists. Repeating a flag ORs its occurrences together.`,
		RunE: runSearch,
	}

	f := searchCmd.Flags()
	for _, field := range listFilterFields {
		f.StringArray(field, nil, fmt.Sprintf("filter by %s", field))
	}
	for _, field := range triStateFields {
		f.String(field, "", fmt.Sprintf("filter by %s (bare flag: present, false: absent, value: content)", field))
		f.Lookup(field).NoOptDefVal = "true"
	}
	f.StringArray("changed", nil, "fields that changed: FIELD, !FIELD, or FIELD=<time range>")
	f.StringArray("changed-by", nil, "fields changed by users: FIELD=USER[,USER...]")
	f.StringArray("changed-from", nil, "fields that once held a value: FIELD=VALUE")
	f.StringArray("changed-to", nil, "fields ever changed to a value: FIELD=VALUE")

	f.StringP("order", "o", "", "sort order: [-]FIELD[,[-]FIELD...]")
	f.StringSliceP("fields", "F", nil, "fields to request (id is always included)")
	f.Int64P("limit", "l", 0, "page size")
	f.Int64P("max", "m", 0, "cap on total records returned")
	f.Int64("offset", 0, "starting offset")
	f.StringP("quicksearch", "S", "", "pass a quicksearch expression through verbatim")
	f.Bool("web", false, "print the web interface URL for this search instead of running it")
	f.Bool("json", false, "print records as JSON lines")
	return searchCmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	backend, adapter, conn, provider, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(cmd.Context()) }()

	frags, err := buildSearchFragments(cmd, backend)
	if err != nil {
		return err
	}
	order, err := buildOrder(cmd, backend)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	limit, _ := flags.GetInt64("limit")
	max, _ := flags.GetInt64("max")
	offset, _ := flags.GetInt64("offset")
	fields, _ := flags.GetStringSlice("fields")
	quicksearch, _ := flags.GetString("quicksearch")

	req := service.PagedRequest{
		Offset:      offset,
		Limit:       limit,
		Max:         max,
		Concurrency: conn.Concurrency,
		Order:       order,
		Fields:      fields,
		Fragments:   frags,
		Quicksearch: quicksearch,
	}

	if web, _ := flags.GetBool("web"); web {
		bz, ok := adapter.(*bugzilla.Client)
		if !ok {
			return fmt.Errorf("--web is only available for bugzilla connections")
		}
		if req.Limit <= 0 {
			req.Limit = fetch.DefaultLimit
		}
		u, err := bz.SearchURL(req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	}

	records, err := fetch.Run(cmd.Context(), req, adapter.SearchPage)
	if err != nil {
		return err
	}
	asJSON, _ := flags.GetBool("json")
	return printRecords(cmd, records, asJSON)
}

// buildSearchFragments compiles every given filter flag for the selected
// backend.
func buildSearchFragments(cmd *cobra.Command, backend compile.Backend) ([]compile.Fragment, error) {
	flags := cmd.Flags()
	var frags []compile.Fragment

	for _, field := range listFilterFields {
		if !flags.Changed(field) {
			continue
		}
		occurrences, _ := flags.GetStringArray(field)
		g, err := query.ParseList(occurrences, compile.FieldKind(backend, field), invocationNow)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		g = downgradeMatches(backend, field, g)
		frag, err := compile.CompileQuery(backend, field, g)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}

	for _, field := range triStateFields {
		if !flags.Changed(field) {
			continue
		}
		raw, _ := flags.GetString(field)
		ts := query.ParseTriState(&raw, invocationNow)
		if ts.Kind == query.TriMatch {
			m := ts.Match
			m.Op = downgradeOp(backend, field, m.Op)
			ts.Match = m
		}
		frag, err := compile.CompileTriState(backend, field, ts)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}

	changeFrags, err := buildChangeFragments(cmd, backend)
	if err != nil {
		return nil, err
	}
	return append(frags, changeFrags...), nil
}

func buildChangeFragments(cmd *cobra.Command, backend compile.Backend) ([]compile.Fragment, error) {
	flags := cmd.Flags()
	var frags []compile.Fragment

	compileAll := func(flag string, parse func(string) (query.Change, error)) error {
		values, _ := flags.GetStringArray(flag)
		for _, raw := range values {
			c, err := parse(raw)
			if err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
			frag, err := compile.CompileChange(backend, c)
			if err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
			frags = append(frags, frag)
		}
		return nil
	}

	if err := compileAll("changed", func(raw string) (query.Change, error) {
		return query.ParseChanged(raw, invocationNow)
	}); err != nil {
		return nil, err
	}
	if err := compileAll("changed-by", query.ParseChangedBy); err != nil {
		return nil, err
	}
	if err := compileAll("changed-from", query.ParseChangedFrom); err != nil {
		return nil, err
	}
	if err := compileAll("changed-to", query.ParseChangedTo); err != nil {
		return nil, err
	}
	return frags, nil
}

func buildOrder(cmd *cobra.Command, backend compile.Backend) ([]string, error) {
	raw, _ := cmd.Flags().GetString("order")
	if raw == "" {
		return nil, nil
	}
	orders, err := query.ParseOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("--order: %w", err)
	}
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		key, err := compile.OrderKey(backend, o)
		if err != nil {
			return nil, fmt.Errorf("--order: %w", err)
		}
		out = append(out, key)
	}
	return out, nil
}

// downgradeMatches rewrites the default case-sensitive substring operator to
// the case-insensitive one on backends whose wire grammar has no
// case-sensitive form. The compiler itself never approximates; the decision
// to accept the weaker semantics is made here, with a warning.
func downgradeMatches(backend compile.Backend, field string, g query.ListGroup) query.ListGroup {
	if backend == compile.Bugzilla {
		return g
	}
	for i, item := range g.Items {
		if item.Match != nil && item.Match.Op == query.OpContains {
			m := *item.Match
			m.Op = query.OpIContains
			g.Items[i].Match = &m
			log.Warn(log.CatCompile, "case-sensitive substring downgraded to case-insensitive",
				"backend", backend, "field", field)
		}
	}
	for i := range g.Groups {
		g.Groups[i] = downgradeMatches(backend, field, g.Groups[i])
	}
	return g
}

func downgradeOp(backend compile.Backend, field string, op query.MatchOp) query.MatchOp {
	if backend != compile.Bugzilla && op == query.OpContains {
		log.Warn(log.CatCompile, "case-sensitive substring downgraded to case-insensitive",
			"backend", backend, "field", field)
		return query.OpIContains
	}
	return op
}

func printRecords(cmd *cobra.Command, records []service.Record, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%-8d %s", r.ID, r.Summary)
		if r.Status != "" {
			line += fmt.Sprintf("  [%s]", r.Status)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// readValueArg resolves "-" to the contents of stdin, so long values (a
// comment body, a summary) can be piped in.
func readValueArg(cmd *cobra.Command, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/deep"
	"github.com/gravitrone/storesync/internal/store"
	"github.com/gravitrone/storesync/internal/ui/components"
)

// DefaultStore is used when --store is not given.
const DefaultStore = "record"

// RecordsCmd returns the `storesync records` command group.
func RecordsCmd() *cobra.Command {
	var storeName string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read and write records of one store",
	}
	cmd.PersistentFlags().StringVarP(&storeName, "store", "s", DefaultStore, "store name from config")

	cmd.AddCommand(recordsListCmd(&storeName))
	cmd.AddCommand(recordsGetCmd(&storeName))
	cmd.AddCommand(recordsSearchCmd(&storeName))
	cmd.AddCommand(recordsSetCmd(&storeName))
	cmd.AddCommand(recordsCreateCmd(&storeName))
	cmd.AddCommand(recordsDeleteCmd(&storeName))
	cmd.AddCommand(recordsFilterCmd(&storeName))
	return cmd
}

type storeFunc func(ctx context.Context, sess *Session, s *store.Store) error

func withStore(cmd *cobra.Command, name string, fn storeFunc) error {
	sess, err := OpenSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	s := sess.Store(name, store.Hooks{})
	defer s.Close()
	return fn(cmd.Context(), sess, s)
}

func statusError(op string, resp *api.Response) error {
	if resp == nil || resp.OK() {
		return nil
	}
	if resp.Message != "" {
		return fmt.Errorf("%s: server returned %d: %s", op, resp.Status, resp.Message)
	}
	return fmt.Errorf("%s: server returned %d", op, resp.Status)
}

func recordsListCmd(storeName *string) *cobra.Command {
	var (
		offset, limit, more int
		sortBy              string
		all                 bool
		query               []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of records using the saved filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, sess *Session, s *store.Store) error {
				opt := store.LoadOptions{SkipFilter: all}
				if cmd.Flags().Changed("offset") {
					opt.Offset = store.Ptr(offset)
				}
				if cmd.Flags().Changed("limit") {
					opt.Limit = store.Ptr(limit)
				}
				if cmd.Flags().Changed("sort") {
					opt.Sort = store.Ptr(sortBy)
				}
				if len(query) > 0 {
					q, err := parsePairs(query)
					if err != nil {
						return err
					}
					opt.Query = store.Filter(q)
				}

				resp, err := s.List(ctx, false, opt)
				if err != nil {
					return err
				}
				if err := statusError("list", resp); err != nil {
					return err
				}
				for i := 0; i < more; i++ {
					resp, err = s.LoadMore(ctx, store.LoadOptions{})
					if err != nil {
						return err
					}
					if err := statusError("load more", resp); err != nil {
						return err
					}
				}

				snap := s.Snapshot()
				columns := sess.Config.Store(*storeName).Columns
				out := cmd.OutOrStdout()
				if len(snap.Items) == 0 {
					fmt.Fprintf(out, "no %s found\n", s.NamePlural())
					return nil
				}
				printRecords(out, columns, snap.Items)
				fmt.Fprintf(out, "%d of %d %s\n", len(snap.Items), snap.Total, s.NamePlural())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&more, "more", 0, "append this many further pages")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort expression")
	cmd.Flags().BoolVar(&all, "all", false, "ignore the saved filter")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "one-off filter key=value (replaces the saved filter)")
	return cmd
}

func recordsGetCmd(storeName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Load one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				resp, err := s.Load(ctx, args[0], false, store.LoadOptions{})
				if err != nil {
					return err
				}
				if err := statusError("get", resp); err != nil {
					return err
				}
				item := s.Item()
				if item == nil {
					return fmt.Errorf("%s %s not found", s.Name(), args[0])
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

func recordsSearchCmd(storeName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Full-text search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				ok, err := s.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(out, "search failed")
					return nil
				}
				snap := s.Snapshot().Search
				if len(snap.Results) == 0 {
					fmt.Fprintln(out, "no matches")
					return nil
				}
				rows := make([][]string, len(snap.Results))
				for i, r := range snap.Results {
					rows[i] = []string{strconv.Itoa(i), store.IDString(r["id"]), components.FormatValue(r["title"])}
				}
				fmt.Fprintln(out, components.NewGrid([]string{"#", "id", "title"}, rows).Plain())
				fmt.Fprintf(out, "%d matches\n", snap.Total)
				return nil
			})
		},
	}
}

func recordsSetCmd(storeName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Save one field (value is parsed as JSON when possible)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				resp, err := s.SaveField(ctx, args[0], args[1], deep.ParseValue(args[2]), false, store.SaveFieldOptions{})
				if err != nil {
					return err
				}
				if err := statusError("set", resp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s.%s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func recordsCreateCmd(storeName *string) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "create [key=value...]",
		Short: "Insert a new record",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := store.Record{}
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &data); err != nil {
					return fmt.Errorf("parse --json: %w", err)
				}
				if data == nil {
					data = store.Record{}
				}
			}
			pairs, err := parsePairs(args)
			if err != nil {
				return err
			}
			for k, v := range pairs {
				data[k] = v
			}
			if len(data) == 0 {
				return fmt.Errorf("nothing to create")
			}

			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				resp, err := s.Insert(ctx, data)
				if err != nil {
					return err
				}
				if err := statusError("create", resp); err != nil {
					return err
				}
				var created store.Record
				if resp.HasData() && resp.DecodeData(&created) == nil && created["id"] != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", s.Name(), store.IDString(created["id"]))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", s.Name())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "record as a JSON object")
	return cmd
}

func recordsDeleteCmd(storeName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				resp, err := s.Delete(ctx, args[0], "id", nil)
				if err != nil {
					return err
				}
				if err := statusError("delete", resp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", s.Name(), args[0])
				return nil
			})
		},
	}
}

func recordsFilterCmd(storeName *string) *cobra.Command {
	var set, reset bool
	cmd := &cobra.Command{
		Use:   "filter [key [value]]",
		Short: "Show or toggle the saved query filter",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *storeName, func(ctx context.Context, _ *Session, s *store.Store) error {
				switch {
				case reset:
					s.ResetQueryFilter()
				case len(args) > 0:
					var value any
					if len(args) == 2 {
						value = deep.ParseValue(args[1])
					}
					opt := store.ToggleOptions{SetValue: set, SkipUpdate: true}
					if err := s.ToggleQueryFilter(ctx, args[0], value, opt); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), s.QueryFilter())
			})
		},
	}
	cmd.Flags().BoolVar(&set, "set", false, "set the value instead of toggling it")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the saved filter")
	return cmd
}

func parsePairs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = deep.ParseValue(value)
	}
	return out, nil
}

func printRecords(w io.Writer, columns []string, items []store.Record) {
	fmt.Fprintln(w, components.RecordGrid(columns, items).Plain())
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}

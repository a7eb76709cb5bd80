package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecqueue"
)

type statsOutput struct {
	Path      string `json:"path"`
	InsertLen uint64 `json:"insert_len"`
	DeleteLen uint64 `json:"delete_len"`
	Codec     string `json:"codec"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending insert and delete counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			st := q.Stats()
			out := statsOutput{Path: st.Path, InsertLen: st.InsertLen, DeleteLen: st.DeleteLen, Codec: st.Codec}
			return root.formatter(cmd).Record(out,
				fmt.Sprintf("path=%s inserts=%d deletes=%d codec=%s", out.Path, out.InsertLen, out.DeleteLen, out.Codec))
		},
	}
}

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Vector    string
	Delete    bool
	Timestamp int64
}

// NewPushCommand creates the push command.
func NewPushCommand(root *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "push <id>",
		Short: "Stage an insert or a delete",
		Long: `Stage an insert (with --vector) or a delete (with --delete) for an id.

Example:
  vecqueue push doc-1 --vector 0.1,0.2,0.3
  vecqueue push doc-2 --delete --ts 1700000000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Delete == (opts.Vector != "") {
				return NewExitError(ExitCommandError, "exactly one of --vector or --delete is required")
			}

			var pushOpts []vecqueue.PushOption
			if cmd.Flags().Changed("ts") {
				pushOpts = append(pushOpts, vecqueue.WithTimestamp(opts.Timestamp))
			}

			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			if opts.Delete {
				err = q.PushDelete(cmd.Context(), args[0], pushOpts...)
			} else {
				var vec []float32
				if vec, err = ParseVector(opts.Vector); err != nil {
					return WrapExitError(ExitCommandError, "invalid --vector", err)
				}
				err = q.PushInsert(cmd.Context(), args[0], vec, pushOpts...)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "push failed", err)
			}
			root.formatter(cmd).Debugf("pushed %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Vector, "vector", "", "comma separated vector components")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "stage a delete instead of an insert")
	cmd.Flags().Int64Var(&opts.Timestamp, "ts", 0, "timestamp in nanoseconds (default: now)")

	return cmd
}

type entryOutput struct {
	Kind      string    `json:"kind,omitempty"`
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector,omitempty"`
	Timestamp int64     `json:"ts"`
	DeleteTS  int64     `json:"delete_ts,omitempty"`
	Exists    *bool     `json:"exists,omitempty"`
}

func (e entryOutput) String() string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(e.Kind)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%s ts=%d", e.ID, e.Timestamp)
	if e.DeleteTS != 0 {
		fmt.Fprintf(&b, " delete_ts=%d", e.DeleteTS)
	}
	if e.Exists != nil {
		fmt.Fprintf(&b, " exists=%t", *e.Exists)
	}
	if e.Vector != nil {
		fmt.Fprintf(&b, " vector=%s", FormatVector(e.Vector))
	}
	return b.String()
}

// NewPopCommand creates the pop command.
func NewPopCommand(root *RootOptions) *cobra.Command {
	var deleteSide bool

	cmd := &cobra.Command{
		Use:   "pop <id>",
		Short: "Remove the pending insert (or delete) of an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			out := entryOutput{ID: args[0]}
			if deleteSide {
				out.Kind = vecqueue.KindDelete.String()
				out.Timestamp, err = q.PopDelete(cmd.Context(), args[0])
			} else {
				out.Kind = vecqueue.KindInsert.String()
				out.Vector, out.Timestamp, err = q.PopInsert(cmd.Context(), args[0])
			}
			if err != nil {
				return WrapExitError(ExitFailure, "pop failed", err)
			}
			return root.formatter(cmd).Record(out, out.String())
		},
	}

	cmd.Flags().BoolVar(&deleteSide, "delete", false, "pop the pending delete instead of the insert")
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show the resolved state of an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			st, err := q.GetVectorWithTimestamp(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "lookup failed", err)
			}
			exists := st.Exists
			out := entryOutput{ID: args[0], Vector: st.Vector, Timestamp: st.InsertTS, DeleteTS: st.DeleteTS, Exists: &exists}
			return root.formatter(cmd).Record(out, out.String())
		},
	}
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "List live pending inserts without consuming them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			f := root.formatter(cmd)
			stream := q.Range(cmd.Context())
			defer stream.Close()
			for item, err := range stream.All() {
				if err != nil {
					return WrapExitError(ExitFailure, "range failed", err)
				}
				out := entryOutput{ID: item.ID, Vector: item.Vector, Timestamp: item.Timestamp}
				if err := f.Record(out, out.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DrainOptions holds flags for the drain command.
type DrainOptions struct {
	*RootOptions
	Now       int64
	BatchSize int
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(root *RootOptions) *cobra.Command {
	opts := &DrainOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Consume and print every operation due up to a cutoff",
		Long: `Consume every pending operation timestamped at or before --now and print
one resolved outcome per id. Drained entries are removed from the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := opts.Now
			if !cmd.Flags().Changed("now") {
				now = time.Now().UnixNano()
			}

			q, err := root.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()

			f := root.formatter(cmd)
			stream := q.DrainQueues(cmd.Context(), now, root.config().GetInt("batch-size"))
			defer stream.Close()

			n := 0
			for item, err := range stream.All() {
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("drain failed after %d items", n), err)
				}
				out := entryOutput{Kind: item.Kind.String(), ID: item.ID, Vector: item.Vector, Timestamp: item.Timestamp}
				if err := f.Record(out, out.String()); err != nil {
					return err
				}
				n++
			}
			f.Debugf("drained %d items", n)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.Now, "now", 0, "cutoff timestamp in nanoseconds (default: now)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", vecqueue.DefaultDrainBatchSize, "entries per queue per batch")

	return cmd
}

// ParseVector parses comma separated float32 components.
func ParseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.New("empty component")
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, err
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

// FormatVector renders vec the way ParseVector reads it.
func FormatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, f := range vec {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

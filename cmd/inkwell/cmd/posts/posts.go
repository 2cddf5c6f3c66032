// Package posts implements the save, publish, delete and sync commands.
package posts

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/inkwell/internal/appcontext"
	"github.com/agentstation/inkwell/internal/cmd/output"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// fieldFlags are the post fields settable from the command line.
type fieldFlags struct {
	id       string
	title    string
	body     string
	bodyFile string
	summary  string
	tags     []string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "post id or local draft id; empty creates a new post")
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.body, "content", "", "post content (markdown)")
	cmd.Flags().StringVar(&f.bodyFile, "content-file", "", "read content from a file, - for stdin")
	cmd.Flags().StringVar(&f.summary, "summary", "", "post summary")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag, repeatable")
}

// fields builds the post fields, starting from any stored draft of id.
func (f *fieldFlags) fields(cmd *cobra.Command, base content.Fields, stdin io.Reader) (content.Fields, error) {
	fields := base.Clone()
	if fields == nil {
		fields = content.Fields{}
	}
	if cmd.Flags().Changed("title") {
		fields[content.FieldTitle] = f.title
	}
	if cmd.Flags().Changed("content") {
		fields[content.FieldContent] = f.body
	}
	if f.bodyFile != "" {
		var data []byte
		var err error
		if f.bodyFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.bodyFile)
		}
		if err != nil {
			return nil, errors.WrapIO("read", f.bodyFile, err)
		}
		fields[content.FieldContent] = string(data)
	}
	if cmd.Flags().Changed("summary") {
		fields[content.FieldSummary] = f.summary
	}
	if cmd.Flags().Changed("tag") {
		fields[content.FieldTags] = f.tags
	}
	if _, ok := fields[content.FieldStatus]; !ok {
		fields[content.FieldStatus] = content.StatusDraft
	}
	if !fields.HasText() {
		return nil, &errors.ValidationError{Field: "title", Message: "a title or content is required"}
	}
	return fields, nil
}

// NewSaveCommand creates the save command.
func NewSaveCommand(app appcontext.Interface) *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:     "save",
		GroupID: "core",
		Short:   "Save a post, keeping it as a draft when offline",
		Long: `Save commits a post to the blog service. When the service cannot be
reached the post is kept in the local draft store and synced later.`,
		Example: `  inkwell save --title "Hello" --content "First post"
  inkwell save --id 42 --content-file post.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			var base content.Fields
			if d, ok := c.Draft(flags.id); ok && flags.id != "" {
				base = d.Fields
			}
			fields, err := flags.fields(cmd, base, cmd.InOrStdin())
			if err != nil {
				return err
			}
			out, err := c.Save(cmd.Context(), flags.id, fields)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), app.OutputFormat(), out)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(app appcontext.Interface) *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:     "publish",
		GroupID: "core",
		Short:   "Publish a post",
		Long: `Publish commits a post marked as published. Unlike save, any failure
is an error; the post is still kept locally.`,
		Example: `  inkwell publish --id local-8b7c...
  inkwell publish --title "Launch" --content-file launch.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			var base content.Fields
			if d, ok := c.Draft(flags.id); ok && flags.id != "" {
				base = d.Fields
			}
			fields, err := flags.fields(cmd, base, cmd.InOrStdin())
			if err != nil {
				return err
			}
			out, err := c.Publish(cmd.Context(), flags.id, fields)
			if rerr := report(cmd.OutOrStdout(), app.OutputFormat(), out); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		GroupID: "core",
		Short:   "Delete a post from the blog service",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Commit every pending draft",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			result, err := c.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), newSweepView(result))
		},
	}
}

// outcomeView is the printed form of a save or publish.
type outcomeView struct {
	Status  string `json:"status" yaml:"status"`
	ID      string `json:"id" yaml:"id"`
	LocalID string `json:"localId,omitempty" yaml:"local_id,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (v outcomeView) Table() output.Data {
	rows := [][]string{{"Status", v.Status}, {"ID", v.ID}}
	if v.LocalID != "" {
		rows = append(rows, []string{"Local ID", v.LocalID})
	}
	if v.Error != "" {
		rows = append(rows, []string{"Error", v.Error})
	}
	return output.Data{Headers: []string{"", ""}, Rows: rows}
}

func report(w io.Writer, format string, out reconcile.Outcome) error {
	if out.Status == 0 {
		return nil
	}
	v := outcomeView{Status: out.Status.String(), ID: out.ID, LocalID: out.LocalID}
	if out.Err != nil {
		v.Error = out.Err.Error()
	}
	return output.Print(w, output.DetectFormat(format), v)
}

// sweepView is the printed form of a sweep.
type sweepView struct {
	Attempted int    `json:"attempted" yaml:"attempted"`
	Committed int    `json:"committed" yaml:"committed"`
	Pending   int    `json:"pending" yaml:"pending"`
	Result    string `json:"result" yaml:"result"`
}

func newSweepView(r reconcile.SweepResult) sweepView {
	v := sweepView{Attempted: r.Attempted, Committed: r.Committed, Pending: r.Pending, Result: "complete"}
	switch {
	case r.Skipped:
		v.Result = "skipped, another sync is running"
	case r.Interrupted:
		v.Result = "interrupted"
	}
	return v
}

func (v sweepView) Table() output.Data {
	return output.Data{
		Headers:      []string{"Attempted", "Committed", "Pending", "Result"},
		Rows:         [][]string{{strconv.Itoa(v.Attempted), strconv.Itoa(v.Committed), strconv.Itoa(v.Pending), v.Result}},
		RightAligned: []int{0, 1, 2},
	}
}

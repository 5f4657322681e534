package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/taskflow/internal/adapters/server/common"
	"github.com/hylla/taskflow/internal/domain"
	"github.com/spf13/cobra"
)

// statusColors tints column headers in the board table.
var statusColors = map[domain.Status]lipgloss.Color{
	domain.StatusTodo:       lipgloss.Color("245"),
	domain.StatusInProgress: lipgloss.Color("33"),
	domain.StatusReview:     lipgloss.Color("214"),
	domain.StatusDone:       lipgloss.Color("42"),
	domain.StatusCancelled:  lipgloss.Color("160"),
}

func (c *cli) boardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board <project-id>",
		Short: "Render a project's board, one column per status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "board", func(ctx context.Context, deps *runtimeDeps) error {
				board, err := deps.api.ListBoard(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderBoard(board))
				return err
			})
		},
	}

	repair := &cobra.Command{
		Use:   "repair <project-id>",
		Short: "Renumber every column to 0..n-1 keeping relative order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "board repair", func(ctx context.Context, deps *runtimeDeps) error {
				changed, err := deps.svc.RepairBoard(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "renumbered %d task(s)\n", changed)
				return err
			})
		},
	}
	cmd.AddCommand(repair)
	return cmd
}

// renderBoard lays the grouped tasks out as a table with one column per status.
func renderBoard(board common.Board) string {
	statuses := domain.Statuses()
	headers := make([]string, 0, len(statuses))
	depth := 0
	for _, status := range statuses {
		tasks := board.Grouped[string(status)]
		headers = append(headers, fmt.Sprintf("%s (%d)", status, len(tasks)))
		depth = max(depth, len(tasks))
	}

	rows := make([][]string, depth)
	for i := range depth {
		row := make([]string, len(statuses))
		for col, status := range statuses {
			tasks := board.Grouped[string(status)]
			if i < len(tasks) {
				row[col] = fmt.Sprintf("%d. %s", tasks[i].Order, tasks[i].Title)
			}
		}
		rows[i] = row
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Foreground(statusColors[statuses[col]])
			}
			return cellStyle
		}).
		String()
}

func (c *cli) taskShowCommand() *cobra.Command {
	var style string
	var width int
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task with its markdown description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "task show", func(ctx context.Context, deps *runtimeDeps) error {
				task, err := deps.api.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return writeTask(cmd.OutOrStdout(), task, &markdownRenderer{style: style}, width)
			})
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for the description (dark, light, notty)")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width for the description")
	return cmd
}

// writeTask prints a task summary followed by its rendered description.
func writeTask(w io.Writer, task common.Task, md *markdownRenderer, width int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", lipgloss.NewStyle().Bold(true).Render(task.Title))
	fmt.Fprintf(&b, "id:       %s\n", task.ID)
	fmt.Fprintf(&b, "column:   %s @ %d\n", task.Status, task.Order)
	fmt.Fprintf(&b, "priority: %s\n", task.Priority)
	if task.DueDate != nil {
		fmt.Fprintf(&b, "due:      %s\n", task.DueDate.Format(time.DateOnly))
	}
	if task.Assignee != nil {
		fmt.Fprintf(&b, "assignee: %s (%s)\n", task.Assignee.Name, task.Assignee.ID)
	}
	if len(task.Tags) > 0 {
		names := make([]string, 0, len(task.Tags))
		for _, tag := range task.Tags {
			names = append(names, tag.Name)
		}
		fmt.Fprintf(&b, "tags:     %s\n", strings.Join(names, ", "))
	}
	if rendered := md.render(task.Description, width); rendered != "" {
		fmt.Fprintf(&b, "\n%s\n", rendered)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// markdownRenderer renders markdown for terminal output and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into styled terminal text, falling back to the raw input.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		style := strings.TrimSpace(r.style)
		if style == "" {
			style = "dark"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

func (c *cli) activityCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity <project-id>",
		Short: "List the newest activity entries of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "activity", func(ctx context.Context, deps *runtimeDeps) error {
				entries, err := deps.api.ListActivity(ctx, args[0], limit)
				if err != nil {
					return err
				}
				for _, entry := range entries {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-13s %s\n",
						entry.CreatedAt.Format(time.RFC3339), entry.Type, entry.Description); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

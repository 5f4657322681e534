package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/taskflow/internal/adapters/server/common"
	"github.com/hylla/taskflow/internal/app"
	"github.com/spf13/cobra"
)

func (c *cli) userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user profiles",
	}

	var name, email, avatar string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user profile and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, "user add", func(ctx context.Context, deps *runtimeDeps) error {
				user, err := deps.svc.CreateUser(ctx, app.CreateUserInput{Name: name, Email: email, Avatar: avatar})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), user.ID)
				return err
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(add)
	return cmd
}

func (c *cli) projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and members",
	}

	var req common.CreateProjectRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withActor(cmd, "project create", func(ctx context.Context, deps *runtimeDeps) error {
				project, err := deps.api.CreateProject(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), project.ID)
				return err
			})
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "project name")
	create.Flags().StringVar(&req.Description, "description", "", "project description")
	create.Flags().StringVar(&req.Color, "color", "", "hex color, e.g. #3B82F6")
	_ = create.MarkFlagRequired("name")

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects the acting user can access, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withActor(cmd, "project list", func(ctx context.Context, deps *runtimeDeps) error {
				projects, err := deps.api.ListProjects(ctx, search)
				if err != nil {
					return err
				}
				for _, project := range projects {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", project.ID, project.Name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	list.Flags().StringVar(&search, "search", "", "only projects whose name contains this text")

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Print a project with its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "project show", func(ctx context.Context, deps *runtimeDeps) error {
				detail, err := deps.api.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s\n", detail.ID, detail.Name)
				if detail.Description != "" {
					fmt.Fprintln(out, detail.Description)
				}
				fmt.Fprintf(out, "color: %s  tasks: %d  tags: %d\n", detail.Color, len(detail.Tasks), len(detail.Tags))
				for _, member := range detail.Members {
					name := member.UserID
					if member.User != nil {
						name = fmt.Sprintf("%s (%s)", member.User.Name, member.UserID)
					}
					if _, err := fmt.Fprintf(out, "  %-6s %s\n", member.Role, name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, show, c.projectUpdateCommand(), c.projectDeleteCommand(), c.memberCommand())
	return cmd
}

func (c *cli) projectUpdateCommand() *cobra.Command {
	var name, description, color string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Rename or restyle a project (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			req := common.UpdateProjectRequest{ProjectID: args[0]}
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("color") {
				req.Color = &color
			}
			return c.withActor(cmd, "project update", func(ctx context.Context, deps *runtimeDeps) error {
				project, err := deps.api.UpdateProject(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", project.ID, project.Name, project.Color)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&color, "color", "", "new hex color")
	return cmd
}

func (c *cli) projectDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Soft-delete a project (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "project delete", func(ctx context.Context, deps *runtimeDeps) error {
				return deps.api.DeleteProject(ctx, args[0])
			})
		},
	}
}

func (c *cli) memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage project members",
	}

	var req common.AddMemberRequest
	add := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a member by user id or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "project member add", func(ctx context.Context, deps *runtimeDeps) error {
				req.ProjectID = args[0]
				member, err := deps.api.AddProjectMember(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", member.UserID, member.Role)
				return err
			})
		},
	}
	add.Flags().StringVar(&req.UserID, "user", "", "user id")
	add.Flags().StringVar(&req.Email, "email", "", "user email")
	add.MarkFlagsOneRequired("user", "email")
	add.MarkFlagsMutuallyExclusive("user", "email")

	cmd.AddCommand(add)
	return cmd
}

func (c *cli) tagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage project tags",
	}

	var req common.CreateTagRequest
	add := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Create a tag in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "tag add", func(ctx context.Context, deps *runtimeDeps) error {
				req.ProjectID = args[0]
				tag, err := deps.api.CreateTag(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), tag.ID)
				return err
			})
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "tag name")
	add.Flags().StringVar(&req.Color, "color", "", "hex color")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}

func (c *cli) taskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, move, update and inspect tasks",
	}
	cmd.AddCommand(
		c.taskAddCommand(),
		c.taskMoveCommand(),
		c.taskUpdateCommand(),
		c.taskShowCommand(),
		c.taskDeleteCommand(),
	)
	return cmd
}

func (c *cli) taskAddCommand() *cobra.Command {
	var req common.CreateTaskRequest
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Append a task to the end of its column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "task add", func(ctx context.Context, deps *runtimeDeps) error {
				req.ProjectID = args[0]
				task, err := deps.api.CreateTask(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s@%d\n", task.ID, task.Status, task.Order)
				return err
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Title, "title", "", "task title")
	flags.StringVar(&req.Description, "description", "", "markdown description")
	flags.StringVar(&req.Status, "status", "", "column (todo, in-progress, review, done, cancelled)")
	flags.StringVar(&req.Priority, "priority", "", "low, medium, high or urgent")
	flags.StringVar(&req.DueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	flags.StringVar(&req.AssigneeID, "assignee", "", "assignee user id")
	flags.StringSliceVar(&req.TagIDs, "tag", nil, "tag id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) taskMoveCommand() *cobra.Command {
	var status string
	var order int
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task to a column and position",
		Long:  "Move a task to a 0-based position in a column. Positions past the end append.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "task move", func(ctx context.Context, deps *runtimeDeps) error {
				task, err := deps.api.ReorderTask(ctx, common.ReorderTaskRequest{
					TaskID: args[0],
					Status: &status,
					Order:  &order,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s@%d\n", task.ID, task.Status, task.Order)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target column")
	cmd.Flags().IntVar(&order, "order", 0, "target 0-based position")
	_ = cmd.MarkFlagRequired("status")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func (c *cli) taskUpdateCommand() *cobra.Command {
	var (
		title, description, status, priority, due, assignee string
		order                                               int
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change task fields; a new --status moves the task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			req := common.UpdateTaskRequest{TaskID: args[0]}
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("status") {
				req.Status = &status
			}
			if flags.Changed("priority") {
				req.Priority = &priority
			}
			if flags.Changed("order") {
				req.Order = &order
			}
			if flags.Changed("due") {
				req.DueDate = nullableFlag(due)
			}
			if flags.Changed("assignee") {
				req.AssigneeID = nullableFlag(assignee)
			}
			return c.withActor(cmd, "task update", func(ctx context.Context, deps *runtimeDeps) error {
				task, err := deps.api.UpdateTask(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s@%d\n", task.ID, task.Status, task.Order)
				return err
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "new title")
	flags.StringVar(&description, "description", "", "new markdown description")
	flags.StringVar(&status, "status", "", "new column")
	flags.IntVar(&order, "order", 0, "position in the new column")
	flags.StringVar(&priority, "priority", "", "new priority")
	flags.StringVar(&due, "due", "", "new due date; empty clears it")
	flags.StringVar(&assignee, "assignee", "", "new assignee id; empty clears it")
	return cmd
}

// nullableFlag maps an explicitly passed flag to a set value, clearing it when blank.
func nullableFlag(raw string) common.Nullable[string] {
	if strings.TrimSpace(raw) == "" {
		return common.Nullable[string]{Set: true}
	}
	return common.Nullable[string]{Set: true, Value: &raw}
}

func (c *cli) taskDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and close the gap in its column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withActor(cmd, "task delete", func(ctx context.Context, deps *runtimeDeps) error {
				return deps.api.DeleteTask(ctx, args[0])
			})
		},
	}
}

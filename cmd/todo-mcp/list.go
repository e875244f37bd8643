package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/todo-mcp/internal/todo"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos, open and most urgent first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var (
	listCompleted bool
	listOpen      bool
	listPriority  string
	listOverdue   bool
	listTags      []string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show todo counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(listCmd, statsCmd)

	listCmd.Flags().BoolVar(&listCompleted, "completed", false, "Only completed todos")
	listCmd.Flags().BoolVar(&listOpen, "open", false, "Only open todos")
	listCmd.Flags().StringVarP(&listPriority, "priority", "p", "", "Only todos with this priority (low, medium, high)")
	listCmd.Flags().BoolVar(&listOverdue, "overdue", false, "Only overdue todos")
	listCmd.Flags().StringSliceVarP(&listTags, "tag", "t", nil, "Only todos with any of these tags (repeatable)")
	listCmd.MarkFlagsMutuallyExclusive("completed", "open")
}

// buildFilter turns the list flags into a store filter
func buildFilter(completed, open, overdue bool, priority string, tags []string) (todo.Filter, error) {
	var f todo.Filter
	switch {
	case completed:
		v := true
		f.Completed = &v
	case open:
		v := false
		f.Completed = &v
	}
	if overdue {
		v := true
		f.Overdue = &v
	}
	if priority != "" {
		p := todo.Priority(priority)
		if !p.IsValid() {
			return todo.Filter{}, fmt.Errorf("invalid priority %q: must be low, medium or high", priority)
		}
		f.Priority = p
	}
	f.Tags = tags
	return f, nil
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter(listCompleted, listOpen, listOverdue, listPriority, listTags)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	all, err := store.GetAllTodos()
	if err != nil {
		return err
	}
	now := time.Now()
	matched := todo.FilterTodos(all, filter, now)
	todo.SortTodos(matched)

	out := cmd.OutOrStdout()
	if len(matched) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No todos found."))
		return nil
	}
	for _, t := range matched {
		fmt.Fprintln(out, renderTodo(t, now))
	}
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d of %d todo(s)", len(matched), len(all))))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return err
	}
	list, err := store.GetTodoList()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderStats(stats))
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s, format %s, modified %s",
		store.Path(), list.Metadata.Version, list.Metadata.LastModified)))
	return nil
}

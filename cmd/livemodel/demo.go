package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/model"
	"github.com/vango-dev/livemodel/pkg/task"
)

func demoCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a demo model and print its state",
		Long: `Run one of the demo models and print every state it goes through.

Examples:
  livemodel demo counter --steps 5
  livemodel demo todos
  livemodel demo load settings.yaml --dir ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return lmerrors.New("E310").
				WithDetailf("%q is not a demo", args[0]).
				WithSuggestion("Run one of: counter, todos, load")
		},
	}

	cmd.AddCommand(
		counterDemoCmd(opts),
		todosDemoCmd(opts),
		loadDemoCmd(opts),
	)

	return cmd
}

func counterDemoCmd(opts *rootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Increment and reset a counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer configureEngine(cfg, newLogger(cfg, cmd.ErrOrStderr()))()
			return runCounterDemo(cmd.OutOrStdout(), steps)
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 3, "Number of increments")

	return cmd
}

func todosDemoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "todos",
		Short: "Create, toggle and remove members of a todo family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer configureEngine(cfg, newLogger(cfg, cmd.ErrOrStderr()))()
			return runTodosDemo(cmd.OutOrStdout(), cfg.KeyCompare())
		},
	}
}

func loadDemoCmd(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "load <key>",
		Short: "Load an object through a task",
		Long: `Load an object with the configured loader and print the decoded data.

Objects come from loader.bucket when set, and from loader.dir otherwise.
The decoder is picked from the key extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.Loader.Dir = dir
			}
			log := newLogger(cfg, cmd.ErrOrStderr())
			defer configureEngine(cfg, log)()

			t := task.New[any](nil, task.WithParams(args[0]))
			t.Model().Observe(func(a model.Activity) {
				if a.Type == model.ActivityWrite {
					log.Debug("task write", "prop", a.Prop)
				}
			})

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "loading %s\n", args[0])
			if _, err := t.Load(newLoader(cfg), cfg.Loader.Timeout).Wait(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(w, "loaded %s\n", args[0])
			return printJSON(w, "data", t.Data())
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to load from (default loader.dir)")

	return cmd
}

func printJSON(w io.Writer, label string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s\n", label, b)
	return err
}

func newCounter() *model.Model {
	return model.Create(model.Props{
		model.NameProp: "counter",
		"count":        0,
		"increment": func(m *model.Model, _ ...any) any {
			m.Set("count", m.Int("count")+1)
			return nil
		},
	})
}

func runCounterDemo(w io.Writer, steps int) error {
	counter := newCounter()
	notifications := 0
	counter.Listen(func() { notifications++ })

	if err := printJSON(w, "counter", counter.Data()); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		counter.Invoke("increment")
		if err := printJSON(w, "increment", counter.Data()); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "dirty: %v\n", counter.Dirty())

	counter.Reset(false)
	if err := printJSON(w, "reset", counter.Data()); err != nil {
		return err
	}
	fmt.Fprintf(w, "dirty: %v\n", counter.Dirty())
	fmt.Fprintf(w, "notifications: %d\n", notifications)
	return nil
}

func newTodos(cmp compare.Func) *model.Model {
	return model.New(model.Def{
		Props: model.Props{
			model.NameProp: "todo",
			"id":           0,
			"title":        "",
			"done":         false,
			"toggle": func(m *model.Model, _ ...any) any {
				m.Set("done", !m.Bool("done"))
				return nil
			},
		},
		Key:        "id",
		KeyCompare: cmp,
	})
}

func printMembers(w io.Writer, root *model.Model) error {
	for _, entry := range root.FamilyData() {
		if err := printJSON(w, fmt.Sprintf("todo %v", entry.Key), entry.Data); err != nil {
			return err
		}
	}
	return nil
}

func runTodosDemo(w io.Writer, cmp compare.Func) error {
	todos := newTodos(cmp)
	todos.HydrateFamily([]model.FamilyEntry{
		{Key: 1, Data: model.Data{"title": "write docs"}},
		{Key: 2, Data: model.Data{"title": "ship release"}},
	})

	for _, key := range []int{1, 2, 3} {
		todos.Family(key)
	}
	todos.Family(3).Set("title", "celebrate")
	todos.Family(2).Invoke("toggle")
	if err := printMembers(w, todos); err != nil {
		return err
	}

	done := 0
	members := todos.Members()
	for _, member := range members {
		if member.Bool("done") {
			done++
		}
	}
	fmt.Fprintf(w, "done: %d/%d\n", done, len(members))

	todos.Family(1).Remove()
	fmt.Fprintln(w, "removed: 1")
	if err := printMembers(w, todos); err != nil {
		return err
	}

	key := []any{"ops", 1}
	first := todos.Family(key)
	fmt.Fprintf(w, "composite key %v: same member %v\n", key, first == todos.Family([]any{"ops", 1}))
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// target is a resolved command line node reference.
type target struct {
	Key       string
	Kind      nodekey.Kind
	TopicName string
	Namespace string
}

// resolveTarget accepts a node key (t:/foo, name:Group, ns:/foo:bar), a
// topic name (/foo) or a group name.
func resolveTarget(tree *topictree.Tree, arg string) (target, error) {
	arg = strings.TrimSpace(arg)
	if k, err := nodekey.Parse(arg); err == nil {
		base := nodekey.BaseKey(arg)
		if k.Kind != nodekey.KindNamespace {
			if _, ok := tree.Node(base); !ok {
				return target{}, fmt.Errorf("no node with key %q", base)
			}
		}
		return target{Key: base, Kind: k.Kind, TopicName: k.TopicName, Namespace: k.Namespace}, nil
	}
	if strings.HasPrefix(arg, "/") {
		name, _ := nodekey.BaseTopic(arg)
		node, ok := tree.TopicNode(name)
		if !ok {
			return target{}, fmt.Errorf("no topic %q in the tree", name)
		}
		return target{Key: node.Key, Kind: nodekey.KindTopic, TopicName: node.TopicName}, nil
	}
	key, err := nodekey.Generate(nodekey.Params{Name: arg})
	if err != nil {
		return target{}, err
	}
	if _, ok := tree.Node(key); !ok {
		return target{}, fmt.Errorf("no group named %q", arg)
	}
	return target{Key: key, Kind: nodekey.KindGroup}, nil
}

// toggleFunc applies one mutation.
type toggleFunc func(e *topictree.Editor, state model.PanelState, t target, column int) (model.PanelState, error)

func (a *app) newToggleCmd() *cobra.Command {
	return a.toggleCommand("toggle <key|topic|group>", "Toggle one node's checkbox",
		`Flip the checkbox of a single group, topic or namespace in one column.`,
		1, func(e *topictree.Editor, state model.PanelState, t target, column int) (model.PanelState, error) {
			if t.Kind == nodekey.KindNamespace {
				return e.ToggleNamespaceChecked(state, namespaceToggle(t, column)), nil
			}
			return e.ToggleNodeChecked(state, t.Key, column), nil
		})
}

func (a *app) newToggleDescendantsCmd() *cobra.Command {
	return a.toggleCommand("toggle-descendants <key|topic|group>", "Check or uncheck a node and everything below it",
		`Apply the opposite of the node's checked state to the node, every
descendant and every namespace of the descendant topics.`,
		1, func(e *topictree.Editor, state model.PanelState, t target, column int) (model.PanelState, error) {
			if t.Kind == nodekey.KindNamespace {
				return e.ToggleNamespaceChecked(state, namespaceToggle(t, column)), nil
			}
			return e.ToggleCheckAllDescendants(state, t.Key, column), nil
		})
}

func (a *app) newToggleAncestorsCmd() *cobra.Command {
	return a.toggleCommand("toggle-ancestors <key|topic|group>", "Check or uncheck a node and the groups above it",
		`Apply the opposite of the node's checked state to the node and all of
its ancestors below the root.`,
		1, func(e *topictree.Editor, state model.PanelState, t target, column int) (model.PanelState, error) {
			parent := ""
			if t.Kind == nodekey.KindNamespace {
				parent = t.TopicName
			}
			return e.ToggleCheckAllAncestors(state, t.Key, column, parent), nil
		})
}

func (a *app) newToggleNamespaceCmd() *cobra.Command {
	return a.toggleCommand("toggle-namespace <topic> <namespace>", "Toggle one namespace of a topic",
		`Flip one namespace. A topic whose namespaces were never edited first
gets every other available namespace checked explicitly.`,
		2, func(e *topictree.Editor, state model.PanelState, t target, column int) (model.PanelState, error) {
			if t.Kind != nodekey.KindNamespace {
				return state, fmt.Errorf("%s is not a namespace", t.Key)
			}
			return e.ToggleNamespaceChecked(state, namespaceToggle(t, column)), nil
		})
}

func (a *app) toggleCommand(use, short, long string, nargs int, fn toggleFunc) *cobra.Command {
	var column int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runToggle(cmd.Context(), args, column, fn)
		},
	}
	cmd.Flags().IntVarP(&column, "column", "c", 0, "column to toggle: 0 base, 1 feature")
	return cmd
}

func (a *app) runToggle(ctx context.Context, args []string, column int, fn toggleFunc) error {
	in, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	v, err := a.view(in, in.State, "")
	if err != nil {
		return err
	}
	if column < 0 || column >= v.Tree.ColumnCount() {
		return fmt.Errorf("column %d out of range (tree has %d)", column, v.Tree.ColumnCount())
	}

	var t target
	if len(args) == 2 {
		t, err = namespaceTarget(v.Tree, args[0], args[1])
	} else {
		t, err = resolveTarget(v.Tree, args[0])
	}
	if err != nil {
		return err
	}

	next, err := fn(v.Editor, in.State, t, column)
	if err != nil {
		return err
	}
	if err := a.save(ctx, in, next); err != nil {
		return err
	}

	after, err := v.WithState(next, "")
	if err != nil {
		return err
	}
	checked := isChecked(after.Resolver, t, column)
	if a.jsonOutput {
		return writeJSON(a.out, map[string]any{"key": t.Key, "column": column, "checked": checked})
	}
	state := "unchecked"
	if checked {
		state = "checked"
	}
	_, err = fmt.Fprintf(a.out, "%s %s\n", nodekey.ColumnKey(t.Key, column), state)
	return err
}

func namespaceTarget(tree *topictree.Tree, topicArg, namespace string) (target, error) {
	t, err := resolveTarget(tree, topicArg)
	if err != nil {
		return target{}, err
	}
	if t.Kind != nodekey.KindTopic {
		return target{}, fmt.Errorf("%s is not a topic", t.Key)
	}
	return target{
		Key:       nodekey.NamespaceKey(t.TopicName, namespace, 0),
		Kind:      nodekey.KindNamespace,
		TopicName: t.TopicName,
		Namespace: namespace,
	}, nil
}

func namespaceToggle(t target, column int) topictree.NamespaceToggle {
	return topictree.NamespaceToggle{Topic: t.TopicName, Namespace: t.Namespace, Column: column}
}

func isChecked(r *topictree.Resolver, t target, column int) bool {
	if t.Kind == nodekey.KindNamespace {
		return r.IsNamespaceChecked(t.TopicName, t.Namespace, column)
	}
	return r.IsChecked(nodekey.ColumnKey(t.Key, column))
}

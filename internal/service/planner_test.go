package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

func TestPlannerCopyTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.txt":     "aaaa",
		"src/sub/b.txt": "bb",
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, "dst"), 0o755))

	var scanned []int
	plan, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationCopy,
		Sources:     []string{filepath.Join(root, "src")},
		Destination: filepath.Join(root, "dst"),
	}, func(items int, _ int64) { scanned = append(scanned, items) })
	require.NoError(t, err)

	require.Len(t, plan.Items, 1)
	item := plan.Items[0]
	assert.Equal(t, filepath.Join(root, "dst", "src"), item.Target)
	assert.False(t, item.Collision)

	assert.EqualValues(t, 6, plan.BytesTotal)
	assert.Equal(t, 4, plan.StepsTotal)
	assert.NotEmpty(t, scanned)

	// Every directory is created before anything inside it.
	created := map[string]bool{filepath.Join(root, "dst"): true}
	for _, step := range plan.Steps() {
		assert.True(t, created[filepath.Dir(step.Destination)], "parent of %s not created first", step.Destination)
		if step.Kind == model.StepMkdir {
			created[step.Destination] = true
		}
	}
}

func TestPlannerDestinationRules(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "a",
		"b.txt": "b",
	})
	planner := newTestPlanner(t, storage.OS{}, false)
	sep := string(filepath.Separator)

	tests := []struct {
		name        string
		sources     []string
		destination string
		want        []string
	}{
		{
			name:        "single source to new path",
			sources:     []string{"a.txt"},
			destination: "renamed.txt",
			want:        []string{"renamed.txt"},
		},
		{
			name:        "trailing separator means directory",
			sources:     []string{"a.txt"},
			destination: "newdir" + sep,
			want:        []string{"newdir/a.txt"},
		},
		{
			name:        "several sources go into destination",
			sources:     []string{"a.txt", "b.txt"},
			destination: "out",
			want:        []string{"out/a.txt", "out/b.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]string, 0, len(tt.sources))
			for _, source := range tt.sources {
				sources = append(sources, filepath.Join(root, source))
			}

			plan, err := planner.Plan(context.Background(), model.OperationRequest{
				Type:        model.OperationCopy,
				Sources:     sources,
				Destination: root + sep + tt.destination,
			}, nil)
			require.NoError(t, err)

			targets := make([]string, 0, len(plan.Items))
			for _, item := range plan.Items {
				targets = append(targets, item.Target)
			}
			want := make([]string, 0, len(tt.want))
			for _, rel := range tt.want {
				want = append(want, filepath.Join(root, filepath.FromSlash(rel)))
			}
			assert.Equal(t, want, targets)
		})
	}
}

func TestPlannerRejectsCopyIntoItself(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/inner/file.txt": "x"})

	_, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationMove,
		Sources:     []string{filepath.Join(root, "a")},
		Destination: filepath.Join(root, "a", "inner"),
	}, nil)

	var planErr *model.PlanningError
	require.ErrorAs(t, err, &planErr)
	assert.Contains(t, planErr.Reason, "into itself")
}

func TestPlannerSameTarget(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"dir/x.txt": "x"})
	planner := newTestPlanner(t, storage.OS{}, false)
	source := filepath.Join(root, "dir", "x.txt")

	plan, err := planner.Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationCopy,
		Sources:     []string{source},
		Destination: filepath.Join(root, "dir"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dir", "x (1).txt"), plan.Items[0].Target)

	plan, err = planner.Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationMove,
		Sources:     []string{source},
		Destination: filepath.Join(root, "dir"),
	}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Items[0].NoOp)
	assert.Empty(t, plan.Steps())
}

func TestPlannerFlagsCollision(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/file1.txt": "new",
		"b/file1.txt": "old",
	})

	plan, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationCopy,
		Sources:     []string{filepath.Join(root, "a", "file1.txt")},
		Destination: filepath.Join(root, "b"),
	}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Items[0].Collision)
}

func TestPlannerSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"tree/file.txt": "x"})
	require.NoError(t, os.Symlink(filepath.Join(root, "tree"), filepath.Join(root, "tree", "loop")))

	plan, err := newTestPlanner(t, storage.OS{}, true).Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationCopy,
		Sources:     []string{filepath.Join(root, "tree")},
		Destination: filepath.Join(root, "copy"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "symlink cycle")
	assert.Equal(t, 2, plan.StepsTotal, "the root mkdir and the file")
}

func TestPlannerSymlinksCopiedAsLinksByDefault(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"tree/file.txt": "x"})
	require.NoError(t, os.Symlink(filepath.Join(root, "tree"), filepath.Join(root, "tree", "loop")))

	plan, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:        model.OperationCopy,
		Sources:     []string{filepath.Join(root, "tree")},
		Destination: filepath.Join(root, "copy"),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Warnings)

	kinds := map[model.StepKind]int{}
	for _, step := range plan.Steps() {
		kinds[step.Kind]++
	}
	assert.Equal(t, 1, kinds[model.StepCopySymlink])
}

func TestPlannerPermanentDeleteOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"victim/a.txt":       "a",
		"victim/sub/b.txt":   "b",
		"victim/sub/c/d.txt": "d",
	})

	plan, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:      model.OperationDelete,
		Sources:   []string{filepath.Join(root, "victim")},
		Permanent: true,
	}, nil)
	require.NoError(t, err)

	removed := map[string]bool{}
	for _, step := range plan.Steps() {
		if step.Kind == model.StepRemoveDir {
			entries, readErr := os.ReadDir(step.Source)
			require.NoError(t, readErr)
			for _, entry := range entries {
				assert.True(t, removed[filepath.Join(step.Source, entry.Name())], "%s removed before its child %s", step.Source, entry.Name())
			}
		}
		removed[step.Source] = true
	}
	assert.Equal(t, filepath.Join(root, "victim"), plan.Steps()[len(plan.Steps())-1].Source)
}

func TestPlannerTrashDeleteIsOneStepPerSource(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/x.txt": "x", "b.txt": "b"})

	plan, err := newTestPlanner(t, storage.OS{}, false).Plan(context.Background(), model.OperationRequest{
		Type:    model.OperationDelete,
		Sources: []string{filepath.Join(root, "a"), filepath.Join(root, "b.txt")},
	}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Steps(), 2)
	for _, step := range plan.Steps() {
		assert.Equal(t, model.StepTrash, step.Kind)
	}
}

func TestPlannerErrors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})
	planner := newTestPlanner(t, storage.OS{}, false)

	tests := []struct {
		name    string
		request model.OperationRequest
		reason  string
	}{
		{
			name:    "no sources",
			request: model.OperationRequest{Type: model.OperationDelete},
			reason:  "no sources",
		},
		{
			name:    "missing source",
			request: model.OperationRequest{Type: model.OperationDelete, Sources: []string{filepath.Join(root, "nope")}},
			reason:  "does not exist",
		},
		{
			name:    "relative source",
			request: model.OperationRequest{Type: model.OperationDelete, Sources: []string{"a.txt"}},
			reason:  "invalid source path",
		},
		{
			name:    "copy without destination",
			request: model.OperationRequest{Type: model.OperationCopy, Sources: []string{filepath.Join(root, "a.txt")}},
			reason:  "requires a destination",
		},
		{
			name:    "rename to blank name",
			request: model.OperationRequest{Type: model.OperationRename, Sources: []string{filepath.Join(root, "a.txt")}, Destination: "   "},
			reason:  "invalid name",
		},
		{
			name:    "rename across directories",
			request: model.OperationRequest{Type: model.OperationRename, Sources: []string{filepath.Join(root, "a.txt")}, Destination: "sub/b.txt"},
			reason:  "invalid name",
		},
		{
			name:    "rename to parent entry",
			request: model.OperationRequest{Type: model.OperationRename, Sources: []string{filepath.Join(root, "a.txt")}, Destination: ".."},
			reason:  "invalid name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := planner.Plan(context.Background(), tt.request, nil)
			var planErr *model.PlanningError
			require.ErrorAs(t, err, &planErr)
			assert.Contains(t, planErr.Reason, tt.reason)
		})
	}
}

package registry_test

import (
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/forall/internal/funcspec"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/registry"
)

func newTree() *ir.Tree {
	tree := ir.NewTree(token.NewFileSet())
	library.Declare(tree)
	return tree
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	reg := registry.New(newTree())
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, e := range registry.DefaultEntries {
		if got := reg.Name(e.Op); got != e.Name {
			t.Errorf("Name(%s) = %q, want %q", e.Key, got, e.Name)
		}
	}
	if fn := reg.Fn(registry.OpTrivialLeader); fn.Name != "chpl_trivialLeader" {
		t.Errorf("Fn(OpTrivialLeader) = %s", fn.Name)
	}
}

func TestOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		specs   string
		wantErr string
		// op and want are checked when the override succeeds.
		op   registry.Op
		want string
	}{
		{
			name:  "rebind to a declared function",
			specs: "to-follower=_toFollowerZip",
			op:    registry.OpToFollower,
			want:  "_toFollowerZip",
		},
		{
			name:    "unknown key",
			specs:   "to-leader=_toLeader",
			wantErr: `unknown entry point "to-leader"`,
		},
		{
			name:    "undeclared function",
			specs:   "free-iterator=_release",
			wantErr: `library entry point "_release" is not declared`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			specs, err := funcspec.ParseList(tt.specs)
			if err != nil {
				t.Fatal(err)
			}
			reg := registry.New(newTree())
			err = reg.Override(specs)
			if err == nil {
				err = reg.Validate()
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := reg.Name(tt.op); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOverrideAfterUse(t *testing.T) {
	t.Parallel()

	reg := registry.New(newTree())
	_ = reg.Name(registry.OpFreeIterator)
	err := reg.Override([]funcspec.Spec{{Op: "free-iterator", FuncName: "_freeIterator"}})
	if err == nil {
		t.Error("Override() after a lookup succeeded, want an error")
	}
}

func TestCall(t *testing.T) {
	t.Parallel()

	tree := newTree()
	reg := registry.New(tree)
	arg := tree.Ref(token.NoPos, tree.True)
	call := reg.Call(token.NoPos, registry.OpStaticFastFollowCheck, arg)
	if got := call.CalleeName(); got != "chpl__staticFastFollowCheck" {
		t.Errorf("CalleeName() = %q", got)
	}
	if call.NumArgs() != 1 || call.Arg(0) != arg {
		t.Errorf("call arguments = %v, want the one passed", call.Args())
	}
}

func TestFollowerOps(t *testing.T) {
	t.Parallel()

	type ops struct{ ToFollower, GetIterator registry.Op }
	tests := []struct {
		fast, zippered bool
		want           ops
	}{
		{false, false, ops{registry.OpToFollower, registry.OpGetIterator}},
		{true, false, ops{registry.OpToFastFollower, registry.OpGetIterator}},
		{false, true, ops{registry.OpToFollowerZip, registry.OpGetIteratorZip}},
		{true, true, ops{registry.OpToFastFollowerZip, registry.OpGetIteratorZip}},
	}
	for _, tt := range tests {
		var got ops
		got.ToFollower, got.GetIterator = registry.FollowerOps(tt.fast, tt.zippered)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("FollowerOps(%v, %v) mismatch (-want +got):\n%s", tt.fast, tt.zippered, diff)
		}
	}

	static, dynamic := registry.FastFollowCheckOps(true)
	if static != registry.OpStaticFastFollowCheckZip || dynamic != registry.OpDynamicFastFollowCheckZip {
		t.Errorf("FastFollowCheckOps(true) = %v, %v", static, dynamic)
	}
}

package funcspec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/forall/internal/funcspec"
)

func TestParseList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []funcspec.Spec
		wantErr bool
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "single",
			input: "to-follower=_myToFollower",
			want:  []funcspec.Spec{{Op: "to-follower", FuncName: "_myToFollower"}},
		},
		{
			name:  "spaces",
			input: " get-iterator = _getIt , free-iterator=_freeIt",
			want: []funcspec.Spec{
				{Op: "get-iterator", FuncName: "_getIt"},
				{Op: "free-iterator", FuncName: "_freeIt"},
			},
		},
		{
			name:    "missing name",
			input:   "to-follower=",
			wantErr: true,
		},
		{
			name:    "no separator",
			input:   "to-follower",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := funcspec.ParseList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseList(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseList(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

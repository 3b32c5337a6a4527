//nolint:funlen // ok for tests
package importer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBucketTimestamps(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want [][]int64
	}{
		{
			name: "empty",
			in:   []int64{},
			want: nil,
		},
		{
			name: "single",
			in:   []int64{1000},
			want: [][]int64{{1000}},
		},
		{
			name: "adjacent pair merges",
			in:   []int64{1000, 1001},
			want: [][]int64{{1000, 1001}},
		},
		{
			name: "gap of two splits",
			in:   []int64{1000, 1001, 1003},
			want: [][]int64{{1000, 1001}, {1003}},
		},
		{
			// the window is anchored to the first member, so 2 starts a
			// new bucket even though it is adjacent to 1
			name: "anchored not chained",
			in:   []int64{0, 1, 2},
			want: [][]int64{{0, 1}, {2}},
		},
		{
			name: "duplicates share a bucket",
			in:   []int64{500, 500, 501, 600},
			want: [][]int64{{500, 500, 501}, {600}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketTimestamps(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("buckets not correct: %s", diff)
			}
		})
	}
}

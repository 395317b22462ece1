package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dray-io/edgegc/internal/pathedge"
)

func TestFineGrainedKeys(t *testing.T) {
	keyOf := FineGrainedKeys[string, string, string](testICFG)

	tests := []struct {
		name string
		edge testEdge
		want testKey
	}{
		{
			name: "entry edge",
			edge: pathedge.NewEdge("p1:entry", "a", "p1:entry", "a"),
			want: testKey{Procedure: "p1", Fact: "a"},
		},
		{
			name: "target fact ignored",
			edge: pathedge.NewEdge("p1:entry", "a", "p1:s3", "zz"),
			want: testKey{Procedure: "p1", Fact: "a"},
		},
		{
			name: "procedure from target",
			edge: pathedge.NewEdge("p1:entry", "a", "p2:s0", "b"),
			want: testKey{Procedure: "p2", Fact: "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyOf(tt.edge))
		})
	}
}

func TestProcedureKeys(t *testing.T) {
	keyOf := ProcedureKeys[string, string, string](testICFG)

	a := pathedge.NewEdge("p1:entry", "a", "p1:s1", "x")
	b := pathedge.NewEdge("p1:entry", "b", "p1:s2", "y")
	assert.Equal(t, "p1", keyOf(a))
	assert.Equal(t, keyOf(a), keyOf(b))
}

func TestContextKeyString(t *testing.T) {
	assert.Equal(t, "(main, x)", testKey{Procedure: "main", Fact: "x"}.String())
}

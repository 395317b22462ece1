package gc

import (
	"fmt"
	"strings"

	"github.com/dray-io/edgegc/internal/logging"
)

// Report summarises a collector's work at solver termination.
type Report struct {
	ReclaimedFacts int64
	ReclaimedEdges int64
	RemainingEdges int64
	PeakEdges      int64
	PeakMemoryMB   int64
}

// Lines renders the report, one statistic per line, in a fixed order.
func (r Report) Lines() []string {
	return []string{
		fmt.Sprintf("GC removed %d facts", r.ReclaimedFacts),
		fmt.Sprintf("GC removed %d path edges", r.ReclaimedEdges),
		fmt.Sprintf("Remaining path edge count is %d", r.RemainingEdges),
		fmt.Sprintf("Recorded maximum path edge count is %d", r.PeakEdges),
		fmt.Sprintf("Recorded maximum memory consumption is %d MB", r.PeakMemoryMB),
	}
}

func (r Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

func (r Report) log(l *logging.Logger) {
	lines := r.Lines()
	values := []struct {
		field string
		value int64
	}{
		{"reclaimedFacts", r.ReclaimedFacts},
		{"reclaimedEdges", r.ReclaimedEdges},
		{"remainingEdges", r.RemainingEdges},
		{"peakEdges", r.PeakEdges},
		{"peakMemoryMB", r.PeakMemoryMB},
	}
	for i, v := range values {
		l.Infof(lines[i], map[string]any{v.field: v.value})
	}
}

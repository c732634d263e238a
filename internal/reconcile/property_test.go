package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/model"
)

// TestEachOrderBlocksAtMostOnce replays the same batch many times, resolving
// every raised order in between, and checks no id is ever raised twice.
func TestEachOrderBlocksAtMostOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("an order id is raised at most once", prop.ForAll(
		func(owners []bool, rounds int) bool {
			viewer := viewerAt("2")
			records := make([]model.LogRecord, len(owners))
			for i, owned := range owners {
				rec := order(fmt.Sprintf("L%03d", len(owners)-i), time.Duration(i)*time.Second)
				if !owned {
					rec.FromBranch, rec.ToBranch = "1", "2"
				}
				records[i] = rec
			}
			batch := classify.ClassifyBatch(records, viewer)

			r := newReconciler(nil, &memoryStore{}, &countingPlayer{})
			seen := make(map[string]int)
			for i := 0; i < rounds; i++ {
				out := r.Reconcile(context.Background(), batch, viewer, false)
				if out.Raised != nil {
					seen[out.Raised.ID]++
				}
				if i%2 == 1 {
					r.ClearActive()
				}
			}
			for _, count := range seen {
				if count > 1 {
					return false
				}
			}
			return len(seen) <= len(owners)
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

package main

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/model"
)

const (
	demoHomeBranch   model.BranchID = "harbour"
	demoActivityTick                = 20 * time.Second
)

var demoBranches = []eventsource.Branch{
	{ID: "harbour", Name: "Harbour Yard"},
	{ID: "quarry", Name: "Quarry Road"},
	{ID: "depot", Name: "North Depot"},
}

var demoTools = []eventsource.Tool{
	{ID: "t-drill", Name: "Hammer Drill", BranchID: "harbour"},
	{ID: "t-saw", Name: "Circular Saw", BranchID: "quarry"},
	{ID: "t-ladder", Name: "Extension Ladder", BranchID: "depot"},
	{ID: "t-laser", Name: "Laser Level", BranchID: "harbour"},
	{ID: "t-pump", Name: "Sump Pump", BranchID: "quarry"},
}

// newDemoSource builds an in-memory change log with a little history,
// including one order waiting on home.
func newDemoSource(home model.BranchID) *eventsource.MemorySource {
	src := eventsource.NewMemorySource()
	for _, b := range demoBranches {
		src.AddBranch(b)
	}
	if !knownBranch(home) {
		src.AddBranch(eventsource.Branch{ID: home, Name: string(home)})
	}
	for _, t := range demoTools {
		src.AddTool(t)
	}

	now := time.Now()
	src.Seed(
		model.LogRecord{
			ID: "demo-1", Action: model.ActionTransfer, CreatedAt: now.Add(-3 * time.Hour),
			FromBranch: "depot", ToBranch: "quarry", Item: model.ItemRef{ID: "t-pump"},
		},
		model.LogRecord{
			ID: "demo-2", Action: model.ActionReceipt, CreatedAt: now.Add(-2 * time.Hour),
			FromBranch: "depot", ToBranch: "quarry", Item: model.ItemRef{ID: "t-pump"},
		},
	)

	// Inserted through the source so item state follows.
	_, _ = src.Insert(context.Background(), model.NewLogRecord{
		Action: model.ActionOrder, FromBranch: home, ToBranch: otherBranch(home, 0), ItemID: "t-drill",
	})
	return src
}

// runDemoActivity appends a random order or transfer on every tick until
// ctx ends, so push refreshes and toasts can be seen without a backend.
func runDemoActivity(ctx context.Context, src *eventsource.MemorySource, home model.BranchID, logger *zap.Logger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(demoActivityTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tool := demoTools[rng.Intn(len(demoTools))]
			action := model.ActionOrder
			if rng.Intn(2) == 0 {
				action = model.ActionTransfer
			}
			from := model.BranchID(tool.BranchID)
			to := otherBranch(from, rng.Intn(len(demoBranches)))
			if action == model.ActionOrder && rng.Intn(3) == 0 {
				from, to = home, otherBranch(home, rng.Intn(len(demoBranches)))
			}
			rec, err := src.Insert(ctx, model.NewLogRecord{
				Action: action, FromBranch: from, ToBranch: to, ItemID: tool.ID,
			})
			if err != nil {
				logger.Warn("demo insert failed", zap.Error(err))
				continue
			}
			logger.Debug("demo activity", zap.String("action", string(rec.Action)), zap.String("id", rec.ID))
		}
	}
}

func knownBranch(id model.BranchID) bool {
	for _, b := range demoBranches {
		if model.BranchID(b.ID) == id {
			return true
		}
	}
	return false
}

// otherBranch picks a demo branch different from id, starting at offset.
func otherBranch(id model.BranchID, offset int) model.BranchID {
	for i := range demoBranches {
		b := model.BranchID(demoBranches[(offset+i)%len(demoBranches)].ID)
		if b != id {
			return b
		}
	}
	return id
}

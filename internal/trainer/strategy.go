package trainer

import (
	"strings"

	"github.com/hyperjump/vecsync/internal/models"
)

// Strategy selects how a run reconciles ingested items with the store.
type Strategy string

const (
	// RetrainFromScratch drops the collection and embeds every item.
	RetrainFromScratch Strategy = "retrain_from_scratch"
	// IncrementalAdd embeds only items whose id is not stored yet.
	IncrementalAdd Strategy = "incremental_add"
	// IncrementalUpdate embeds every item, replacing stored ones.
	IncrementalUpdate Strategy = "incremental_update"
	// ProcessOnly ingests and chunks without touching the embedder or store.
	ProcessOnly Strategy = "process_only"
)

// Strategies lists every strategy in documentation order.
var Strategies = []Strategy{RetrainFromScratch, IncrementalAdd, IncrementalUpdate, ProcessOnly}

// existingAction is what a run does with an item whose id is already stored.
type existingAction int

const (
	existingNotChecked existingAction = iota
	existingSkip
	existingUpdate
)

// transition is the per-strategy behaviour consumed by Trainer.Sync.
type transition struct {
	drop     bool
	embed    bool
	existing existingAction
}

var transitions = map[Strategy]transition{
	RetrainFromScratch: {drop: true, embed: true, existing: existingNotChecked},
	IncrementalAdd:     {embed: true, existing: existingSkip},
	IncrementalUpdate:  {embed: true, existing: existingUpdate},
	ProcessOnly:        {},
}

// ParseStrategy accepts the snake_case names and a few aliases. Empty selects IncrementalAdd.
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "":
		return IncrementalAdd, nil
	case "retrain", "from_scratch":
		return RetrainFromScratch, nil
	case "add":
		return IncrementalAdd, nil
	case "update":
		return IncrementalUpdate, nil
	case "process", "dry_run":
		return ProcessOnly, nil
	}
	st := Strategy(norm)
	if _, ok := transitions[st]; !ok {
		return "", models.NewConfigurationError("training.strategy", "unknown strategy %q", s)
	}
	return st, nil
}

// NeedsEmbedder reports whether runs with this strategy call the embedder.
func (s Strategy) NeedsEmbedder() bool {
	return transitions[s].embed
}

func (s Strategy) String() string { return string(s) }

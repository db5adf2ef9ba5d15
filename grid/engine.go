package grid

// TransitionEngine turns a level crossing plus the current ledger
// state into an ordered list of intents. It is pure: planning never
// mutates the ledger, and a plan can be recomputed from the same
// inputs at any time.
type TransitionEngine struct {
	stepCount int
	downCross DownCrossPolicy
}

func NewTransitionEngine(stepCount int, downCross DownCrossPolicy) *TransitionEngine {
	return &TransitionEngine{stepCount: stepCount, downCross: downCross}
}

// Plan is the result of one transition.
type Plan struct {
	Intents []Intent
	// Terminal is set when the crossing reached a kill level; the
	// intents are the flatten sells and the instance closes after
	// executing them.
	Terminal bool
}

// holdings is the planning overlay: the ledger's open set plus the
// effect of intents planned so far in this transition. A multi-level
// walk sells units it just planned to buy, which the ledger cannot
// reflect until the fills land.
type holdings map[Level]bool

func snapshot(ledger *PositionLedger) holdings {
	h := make(holdings)
	for _, lv := range ledger.HeldLevels() {
		h[lv] = true
	}
	return h
}

// Transition plans the intents for a crossing from one level to
// another. The kill check runs before any walk: a crossing that lands
// on level 0 or StepCount flattens everything and buys nothing, no
// matter how many interior levels the move skipped.
func (e *TransitionEngine) Transition(from, to Level, ledger *PositionLedger) Plan {
	if from == to {
		return Plan{}
	}
	held := snapshot(ledger)
	if to == 0 || to == Level(e.stepCount) {
		return Plan{Intents: flattenIntents(held, ReasonBoundary), Terminal: true}
	}
	var intents []Intent
	if to > from {
		// Rising walk: at each crossed level, take the new rung and
		// release the one below it.
		for lv := from + 1; lv <= to; lv++ {
			if !held[lv] {
				intents = append(intents, Intent{Side: SideBuy, Level: lv, Reason: ReasonUpCross})
				held[lv] = true
			}
			if prev := lv - 1; held[prev] {
				intents = append(intents, Intent{Side: SideSell, Level: prev, Reason: ReasonUpCross})
				held[prev] = false
			}
		}
		return Plan{Intents: intents}
	}
	// Falling walk: accumulate each unheld rung on the way down.
	// Under the rolldown policy the rung being left is also sold,
	// mirroring the rising walk.
	for lv := from - 1; lv >= to; lv-- {
		if !held[lv] {
			intents = append(intents, Intent{Side: SideBuy, Level: lv, Reason: ReasonDownCross})
			held[lv] = true
		}
		if e.downCross == RollDown {
			if prev := lv + 1; held[prev] {
				intents = append(intents, Intent{Side: SideSell, Level: prev, Reason: ReasonRollDown})
				held[prev] = false
			}
		}
	}
	return Plan{Intents: intents}
}

// FlattenAll plans sells for every held level, highest first.
func (e *TransitionEngine) FlattenAll(ledger *PositionLedger, reason Reason) Plan {
	return Plan{Intents: flattenIntents(snapshot(ledger), reason), Terminal: true}
}

func flattenIntents(held holdings, reason Reason) []Intent {
	var intents []Intent
	// descending order so the most recently opened rungs unwind first
	maxLv := Level(-1)
	for lv := range held {
		if lv > maxLv {
			maxLv = lv
		}
	}
	for lv := maxLv; lv >= 0; lv-- {
		if held[lv] {
			intents = append(intents, Intent{Side: SideSell, Level: lv, Reason: reason})
		}
	}
	return intents
}

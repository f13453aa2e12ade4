package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"flow-analytics/internal/store"
	"flow-analytics/internal/workitem"
)

type GeneratorConfig struct {
	OrgID        string
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Count        int
	Now          time.Time
	Seed         uint64 // 0 seeds from Now
}

// stage is a workflow state and the share of an item's cycle time after which it is entered.
type stage struct {
	state    string
	category workitem.StateCategory
	kind     string
	at       float64
}

var workflow = []stage{
	{"Open", workitem.Proposed, workitem.StateTypeQueue, 0},
	{"Ready", workitem.InProgress, workitem.StateTypeQueue, 0.15},
	{"In Progress", workitem.InProgress, workitem.StateTypeActive, 0.25},
	{"Review", workitem.InProgress, workitem.StateTypeQueue, 0.75},
	{"Done", workitem.Completed, workitem.StateTypeQueue, 1},
}

var cancelled = stage{"Cancelled", workitem.Completed, workitem.StateTypeQueue, 0}

var types = []workitem.WorkItemTypeConfig{
	{ID: "story", Name: "Story", Level: workitem.LevelTeam, ServiceLevelExpectationInDays: 10},
	{ID: "bug", Name: "Bug", Level: workitem.LevelTeam, ServiceLevelExpectationInDays: 5},
	{ID: "feature", Name: "Feature", Level: workitem.LevelPortfolio, ServiceLevelExpectationInDays: 60},
}

var demand = map[string]string{"story": "Value Demand", "bug": "Failure Demand", "feature": "Value Demand"}

var boards = []struct{ id, name, team string }{
	{"board-1", "Team Red", "Red"},
	{"board-2", "Team Blue", "Blue"},
}

func intPtr(v int) *int { return &v }

// Generate builds a dataset of cfg.Count items arriving one per day up to cfg.Now, each walking the
// workflow as far as its sampled cycle time allows.
func Generate(cfg GeneratorConfig) store.Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.OrgID == "" {
		cfg.OrgID = "default"
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(cfg.Now.UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	d := store.Dataset{
		OrgID: cfg.OrgID,
		Settings: &workitem.OrgSettings{
			RollingWindowPeriodInDays:                   intPtr(90),
			StaledItemPortfolioLevelNumberOfDays:        intPtr(30),
			StaledItemTeamLevelNumberOfDays:             intPtr(5),
			StaledItemIndividualContributorNumberOfDays: intPtr(3),
		},
		Types:         types,
		Fields:        []workitem.CustomFieldConfig{{DatasourceFieldName: "team", DisplayName: "Team", Tags: []string{"team"}}},
		Normalisation: map[string]map[string]string{"demand": {}},
		Items:         []workitem.WorkItem{},
		Snapshots:     []workitem.Snapshot{},
	}
	for _, b := range boards {
		d.Contexts = append(d.Contexts, workitem.ContextSettings{ContextID: b.id, Name: b.name})
	}

	// The last arrival is today.
	firstArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := range cfg.Count {
		id := fmt.Sprintf("FLOW-%d", i+1)
		board := boards[i%len(boards)]
		arrival := firstArrival.Add(time.Duration(i*24+rng.IntN(8)) * time.Hour)

		t := pickType(rng)
		cos := pickClassOfService(rng)
		days := cycleTime(cfg, rng, i)
		switch {
		case t.ID == "feature":
			days *= 4
		case cos == "Expedite":
			days *= 0.5
		}

		path := workflow
		if rng.Float64() < 0.05 {
			// Discarded either before or after commitment.
			cut := 0.1
			if rng.Float64() < 0.5 {
				cut = 0.5
			}
			path = nil
			for _, s := range workflow {
				if s.at < cut {
					path = append(path, s)
				}
			}
			c := cancelled
			c.at = cut
			path = append(path, c)
		}

		item := workitem.WorkItem{
			WorkItemID:      id,
			Title:           fmt.Sprintf("%s %d", t.Name, i+1),
			WorkItemTypeID:  t.ID,
			WorkItemType:    t.Name,
			Level:           t.Level,
			ClassOfService:  cos,
			ContextID:       board.id,
			ArrivalDateTime: &arrival,
			CustomFields:    []workitem.CustomField{{Name: "team", Value: board.team}},
		}

		var last stage
		var history []workitem.Snapshot
		for _, s := range path {
			at := arrival.Add(time.Duration(days * s.at * 24 * float64(time.Hour)))
			if at.After(cfg.Now) {
				break
			}
			last = s
			history = append(history, workitem.Snapshot{
				WorkItemID: id, SnapshotDate: at, State: s.state, StateCategory: s.category, StateType: s.kind,
			})
			switch {
			case s.category == workitem.InProgress && item.CommitmentDateTime == nil:
				item.CommitmentDateTime = &at
			case s.category == workitem.Completed:
				item.DepartureDateTime = &at
				item.Discarded = s.state == cancelled.state
			}
		}

		item.State = last.state
		item.StateCategory = last.category
		item.StateType = last.kind
		changed := history[len(history)-1].SnapshotDate
		item.LastChangedDateTime = &changed

		switch item.StateCategory {
		case workitem.Proposed:
			item.Delayed = rng.Float64() < 0.1
		case workitem.InProgress:
			if rng.Float64() < 0.1 {
				item.Flagged = true
				history[len(history)-1].Flagged = true
			}
			if rng.Float64() < 0.8 {
				item.AssignedTo = fmt.Sprintf("%s member %d", board.team, rng.IntN(4)+1)
			}
		}

		d.Items = append(d.Items, item)
		d.Snapshots = append(d.Snapshots, history...)
		d.Normalisation["demand"][id] = demand[t.ID]
	}
	return d
}

// cycleTime samples the total cycle time in days.
func cycleTime(cfg GeneratorConfig, rng *rand.Rand, i int) float64 {
	k, lambda := 2.5, 9.5 // Mild: ~5 days in progress
	switch cfg.Scenario {
	case "chaos":
		k = 0.8
		if cfg.Distribution == "weibull" {
			lambda = 12.0
		}
	case "drift":
		ratio := float64(i) / float64(cfg.Count)
		k = 2.5 - (1.7 * ratio)
		lambda = 9.5 + (2.5 * ratio)
	}

	if cfg.Distribution == "weibull" {
		return weibullSample(rng, k, lambda)
	}
	days := 6.0 + rng.Float64()*5.0
	if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
		days += 10 + rng.Float64()*15 // black swans
	}
	if cfg.Scenario == "drift" && i > cfg.Count/2 {
		days *= 2.0
	}
	return days
}

func pickType(rng *rand.Rand) workitem.WorkItemTypeConfig {
	switch r := rng.Float64(); {
	case r < 0.7:
		return types[0]
	case r < 0.9:
		return types[1]
	default:
		return types[2]
	}
}

func pickClassOfService(rng *rand.Rand) string {
	switch r := rng.Float64(); {
	case r < 0.8:
		return "Standard"
	case r < 0.9:
		return "Expedite"
	default:
		return "Fixed Date"
	}
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

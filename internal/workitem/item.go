package workitem

import (
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// StateCategory is the coarse lifecycle bucket of a work item.
type StateCategory string

const (
	Proposed   StateCategory = "proposed"
	InProgress StateCategory = "inprogress"
	Completed  StateCategory = "completed"
)

// StateCategories lists the categories in lifecycle order.
var StateCategories = []StateCategory{Proposed, InProgress, Completed}

// ParseStateCategory accepts the canonical names plus a few tracker spellings.
func ParseStateCategory(s string) (StateCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proposed", "inventory", "backlog":
		return Proposed, true
	case "inprogress", "in-progress", "in_progress", "wip":
		return InProgress, true
	case "completed", "done":
		return Completed, true
	}
	return "", false
}

// Order returns the lifecycle position of the category.
func (c StateCategory) Order() int {
	switch c {
	case Proposed:
		return 0
	case InProgress:
		return 1
	case Completed:
		return 2
	}
	return 3
}

// Level is the work-item-type level used by stale thresholds.
type Level string

const (
	LevelPortfolio             Level = "Portfolio"
	LevelTeam                  Level = "Team"
	LevelIndividualContributor Level = "Individual Contributor"
)

// StateType distinguishes states where work happens from states where it waits.
const (
	StateTypeActive = "active"
	StateTypeQueue  = "queue"
)

// Date field names accepted by DateOf.
const (
	ArrivalDate     = "arrivalDateTime"
	CommitmentDate  = "commitmentDateTime"
	DepartureDate   = "departureDateTime"
	LastChangedDate = "lastChangedDateTime"
)

// CustomField is one name/value pair from the tracker.
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Flags are the classifications computed by the calculation engines. They are never read from storage.
type Flags struct {
	IsDelayed         bool `json:"isDelayed"`
	IsStale           bool `json:"isStale"`
	IsBlocked         bool `json:"isBlocked"`
	IsAboveSle        bool `json:"isAboveSle"`
	IsUnassigned      bool `json:"isUnassigned"`
	IsDiscardedBefore bool `json:"isDiscardedBefore"`
	IsDiscardedAfter  bool `json:"isDiscardedAfter"`
}

// WorkItem is one unit of delivery work as it currently exists in the tracking system.
type WorkItem struct {
	WorkItemID     string        `json:"workItemId"`
	Title          string        `json:"title,omitempty"`
	WorkItemTypeID string        `json:"workItemTypeId,omitempty"`
	WorkItemType   string        `json:"workItemType,omitempty"`
	Level          Level         `json:"level,omitempty"`
	State          string        `json:"state,omitempty"`
	StateCategory  StateCategory `json:"stateCategory"`
	StateType      string        `json:"stateType,omitempty"`
	ClassOfService string        `json:"classOfService,omitempty"`
	ContextID      string        `json:"contextId,omitempty"`
	AssignedTo     string        `json:"assignedTo,omitempty"`

	ArrivalDateTime     *time.Time `json:"arrivalDateTime,omitempty"`
	CommitmentDateTime  *time.Time `json:"commitmentDateTime,omitempty"`
	DepartureDateTime   *time.Time `json:"departureDateTime,omitempty"`
	LastChangedDateTime *time.Time `json:"lastChangedDateTime,omitempty"`

	// Raw tracker markers.
	Delayed   bool `json:"delayed,omitempty"`
	Discarded bool `json:"discarded,omitempty"`
	Flagged   bool `json:"flagged,omitempty"`

	NormalisedDisplayName string        `json:"normalisedDisplayName,omitempty"`
	CustomFields          []CustomField `json:"customFields,omitempty"`

	Flags
}

// Item returns the item itself; ExtendedWorkItem inherits it through embedding.
func (w WorkItem) Item() WorkItem {
	return w
}

// DateOf returns the named timestamp, or a contract violation when field is not a timestamp field.
func (w WorkItem) DateOf(field string) (*time.Time, error) {
	switch field {
	case ArrivalDate:
		return w.ArrivalDateTime, nil
	case CommitmentDate:
		return w.CommitmentDateTime, nil
	case DepartureDate:
		return w.DepartureDateTime, nil
	case LastChangedDate:
		return w.LastChangedDateTime, nil
	}
	return nil, Violation("field %q does not hold a parsed timestamp", field)
}

// SetDate replaces the named timestamp. Unknown fields are ignored.
func (w *WorkItem) SetDate(field string, t *time.Time) {
	switch field {
	case ArrivalDate:
		w.ArrivalDateTime = t
	case CommitmentDate:
		w.CommitmentDateTime = t
	case DepartureDate:
		w.DepartureDateTime = t
	case LastChangedDate:
		w.LastChangedDateTime = t
	}
}

// StartDateTime is the commitment date, falling back to arrival.
func (w WorkItem) StartDateTime() *time.Time {
	if w.CommitmentDateTime != nil {
		return w.CommitmentDateTime
	}
	return w.ArrivalDateTime
}

// LeadTimeInWholeDays counts calendar days from start to departure, inclusive of the start day.
// Items that have not departed report 0.
func (w WorkItem) LeadTimeInWholeDays() int {
	start := w.StartDateTime()
	if start == nil || w.DepartureDateTime == nil {
		return 0
	}
	return WholeDaysBetween(*start, *w.DepartureDateTime)
}

// AgeInWholeDays counts calendar days from commitment (or arrival) until now for items that have not departed.
func (w WorkItem) AgeInWholeDays(now time.Time) int {
	start := w.StartDateTime()
	if start == nil {
		return 0
	}
	end := now
	if w.DepartureDateTime != nil {
		end = *w.DepartureDateTime
	}
	return WholeDaysBetween(*start, end)
}

// DaysSinceLastChange counts the days since the item last changed state.
func (w WorkItem) DaysSinceLastChange(now time.Time) float64 {
	last := w.LastChangedDateTime
	if last == nil {
		last = w.StartDateTime()
	}
	if last == nil {
		return 0
	}
	return now.Sub(*last).Hours() / 24
}

// CustomFieldValues returns every value recorded for the named custom field.
func (w WorkItem) CustomFieldValues(name string) []string {
	var values []string
	for _, cf := range w.CustomFields {
		if strings.EqualFold(cf.Name, name) {
			values = append(values, cf.Value)
		}
	}
	return values
}

// WholeDaysBetween is floor(days)+1, so same-day work counts as one day.
func WholeDaysBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(math.Floor(end.Sub(start).Hours()/24)) + 1
}

// Validate checks that the state category agrees with the populated dates: completed items have
// departed and proposed items have not committed. An in-progress item may lack its commitment date.
func (w WorkItem) Validate() error {
	switch w.StateCategory {
	case Completed:
		if w.DepartureDateTime == nil {
			return Violation("work item %s is completed without a departure date", w.WorkItemID)
		}
	case Proposed:
		if w.CommitmentDateTime != nil {
			return Violation("work item %s is proposed but has a commitment date", w.WorkItemID)
		}
	case InProgress:
	default:
		return Violation("work item %s has unknown state category %q", w.WorkItemID, w.StateCategory)
	}
	return nil
}

// Itemer is satisfied by WorkItem and anything embedding it.
type Itemer interface {
	Item() WorkItem
}

// Sanitize drops items whose dates contradict their state category. Each dropped item is logged as a warning.
func Sanitize[T Itemer](items []T) []T {
	clean := make([]T, 0, len(items))
	for _, it := range items {
		if err := it.Item().Validate(); err != nil {
			log.Warn().Err(err).Str("workItemId", it.Item().WorkItemID).Msg("Skipping inconsistent work item")
			continue
		}
		clean = append(clean, it)
	}
	return clean
}

// IDs returns the work item ids in input order without duplicates.
func IDs[T Itemer](items []T) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := it.Item().WorkItemID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

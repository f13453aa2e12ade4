package vsm

import (
	"context"
	"fmt"
	"time"

	"flow-analytics/internal/filters"
	"flow-analytics/internal/memo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// Default stale thresholds in days, by work item type level.
var defaultStaleDays = map[workitem.Level]int{
	workitem.LevelPortfolio:             30,
	workitem.LevelTeam:                  7,
	workitem.LevelIndividualContributor: 3,
}

func (s *Session) criteria(ctx context.Context) (filters.Criteria, error) {
	c, err := s.filters.Criteria(ctx)
	if err != nil {
		return filters.Criteria{}, fmt.Errorf("failed to resolve filters: %w", err)
	}
	return c, nil
}

func (s *Session) key(scope, tag string, c filters.Criteria, opts workitem.QueryOptions) memo.Key {
	return memo.Key{OrgID: s.orgID(), Scope: scope, Tag: tag, Digest: c.Digest() + "/" + opts.String()}
}

// ScenarioItems returns the items of every requested scenario, each tagged with its scenario, in the order
// the scenarios were requested. Each scenario is cached on its own and missing ones are fetched concurrently.
func (s *Session) ScenarioItems(ctx context.Context, opts workitem.QueryOptions, scenarios ...workitem.RetrievalScenario) ([]workitem.ExtendedWorkItem, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	return s.scenarioItemsFor(ctx, c, "", opts, scenarios...)
}

// NormalisedScenarioItems is ScenarioItems joined with the normalisation of tag, which fills
// NormalisedDisplayName.
func (s *Session) NormalisedScenarioItems(ctx context.Context, tag string, opts workitem.QueryOptions, scenarios ...workitem.RetrievalScenario) ([]workitem.ExtendedWorkItem, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	return s.scenarioItemsFor(ctx, c, tag, opts, scenarios...)
}

func (s *Session) scenarioItemsFor(ctx context.Context, c filters.Criteria, tag string, opts workitem.QueryOptions, scenarios ...workitem.RetrievalScenario) ([]workitem.ExtendedWorkItem, error) {
	for _, scenario := range scenarios {
		if !scenario.IsValid() {
			return nil, workitem.Violation("unknown retrieval scenario %q", scenario)
		}
	}

	results := make([][]workitem.ExtendedWorkItem, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i, scenario := range scenarios {
		g.Go(func() error {
			items, err := s.loadScenario(gctx, c, tag, opts, scenario)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []workitem.ExtendedWorkItem
	for _, r := range results {
		combined = append(combined, r...)
	}
	if combined == nil {
		combined = []workitem.ExtendedWorkItem{}
	}
	return combined, nil
}

func (s *Session) loadScenario(ctx context.Context, c filters.Criteria, tag string, opts workitem.QueryOptions, scenario workitem.RetrievalScenario) ([]workitem.ExtendedWorkItem, error) {
	cache := s.scenarios
	if tag != "" {
		cache = s.normalised
	}
	return cache.Get(ctx, s.key(string(scenario), tag, c, opts), func(ctx context.Context) ([]workitem.ExtendedWorkItem, error) {
		var (
			items []workitem.ExtendedWorkItem
			err   error
		)
		if tag == "" {
			items, err = s.deps.States.GetExtendedWorkItemsWithScenarios(ctx, s.orgID(), []workitem.RetrievalScenario{scenario}, c, opts)
		} else {
			items, err = s.deps.States.GetNormalisedExtendedWorkItemsWithScenarios(ctx, s.orgID(), []workitem.RetrievalScenario{scenario}, c, tag, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s items: %w", scenario, err)
		}
		s.log.Debug().Str("scenario", string(scenario)).Str("tag", tag).Int("count", len(items)).Msg("Scenario items fetched")
		return workitem.Sanitize(items), nil
	})
}

// StateItems returns the items currently in category.
func (s *Session) StateItems(ctx context.Context, category workitem.StateCategory, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	return s.states.Get(ctx, s.key(string(category), "", c, opts), func(ctx context.Context) ([]workitem.WorkItem, error) {
		items, err := s.deps.States.GetWorkItems(ctx, s.orgID(), category, c, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s items: %w", category, err)
		}
		return workitem.Sanitize(items), nil
	})
}

// NormalisedStateItems is StateItems joined with the normalisation of tag.
func (s *Session) NormalisedStateItems(ctx context.Context, category workitem.StateCategory, tag string, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	return s.states.Get(ctx, s.key(string(category), tag, c, opts), func(ctx context.Context) ([]workitem.WorkItem, error) {
		items, err := s.deps.States.GetNormalisedWorkItems(ctx, s.orgID(), category, c, tag, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch normalised %s items: %w", category, err)
		}
		return workitem.Sanitize(items), nil
	})
}

// OrgSettings returns the organisation settings, or zero settings when none are stored.
func (s *Session) OrgSettings(ctx context.Context) (workitem.OrgSettings, error) {
	if s.deps.Settings == nil {
		return workitem.OrgSettings{}, nil
	}
	return s.settings.Get(ctx, memo.Key{OrgID: s.orgID(), Scope: "settings"}, func(ctx context.Context) (workitem.OrgSettings, error) {
		settings, err := s.deps.Settings.GetSettings(ctx, s.orgID())
		if err != nil {
			return workitem.OrgSettings{}, fmt.Errorf("failed to fetch settings: %w", err)
		}
		if settings == nil {
			return workitem.OrgSettings{}, nil
		}
		return *settings, nil
	})
}

// StaleThresholds resolves the stale day threshold per level. A settings failure falls back to the defaults.
func (s *Session) StaleThresholds(ctx context.Context) map[workitem.Level]int {
	thresholds := make(map[workitem.Level]int, len(defaultStaleDays))
	for level, days := range defaultStaleDays {
		thresholds[level] = days
	}

	settings, err := s.OrgSettings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Using default stale thresholds")
		return thresholds
	}
	override := func(level workitem.Level, days *int) {
		if days != nil && *days > 0 {
			thresholds[level] = *days
		}
	}
	override(workitem.LevelPortfolio, settings.StaledItemPortfolioLevelNumberOfDays)
	override(workitem.LevelTeam, settings.StaledItemTeamLevelNumberOfDays)
	override(workitem.LevelIndividualContributor, settings.StaledItemIndividualContributorNumberOfDays)
	return thresholds
}

// WorkItemTypes returns the configured work item types.
func (s *Session) WorkItemTypes(ctx context.Context) ([]workitem.WorkItemTypeConfig, error) {
	if s.deps.Config == nil {
		return nil, nil
	}
	return s.types.Get(ctx, memo.Key{OrgID: s.orgID(), Scope: "work-item-types"}, func(ctx context.Context) ([]workitem.WorkItemTypeConfig, error) {
		types, err := s.deps.Config.GetWorkItemTypes(ctx, s.orgID())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch work item types: %w", err)
		}
		return types, nil
	})
}

// CustomFieldConfigs returns the custom field configuration.
func (s *Session) CustomFieldConfigs(ctx context.Context) ([]workitem.CustomFieldConfig, error) {
	if s.deps.Config == nil {
		return nil, nil
	}
	return s.customFields.Get(ctx, memo.Key{OrgID: s.orgID(), Scope: "custom-fields"}, func(ctx context.Context) ([]workitem.CustomFieldConfig, error) {
		configs, err := s.deps.Config.GetCustomFieldConfigs(ctx, s.orgID())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch custom field configs: %w", err)
		}
		return configs, nil
	})
}

// Snapshots returns the state history of the given items up to until.
func (s *Session) Snapshots(ctx context.Context, ids []string, until time.Time) ([]workitem.Snapshot, error) {
	if len(ids) == 0 {
		return []workitem.Snapshot{}, nil
	}
	digest := fmt.Sprintf("%v@%s", ids, until.Format(time.RFC3339Nano))
	return s.snapshots.Get(ctx, memo.Key{OrgID: s.orgID(), Scope: "snapshots", Digest: digest}, func(ctx context.Context) ([]workitem.Snapshot, error) {
		snaps, err := s.deps.Snapshots.GetTreatedSnapshots(ctx, s.orgID(), ids, until)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
		}
		return snaps, nil
	})
}

// fieldValues collects the values of every custom field carrying tag.
func fieldValues(w workitem.WorkItem, configs []workitem.CustomFieldConfig, tag string) []string {
	var values []string
	for _, cfg := range configs {
		if !cfg.HasTag(tag) {
			continue
		}
		for _, v := range w.CustomFieldValues(cfg.DatasourceFieldName) {
			if v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

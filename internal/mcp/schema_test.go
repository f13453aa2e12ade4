package mcp

import (
	"slices"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestToolInputSchemas(t *testing.T) {
	donut, err := jsonschema.For[DonutArgs](nil)
	if err != nil {
		t.Fatalf("schema inference failed: %v", err)
	}
	for _, prop := range []string{"org_id", "from", "to", "aggregation", "flagged", "arrival", "state_category"} {
		p, ok := donut.Properties[prop]
		if !ok {
			t.Errorf("expected property %s in donut schema", prop)
			continue
		}
		if p.Description == "" {
			t.Errorf("expected a description for %s", prop)
		}
	}
	if len(donut.Required) != 0 {
		t.Errorf("expected every widget filter to be optional, got required %v", donut.Required)
	}

	info, err := jsonschema.For[WidgetInfoArgs](nil)
	if err != nil {
		t.Fatalf("schema inference failed: %v", err)
	}
	if !slices.Equal(info.Required, []string{"widget_type"}) {
		t.Errorf("expected widget_type to be required, got %v", info.Required)
	}
}

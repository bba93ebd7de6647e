package gateway

import (
	"encoding/json"
	"testing"
)

func TestItems_UnmarshalJSON_SingleObject(t *testing.T) {
	var items Items
	if err := json.Unmarshal([]byte(`{"contentid":"1"}`), &items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := items.All()
	if len(all) != 1 {
		t.Fatalf("All() returned %d items, want 1", len(all))
	}
}

func TestItems_UnmarshalJSON_Array(t *testing.T) {
	var items Items
	if err := json.Unmarshal([]byte(`[{"contentid":"1"},{"contentid":"2"}]`), &items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := items.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d items, want 2", len(all))
	}
}

func TestItems_UnmarshalJSON_Empty(t *testing.T) {
	var items Items
	if err := items.UnmarshalJSON([]byte("   ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all := items.All(); all != nil {
		t.Fatalf("All() = %v, want nil", all)
	}
}

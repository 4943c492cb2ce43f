package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/reclite/pkg/utils"
)

func TestParseBehaviorType(t *testing.T) {
	tests := []struct {
		in      string
		want    BehaviorType
		wantErr bool
	}{
		{"view", BehaviorView, false},
		{"CLICK", BehaviorClick, false},
		{" like ", BehaviorLike, false},
		{"purchase", BehaviorPurchase, false},
		{"share", BehaviorShare, false},
		{"", BehaviorUnknown, true},
		{"bookmark", BehaviorUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBehaviorType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBehaviorType(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseBehaviorType(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("error %v is not a validation error", err)
			}
		})
	}
}

func TestBehaviorWeightOrder(t *testing.T) {
	order := []BehaviorType{BehaviorPurchase, BehaviorShare, BehaviorLike, BehaviorClick, BehaviorView}
	for i := 1; i < len(order); i++ {
		if order[i-1].Weight() <= order[i].Weight() {
			t.Errorf("weight(%s)=%v should exceed weight(%s)=%v",
				order[i-1], order[i-1].Weight(), order[i], order[i].Weight())
		}
	}
	if BehaviorUnknown.Weight() != 0 || BehaviorUnknown.Valid() {
		t.Error("zero value must be invalid with weight 0")
	}
}

func TestBehaviorType_JSON(t *testing.T) {
	b := UserBehavior{UserID: "u1", ItemID: "i1", Type: BehaviorPurchase}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"behaviorType":"purchase"`) {
		t.Errorf("Marshal = %s", data)
	}

	var got UserBehavior
	if err := json.Unmarshal([]byte(`{"userId":"u1","itemId":"i1","behaviorType":"bookmark"}`), &got); err == nil {
		t.Error("Unmarshal accepted unknown behavior type")
	}
}

func TestValidateBehavior(t *testing.T) {
	tests := []struct {
		name    string
		b       UserBehavior
		wantMsg string
	}{
		{"valid", UserBehavior{UserID: "u1", ItemID: "i1", Type: BehaviorView}, ""},
		{"missing user", UserBehavior{ItemID: "i1", Type: BehaviorView}, "userId is required"},
		{"blank item", UserBehavior{UserID: "u1", ItemID: "  ", Type: BehaviorView}, "itemId is required"},
		{"unknown type", UserBehavior{UserID: "u1", ItemID: "i1"}, "invalid behavior type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBehavior(tt.b)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("ValidateBehavior() = %v", err)
				}
				return
			}
			if !IsValidationError(err) {
				t.Fatalf("ValidateBehavior() = %v, want INVALID_INPUT", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if de := GetDomainError(err); de.Module != ModuleBehavior {
				t.Errorf("module = %q", de.Module)
			}
		})
	}
}

func TestGetDomainError_Wrapped(t *testing.T) {
	base := NewDomainError(ModuleStore, ErrorCodeUnavailable, "store down")
	wrapped := fmt.Errorf("blacklist: %w", base)
	if GetDomainError(wrapped) != base {
		t.Error("GetDomainError did not unwrap")
	}
	if IsDomainError(errors.New("plain")) || GetDomainError(nil) != nil {
		t.Error("plain errors are not domain errors")
	}
}

func TestItemStats_Add(t *testing.T) {
	s := NewItemStats("i1")
	s.Add(UserBehavior{ItemID: "i1", Type: BehaviorView, Timestamp: 20})
	s.Add(UserBehavior{ItemID: "i1", Type: BehaviorPurchase, Timestamp: 10})
	if s.TotalBehaviors != 2 || s.WeightedScore != 6 || s.LastInteraction != 20 {
		t.Errorf("stats = %+v", *s)
	}
	if s.BehaviorCounts[BehaviorView] != 1 || s.BehaviorCounts[BehaviorShare] != 0 {
		t.Errorf("counts = %v", s.BehaviorCounts)
	}
}

func TestResults(t *testing.T) {
	a := NewItem("a")
	a.Score = 2
	a.SetLabel(LabelReason, utils.Label{Value: "first", Source: utils.SourceRecall})
	b := NewItem("b")
	rs := ToResults([]*Item{a, nil, b})
	if !slices.Equal(rs.ItemIDs(), []string{"a", "b"}) {
		t.Fatalf("ToResults = %v", rs.ItemIDs())
	}
	if rs[0].Reason != "first" || rs[1].Reason != "" {
		t.Errorf("reasons = %q, %q", rs[0].Reason, rs[1].Reason)
	}

	// 序列可重复遍历，也支持提前终止
	for range 2 {
		n := 0
		for range rs.All() {
			n++
		}
		if n != 2 {
			t.Errorf("All() yielded %d", n)
		}
	}
	for r := range rs.All() {
		if r.ItemID != "a" {
			t.Errorf("first = %s", r.ItemID)
		}
		break
	}
}

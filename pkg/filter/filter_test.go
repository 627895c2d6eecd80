package filter

import "testing"

func TestMatchEmptyFilterMatchesEverything(t *testing.T) {
	if !Match(Filter{}, map[string]any{"tag": "x"}) {
		t.Fatal("empty filter should match everything")
	}
	if !Match(nil, nil) {
		t.Fatal("nil filter should match nil metadata")
	}
}

func TestMatchScalarSugarIsEq(t *testing.T) {
	f := Filter{"tag": "x"}
	if !Match(f, map[string]any{"tag": "x"}) {
		t.Fatal("expected match")
	}
	if Match(f, map[string]any{"tag": "y"}) {
		t.Fatal("expected no match")
	}
}

func TestMatchMissingFieldFails(t *testing.T) {
	f := Filter{"tag": map[string]any{"eq": "x"}}
	if Match(f, map[string]any{}) {
		t.Fatal("missing field should fail every operator")
	}
}

func TestMatchOrderedComparisons(t *testing.T) {
	f := Filter{"rating": map[string]any{"gte": 8.5, "lt": 10.0}}
	if !Match(f, map[string]any{"rating": 9.0}) {
		t.Fatal("9.0 should satisfy gte 8.5 and lt 10")
	}
	if Match(f, map[string]any{"rating": 10.0}) {
		t.Fatal("10.0 should fail lt 10")
	}
	if Match(f, map[string]any{"rating": 8.0}) {
		t.Fatal("8.0 should fail gte 8.5")
	}
}

func TestMatchTypeMismatchEvaluatesFalse(t *testing.T) {
	f := Filter{"rating": map[string]any{"gt": "not-a-number"}}
	if Match(f, map[string]any{"rating": 5.0}) {
		t.Fatal("incompatible type comparison must evaluate false, not error")
	}
}

func TestMatchContains(t *testing.T) {
	f := Filter{"title": map[string]any{"contains": "Dark"}}
	if !Match(f, map[string]any{"title": "A Very Dark Fantasy"}) {
		t.Fatal("expected case-insensitive substring match")
	}
	if Match(f, map[string]any{"title": "Bright Comedy"}) {
		t.Fatal("expected no match")
	}
}

func TestMatchInNin(t *testing.T) {
	f := Filter{"genre": map[string]any{"in": []any{"Adventure", "Dark Fantasy"}}}
	if !Match(f, map[string]any{"genre": "Adventure"}) {
		t.Fatal("expected membership match")
	}
	if Match(f, map[string]any{"genre": "Comedy"}) {
		t.Fatal("expected no membership match")
	}

	nf := Filter{"genre": map[string]any{"nin": []any{"Comedy"}}}
	if !Match(nf, map[string]any{"genre": "Adventure"}) {
		t.Fatal("expected nin to pass when not a member")
	}

	// expected must be a list; otherwise evaluates false.
	bad := Filter{"genre": map[string]any{"in": "Adventure"}}
	if Match(bad, map[string]any{"genre": "Adventure"}) {
		t.Fatal("in with non-list expected value must evaluate false")
	}
}

func TestMatchMultipleFieldsConjunctive(t *testing.T) {
	f := Filter{"tag": "x", "rating": map[string]any{"gte": 5.0}}
	if !Match(f, map[string]any{"tag": "x", "rating": 7.0}) {
		t.Fatal("expected match")
	}
	if Match(f, map[string]any{"tag": "x", "rating": 2.0}) {
		t.Fatal("expected no match because rating too low")
	}
}

func TestMatchUnknownOperatorDefaultsTrue(t *testing.T) {
	f := Filter{"tag": map[string]any{"fuzzy": "x"}}
	if !Match(f, map[string]any{"tag": "anything"}) {
		t.Fatal("unknown operator should default to match-all")
	}
}

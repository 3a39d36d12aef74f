package main

import "testing"

func TestParseToolArgs(t *testing.T) {
	raw, err := parseToolArgs([]string{"limit=20", "champion=Lee Sin", "match_id=na1_1=2"})
	if err != nil {
		t.Fatal(err)
	}
	if raw["limit"] != "20" || raw["champion"] != "Lee Sin" || raw["match_id"] != "na1_1=2" {
		t.Errorf("raw = %v", raw)
	}

	for _, bad := range []string{"limit", "=5"} {
		if _, err := parseToolArgs([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

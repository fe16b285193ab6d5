package browser

import "testing"

func TestShouldAbort(t *testing.T) {
	t.Parallel()

	abort := abortSet([]ResourceType{ResourceImage, ResourceFont})

	// CDP reports types in CamelCase; the set stores lowercase wire names.
	cases := []struct {
		reported string
		blocked  bool
	}{
		{"Image", true},
		{"Font", true},
		{"Document", false},
		{"Stylesheet", false},
		{"XHR", false},
	}
	for _, tc := range cases {
		if got := shouldAbort(abort, tc.reported); got != tc.blocked {
			t.Fatalf("shouldAbort(%q) = %v, want %v", tc.reported, got, tc.blocked)
		}
	}

	if shouldAbort(nil, "Image") {
		t.Fatal("empty abort set must never block")
	}
}

func TestAbortSet(t *testing.T) {
	t.Parallel()

	if abortSet(nil) != nil {
		t.Fatal("abortSet(nil) should be nil")
	}
	set := abortSet([]ResourceType{ResourceXHR, ResourceXHR})
	if len(set) != 1 {
		t.Fatalf("duplicate types should collapse, got %d entries", len(set))
	}
}

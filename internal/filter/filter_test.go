package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/opstream/internal/event"
)

const (
	keySource Key = "source"
	keyKind   Key = "kind"
	keyAge    Key = "age"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newItems() *Compositor[event.Item] {
	return New(event.Item.DisplayName,
		OneOf(keySource, func(it event.Item) string { return it.Source }),
		OneOf(keyKind, func(it event.Item) string { return it.Kind }),
		Within(keyAge, func(it event.Item) time.Time { return it.Published }, func() time.Time { return testNow }),
	)
}

func corpus() []event.Item {
	return []event.Item{
		{ID: "1", Name: "Quarterly report", Source: "drive", Kind: "doc", Published: testNow.Add(-time.Hour)},
		{ID: "2", Name: "Design review notes", Source: "drive", Kind: "doc", Published: testNow.Add(-48 * time.Hour)},
		{ID: "3", Name: "Incident REPORT", Source: "wiki", Kind: "page", Published: testNow.Add(-12 * time.Hour)},
		{ID: "4", Name: "Roadmap", Source: "wiki", Kind: "page", Published: testNow.Add(-2 * time.Hour)},
	}
}

func ids(items []event.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestEmptyStateMatchesEverything(t *testing.T) {
	c := newItems()
	if c.IsActive() {
		t.Error("new compositor should be inactive")
	}
	if got := ids(c.Apply(corpus())); len(got) != 4 {
		t.Errorf("Apply() kept %v, want all 4", got)
	}
}

func TestQueryIsCaseInsensitiveSubstring(t *testing.T) {
	c := newItems()
	c.SetQuery("report")

	if diff := cmp.Diff([]string{"1", "3"}, ids(c.Apply(corpus()))); diff != "" {
		t.Errorf("Apply() (-want +got):\n%s", diff)
	}
}

func TestPredicatesCompose(t *testing.T) {
	c := newItems()
	c.SetValues(keySource, "WIKI")
	c.SetValues(keyAge, "6h")

	if diff := cmp.Diff([]string{"4"}, ids(c.Apply(corpus()))); diff != "" {
		t.Errorf("Apply() (-want +got):\n%s", diff)
	}

	c.SetQuery("road")
	if !c.Matches(corpus()[3]) {
		t.Error("Roadmap should match query+source+age")
	}
	c.SetQuery("report")
	if c.Matches(corpus()[3]) {
		t.Error("Roadmap should not match query 'report'")
	}
}

func TestWithinUsesLargestDuration(t *testing.T) {
	c := newItems()
	c.SetValues(keyAge, "1h30m", "24h", "bogus")

	if diff := cmp.Diff([]string{"1", "3", "4"}, ids(c.Apply(corpus()))); diff != "" {
		t.Errorf("Apply() (-want +got):\n%s", diff)
	}

	c.SetValues(keyAge, "bogus")
	if got := len(c.Apply(corpus())); got != 4 {
		t.Errorf("unparseable age kept %d items, want 4", got)
	}
}

func TestToggle(t *testing.T) {
	c := newItems()
	c.Toggle(keyKind, "doc")
	c.Toggle(keyKind, "page")
	if diff := cmp.Diff([]string{"doc", "page"}, c.State().Selected(keyKind)); diff != "" {
		t.Errorf("after two toggles (-want +got):\n%s", diff)
	}

	c.Toggle(keyKind, "doc")
	c.Toggle(keyKind, "page")
	if c.IsActive() {
		t.Errorf("toggling every value off should leave state inactive: %+v", c.State())
	}
}

func TestClearIsOneStep(t *testing.T) {
	c := newItems()
	c.SetQuery("abc")
	c.SetValues(keySource, "ok")

	var seen []State
	c.OnChange(func(s State) { seen = append(seen, s) })

	c.Clear()

	if len(seen) != 1 {
		t.Fatalf("Clear() notified %d times, want 1", len(seen))
	}
	if seen[0].Active() {
		t.Errorf("listener saw partially cleared state: %+v", seen[0])
	}
	if c.IsActive() {
		t.Error("IsActive() after Clear")
	}
	for _, it := range corpus() {
		if !c.Matches(it) {
			t.Errorf("item %s filtered after Clear", it.ID)
		}
	}

	c.Clear()
	if len(seen) != 1 {
		t.Error("clearing an inactive state should not notify")
	}
}

func TestUnchangedSetsDoNotNotify(t *testing.T) {
	c := newItems()
	n := 0
	c.OnChange(func(State) { n++ })

	c.SetQuery("x")
	c.SetQuery("x")
	c.SetValues(keySource, "a", "b")
	c.SetValues(keySource, "a", "b")
	c.SetValues(keyKind)

	if n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}
}

func TestStateIsACopy(t *testing.T) {
	c := newItems()
	c.SetValues(keySource, "drive")

	s := c.State()
	s.Values[keySource][0] = "mutated"
	s.Values[keyKind] = []string{"doc"}

	if diff := cmp.Diff(State{Values: map[Key][]string{keySource: {"drive"}}}, c.State()); diff != "" {
		t.Errorf("State() aliases internal state (-want +got):\n%s", diff)
	}
}

func TestPureForms(t *testing.T) {
	c := newItems()
	items := corpus()
	s := State{Query: "notes", Values: map[Key][]string{keySource: {"drive"}}}

	if !IsActive(s) {
		t.Error("IsActive(s) = false")
	}
	if IsActive(State{Values: map[Key][]string{keyKind: nil}}) {
		t.Error("empty value lists should not count as active")
	}
	if !c.MatchState(s, items[1]) || c.MatchState(s, items[0]) {
		t.Error("MatchState disagrees with query+source")
	}
	if c.IsActive() {
		t.Error("MatchState must not change the compositor")
	}
}

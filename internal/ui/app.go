package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/debounce"
	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/filter"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
)

// Filter keys for the structured predicates.
const (
	KeySource filter.Key = "source"
	KeyKind   filter.Key = "kind"
	KeyAge    filter.Key = "age"
)

// ageOptions are cycled by the age key. The empty value means no limit.
var ageOptions = []string{"", "1h", "24h"}

// Config wires the App to its collaborators.
type Config struct {
	Registry *operation.Registry // required
	Bridge   *Bridge             // required
	Clock    clock.Clock
	Quiet    time.Duration // search debounce
	Logger   *otel.Logger
	Ring     *otel.RingBuffer // debug overlay source
	Title    string
}

// App is the root Bubble Tea model.
// IMPORTANT: App never reads a transport. Records arrive as messages and are
// applied to the registry on the update loop.
type App struct {
	reg     *operation.Registry
	bridge  *Bridge
	search  *debounce.Debouncer[string]
	filters *filter.Compositor[event.Item]
	obs     *otel.Logger
	ring    *otel.RingBuffer
	title   string

	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	selected     string // operation ID
	searching    bool
	debugVisible bool
	err          error
	width        int
	height       int
	ready        bool
}

// NewApp creates the App and hooks registry and debouncer callbacks into
// the bridge.
func NewApp(cfg Config) App {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Title == "" {
		cfg.Title = "opstream"
	}
	b := cfg.Bridge
	obs := cfg.Logger

	cfg.Registry.OnPhase(func(id string, p phase.Phase) {
		b.Send(PhaseChanged{ID: id, Phase: p})
	})
	cfg.Registry.OnSettled(func(id string) {
		b.Send(OperationSettled{ID: id})
	})

	search := debounce.New(cfg.Quiet,
		func(q string) { b.Send(QueryCommitted{Query: q}) },
		debounce.WithClock[string](cfg.Clock),
		debounce.WithReset[string](func() { b.Send(PaginationReset{}) }),
	)

	filters := filter.New(event.Item.DisplayName,
		filter.OneOf(KeySource, func(it event.Item) string { return it.Source }),
		filter.OneOf(KeyKind, func(it event.Item) string { return it.Kind }),
		filter.Within(KeyAge, func(it event.Item) time.Time { return it.Published }, cfg.Clock.Now),
	)
	filters.OnChange(func(s filter.State) {
		obs.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFilterChange, Comp: "ui", Query: s.Query, Count: len(s.Values)})
	})

	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "filter results"
	in.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = RunningStyle

	return App{
		reg:     cfg.Registry,
		bridge:  b,
		search:  search,
		filters: filters,
		obs:     obs,
		ring:    cfg.Ring,
		title:   cfg.Title,
		input:   in,
		spinner: s,
		help:    help.New(),
	}
}

// Init starts the spinner and the bridge listener.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.bridge.Listen())
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, tick := msg.(spinner.TickMsg); !tick && otel.TraceEnabled() {
		a.obs.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindUIMessage, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case OperationBegan:
		if _, err := a.reg.BeginID(msg.ID, msg.Label); err != nil {
			a.err = err
		}
		if a.selected == "" {
			a.selected = msg.ID
		}
		return a, nil

	case RecordArrived:
		inst, ok := a.reg.Get(msg.ID)
		if !ok {
			return a, nil // dismissed while streaming
		}
		if err := inst.Observe(msg.Record); err != nil && !errors.Is(err, operation.ErrClosed) {
			a.err = err
		}
		return a, nil

	case StreamClosed:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			a.err = fmt.Errorf("stream %s: %w", shortID(msg.ID), msg.Err)
		}
		return a, nil

	case PhaseChanged, OperationSettled:
		// State is read from the registry at render time.
		return a, a.bridge.Listen()

	case PaginationReset:
		// A reset only belongs to a commit the filter has not applied yet.
		// After a clear both sides read "" and the queued pair is stale.
		if a.search.Committed() != a.filters.State().Query {
			if inst, ok := a.reg.Get(a.selected); ok {
				inst.ResetReveal()
			}
		}
		return a, a.bridge.Listen()

	case QueryCommitted:
		if msg.Query != a.search.Committed() {
			// Superseded by a later commit or a clear.
			return a, a.bridge.Listen()
		}
		a.filters.SetQuery(msg.Query)
		a.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSearchCommit, Comp: "ui", Query: msg.Query})
		return a, a.bridge.Listen()
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.searching {
		return a.handleSearchKey(msg)
	}

	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		a.moveSelection(1)

	case key.Matches(msg, keys.Up):
		a.moveSelection(-1)

	case key.Matches(msg, keys.Expand):
		if inst, ok := a.reg.Get(a.selected); ok {
			inst.Expand()
		}

	case key.Matches(msg, keys.Search):
		a.searching = true
		return a, a.input.Focus()

	case key.Matches(msg, keys.Clear):
		a.clearFilters()

	case key.Matches(msg, keys.Source):
		a.cycle(KeySource, a.choices(func(it event.Item) string { return it.Source }))

	case key.Matches(msg, keys.Kind):
		a.cycle(KeyKind, a.choices(func(it event.Item) string { return it.Kind }))

	case key.Matches(msg, keys.Age):
		a.cycle(KeyAge, ageOptions)

	case key.Matches(msg, keys.Close):
		a.dismissSelected()

	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible

	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	}

	return a, nil
}

// handleSearchKey routes keys to the search box. Every edit is echoed
// immediately and committed by the debouncer once typing pauses.
func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Accept):
		a.searching = false
		a.input.Blur()
		a.search.Flush()
		return a, nil

	case key.Matches(msg, keys.Escape):
		a.searching = false
		a.input.Blur()
		return a, nil

	case key.Matches(msg, keys.Clear):
		a.clearFilters()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.search.Input(a.input.Value())
	return a, cmd
}

// clearFilters resets query and predicates in one step. The debouncer is
// synced rather than fed, so clearing never schedules a commit.
func (a *App) clearFilters() {
	a.filters.Clear()
	a.search.Sync("")
	a.input.SetValue("")
	a.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFilterClear, Comp: "ui"})
}

func (a *App) moveSelection(delta int) {
	views := a.reg.Views()
	if len(views) == 0 {
		return
	}
	i := slices.IndexFunc(views, func(v operation.View) bool { return v.ID == a.selected })
	i = max(0, min(len(views)-1, i+delta))
	a.selected = views[i].ID
}

func (a *App) dismissSelected() {
	views := a.reg.Views()
	i := slices.IndexFunc(views, func(v operation.View) bool { return v.ID == a.selected })
	if i < 0 {
		return
	}
	_ = a.reg.Close(a.selected)
	views = slices.Delete(views, i, i+1)
	a.selected = ""
	if len(views) > 0 {
		a.selected = views[min(i, len(views)-1)].ID
	}
}

// choices returns "" followed by the distinct non-empty field values of the
// selected operation's items, in first-seen order.
func (a App) choices(field func(event.Item) string) []string {
	out := []string{""}
	inst, ok := a.reg.Get(a.selected)
	if !ok {
		return out
	}
	for _, it := range inst.View().Items {
		if v := field(it); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// cycle advances the single selected value of k through options.
func (a *App) cycle(k filter.Key, options []string) {
	cur := ""
	if sel := a.filters.State().Selected(k); len(sel) > 0 {
		cur = sel[0]
	}
	i := slices.Index(options, cur)
	next := options[(i+1)%len(options)]
	if next == "" {
		a.filters.SetValues(k)
		return
	}
	a.filters.SetValues(k, next)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		return debugOverlay(a.ring, a.width, a.height) + "\n" + debugStatusBar(a.width)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	views := a.reg.Views()
	if len(views) == 0 {
		b.WriteString(HelpStyle.Render("Waiting for operations..."))
		b.WriteString("\n")
	}
	var current *operation.View
	for i := range views {
		v := views[i]
		b.WriteString(a.renderOperation(v, v.ID == a.selected))
		b.WriteString("\n")
		if v.ID == a.selected {
			current = &views[i]
		}
	}

	if current != nil {
		b.WriteString("\n")
		b.WriteString(a.renderItems(*current))
	}

	if a.searching || a.input.Value() != "" {
		b.WriteString(FilterBar.Width(a.width).Render(a.input.View()))
		b.WriteString("\n")
	}
	if a.err != nil {
		b.WriteString(ErrorStyle.Width(a.width).Render("Error: " + a.err.Error() + " (press any key to dismiss)"))
		b.WriteString("\n")
	}
	b.WriteString(StatusBar.Width(a.width).Render(a.help.View(keys)))
	return b.String()
}

func (a App) renderHeader() string {
	header := TitleStyle.Render(a.title)
	if s := a.filters.State(); s.Active() {
		header += " " + FilterBadge.Render(describeFilter(s))
	}
	return header
}

func describeFilter(s filter.State) string {
	var parts []string
	if s.Query != "" {
		parts = append(parts, fmt.Sprintf("%q", s.Query))
	}
	for _, k := range []filter.Key{KeySource, KeyKind, KeyAge} {
		if vs := s.Selected(k); len(vs) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(vs, ",")))
		}
	}
	return "filtered: " + strings.Join(parts, " ")
}

// renderOperation renders one operation line with its phase indicator.
func (a App) renderOperation(v operation.View, selected bool) string {
	var status string
	switch v.Phase {
	case phase.Idle:
		status = StatusBarText.Render("waiting")
	case phase.InProgress:
		status = a.spinner.View() + RunningStyle.Render(" running")
	case phase.JustFinished:
		status = DoneBadge.Render("✓ done")
	case phase.Settled:
		status = StatusBarText.Render("✓")
	}

	label := fmt.Sprintf("%s  %d items", v.Label, len(v.Items))
	var styled string
	switch {
	case selected:
		styled = SelectedItem.Render(label)
	case v.Phase == phase.Settled:
		styled = SettledItem.Render(label)
	default:
		styled = NormalItem.Render(label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, styled, " ", status)
}

// renderItems renders the selected operation's filtered items, limited to
// its reveal count.
func (a App) renderItems(v operation.View) string {
	matched := a.filters.Apply(v.Items)
	shown := matched[:min(v.Visible, len(matched))]

	var b strings.Builder
	for _, it := range shown {
		line := it.DisplayName()
		if it.Source != "" {
			line = SourceBadge.Render(it.Source) + line
		}
		b.WriteString(NormalItem.Render(line))
		b.WriteString("\n")
	}
	if more := len(matched) - len(shown); more > 0 {
		b.WriteString(MoreStyle.Render(fmt.Sprintf("+%d more (press +)", more)))
		b.WriteString("\n")
	}
	if a.filters.IsActive() {
		b.WriteString(FilterBarCount.Render(fmt.Sprintf("  %d of %d match", len(matched), len(v.Items))))
		b.WriteString("\n")
	}
	return b.String()
}

func shortID(id string) string {
	return truncateRunes(id, 8)
}

// Selected returns the selected operation ID (for testing).
func (a App) Selected() string {
	return a.selected
}

// Filters returns the current filter state (for testing).
func (a App) Filters() filter.State {
	return a.filters.State()
}

// SearchText returns the search box echo (for testing).
func (a App) SearchText() string {
	return a.input.Value()
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/pipeline"
	"github.com/abelbrown/mentions/internal/viewmodel"
)

// AppConfig wires the App to the load pipeline.
// IMPORTANT: App does NOT hold the Loader. It receives states via messages.
type AppConfig struct {
	// Load runs one load cycle tagged with id. It runs on a command
	// goroutine and must return promptly once ctx is cancelled.
	Load func(ctx context.Context, id uint64) pipeline.State

	// NextID reserves a load sequence number. Nil uses a local counter.
	NextID func() uint64

	Context       context.Context // parent of every load; nil means Background
	Tier          model.Tier      // initially selected tab
	MarkdownStyle string          // glamour style for the detail pane
	Obs           ObsConfig
}

// ObsConfig carries observability hooks.
type ObsConfig struct {
	Ring *otel.RingBuffer
}

type viewMode int

const (
	modeList viewMode = iota
	modeDetail
)

// App is the root Bubble Tea model.
type App struct {
	cfg    AppConfig
	cancel context.CancelFunc

	loadID  uint64 // newest load started; results for other IDs are stale
	loading bool
	state   pipeline.State // last state accepted from a load
	page    viewmodel.Page

	tab     int
	cursor  int
	mode    viewMode
	detail  viewport.Model
	spinner spinner.Model

	width        int
	height       int
	ready        bool
	debugVisible bool
}

// NewApp creates an App. The first load starts from Init.
func NewApp(cfg AppConfig) App {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	a := App{
		cfg:     cfg,
		loading: cfg.Load != nil,
		detail:  viewport.New(0, 0),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
	}
	for i, t := range model.Tiers() {
		if t == cfg.Tier {
			a.tab = i
		}
	}
	return a
}

// Init requests the first load.
func (a App) Init() tea.Cmd {
	if a.cfg.Load == nil {
		return nil
	}
	return func() tea.Msg { return ReloadRequested{Reason: "startup"} }
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.detail.Width = msg.Width
		a.detail.Height = a.contentHeight()
		if a.mode == modeDetail {
			a = a.refreshDetail()
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ReloadRequested:
		return a.startLoad()

	case LoadComplete:
		return a.applyState(msg.State), nil
	}

	if a.mode == modeDetail {
		var cmd tea.Cmd
		a.detail, cmd = a.detail.Update(msg)
		return a, cmd
	}
	return a, nil
}

// startLoad cancels any load in flight and starts a new one.
func (a App) startLoad() (App, tea.Cmd) {
	if a.cfg.Load == nil {
		return a, nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(a.cfg.Context)
	a.cancel = cancel

	if a.cfg.NextID != nil {
		a.loadID = a.cfg.NextID()
	} else {
		a.loadID++
	}
	a.loading = true

	load, id := a.cfg.Load, a.loadID
	return a, tea.Batch(a.spinner.Tick, func() tea.Msg {
		return LoadComplete{State: load(ctx, id)}
	})
}

// applyState accepts the state of the current load and drops stale ones.
func (a App) applyState(st pipeline.State) App {
	if st.Report.LoadID != a.loadID {
		return a
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.loading = false
	a.state = st

	if st.Status != pipeline.StatusReady {
		a.page = viewmodel.Page{}
		a.mode = modeList
		a.cursor = 0
		return a
	}

	a.page = viewmodel.Build(st.Result)
	if a.tab >= len(a.page.Tabs) {
		a.tab = 0
	}
	if n := a.itemCount(); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
	if a.mode == modeDetail {
		if a.itemCount() == 0 {
			a.mode = modeList
		} else {
			a = a.refreshDetail()
		}
	}
	return a
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit

	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil

	case key.Matches(msg, keys.Reload):
		return a.startLoad()
	}

	if a.debugVisible || a.state.Status != pipeline.StatusReady {
		return a, nil
	}

	if a.mode == modeDetail {
		if key.Matches(msg, keys.Back) {
			a.mode = modeList
			return a, nil
		}
		var cmd tea.Cmd
		a.detail, cmd = a.detail.Update(msg)
		return a, cmd
	}

	n := a.itemCount()
	switch {
	case key.Matches(msg, keys.Down):
		if a.cursor < n-1 {
			a.cursor++
		}
	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, keys.Top):
		a.cursor = 0
	case key.Matches(msg, keys.Bottom):
		if n > 0 {
			a.cursor = n - 1
		}
	case key.Matches(msg, keys.NextTab):
		if len(a.page.Tabs) > 0 {
			a.tab = (a.tab + 1) % len(a.page.Tabs)
			a.cursor = 0
		}
	case key.Matches(msg, keys.PrevTab):
		if len(a.page.Tabs) > 0 {
			a.tab = (a.tab + len(a.page.Tabs) - 1) % len(a.page.Tabs)
			a.cursor = 0
		}
	case key.Matches(msg, keys.Open):
		if n > 0 {
			a.mode = modeDetail
			a = a.refreshDetail()
			a.detail.GotoTop()
		}
	}
	return a, nil
}

// itemCount is the number of rows in the current list.
func (a App) itemCount() int {
	if a.page.Kind == model.ResultByThread {
		return len(a.page.Threads)
	}
	if a.tab < len(a.page.Tabs) {
		return len(a.page.Tabs[a.tab].Cards)
	}
	return 0
}

// refreshDetail re-renders the detail pane for the selected row.
func (a App) refreshDetail() App {
	var md string
	now := time.Now()
	switch {
	case a.page.Kind == model.ResultByThread && a.cursor < len(a.page.Threads):
		md = threadMarkdown(a.page.Threads[a.cursor], now)
	case a.tab < len(a.page.Tabs) && a.cursor < len(a.page.Tabs[a.tab].Cards):
		md = cardMarkdown(a.page.Tabs[a.tab].Cards[a.cursor], now)
	default:
		return a
	}
	a.detail.SetContent(renderMarkdown(md, a.cfg.MarkdownStyle, a.width-2))
	return a
}

// contentHeight is the screen height minus the tab bar and status bar.
func (a App) contentHeight() int {
	h := a.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		return debugOverlay(a.cfg.Obs.Ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	var body string
	switch {
	case a.state.Status == "" || (a.loading && a.state.Status != pipeline.StatusReady):
		body = a.loadingView()
	case a.state.Status == pipeline.StatusError:
		body = a.errorView()
	case a.mode == modeDetail:
		body = a.headerLine() + "\n" + a.detail.View() + "\n"
	case a.page.Kind == model.ResultByThread:
		body = a.headerLine() + "\n" + RenderThreads(a.page.Threads, a.cursor, a.width, a.contentHeight())
	default:
		var cards []viewmodel.Card
		if a.tab < len(a.page.Tabs) {
			cards = a.page.Tabs[a.tab].Cards
		}
		body = a.headerLine() + "\n" + RenderCards(cards, a.cursor, a.width, a.contentHeight())
	}

	return body + a.statusBar()
}

// headerLine is the tab bar for product results and a title otherwise.
func (a App) headerLine() string {
	if a.page.Kind == model.ResultByThread {
		return SectionHeader.Render(fmt.Sprintf("Threads (%s)", humanize.Comma(int64(len(a.page.Threads)))))
	}
	return RenderTabs(a.page.Tabs, a.tab, a.width)
}

func (a App) loadingView() string {
	return HelpStyle.Render(a.spinner.View() + " Loading mentions...")
}

func (a App) errorView() string {
	title := "Load failed"
	if a.state.NoData() {
		title = "No data available"
	}
	width := a.width - 6
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(ErrorStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(wordwrap.String(a.state.Message(), width))
	b.WriteString("\n")
	for _, w := range a.state.Report.Warnings() {
		b.WriteString("\n")
		b.WriteString(WarnText.Render(wordwrap.String("• "+w, width)))
	}
	b.WriteString("\n\nPress r to retry.")
	return HelpStyle.Render(b.String()) + "\n"
}

func (a App) statusBar() string {
	var left string
	switch {
	case a.loading:
		left = a.spinner.View() + " Loading..."
	case a.state.Status == pipeline.StatusError:
		left = "Error"
	default:
		n := a.itemCount()
		pos := 0
		if n > 0 {
			pos = a.cursor + 1
		}
		left = fmt.Sprintf("%d/%d · %s mentions", pos, n, humanize.Comma(int64(a.page.Mentions)))
		if fin := a.state.Report.Finished; !fin.IsZero() {
			left += " · updated " + humanize.Time(fin)
		}
		if w := len(a.state.Report.Warnings()); w > 0 {
			left += " · " + WarnText.Render(plural(w, "source")+" unavailable")
		}
	}

	var hints []string
	switch {
	case a.state.Status != pipeline.StatusReady:
		hints = []string{hint(keys.Reload), hint(keys.Debug), hint(keys.Quit)}
	case a.mode == modeDetail:
		hints = []string{hint(keys.Back), hint(keys.Reload), hint(keys.Quit)}
	default:
		hints = []string{hint(keys.Up), hint(keys.Open)}
		if a.page.Kind != model.ResultByThread {
			hints = append(hints, hint(keys.NextTab))
		}
		hints = append(hints, hint(keys.Reload), hint(keys.Debug), hint(keys.Quit))
	}
	return RenderStatusBar(left, hints, a.width)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Tab returns the selected tier tab (for testing).
func (a App) Tab() int {
	return a.tab
}

// Page returns the current view model (for testing).
func (a App) Page() viewmodel.Page {
	return a.page
}

// State returns the last accepted load state (for testing).
func (a App) State() pipeline.State {
	return a.state
}

// LoadID returns the sequence number of the newest load.
func (a App) LoadID() uint64 {
	return a.loadID
}

// Loading reports whether a load is in flight.
func (a App) Loading() bool {
	return a.loading
}

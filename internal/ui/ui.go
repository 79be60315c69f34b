package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	HistoryView ViewState = iota
	DetailView
	ResolveView
	ResultView
)

// ClientName is recorded as the client of scans resolved from the TUI.
const ClientName = "tui"

// DefaultLimit is the number of recent scans loaded into the history list.
const DefaultLimit = 100

// Store is the slice of the scan repository the TUI needs.
type Store interface {
	Recent(limit int) ([]*models.Scan, error)
	Create(scan *models.Scan) error
	Delete(id string) error
}

var openBrowser = shared.OpenBrowser

// Model represents the TUI application state.
type Model struct {
	view     ViewState
	store    Store
	limit    int
	width    int
	height   int
	history  list.Model
	scans    []*models.Scan
	selected *models.Scan
	input    textinput.Model
	resolved *links.Resolution
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI model. A nil store disables history; links still resolve.
func NewModel(store Store, limit int) *Model {
	if limit <= 0 {
		limit = DefaultLimit
	}

	input := textinput.New()
	input.Placeholder = "https://open.spotify.com/track/..."
	input.Prompt = "› "
	input.CharLimit = 2048

	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Scan History"
	history.SetShowHelp(false)

	return &Model{
		view:    HistoryView,
		store:   store,
		limit:   limit,
		history: history,
		input:   input,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the TUI on the alternate screen and blocks until it exits.
func Run(store Store, limit int) error {
	_, err := tea.NewProgram(NewModel(store, limit), tea.WithAltScreen()).Run()
	return err
}

// Init loads the scan history.
func (m *Model) Init() tea.Cmd {
	return m.loadScans()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.SetSize(msg.Width-4, msg.Height-6)
		m.input.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ResolveView:
			return m.handleResolveKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgScansLoaded:
		data := msg.data.(scansLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.scans = data.scans
		items := make([]list.Item, len(data.scans))
		for i, scan := range data.scans {
			items[i] = scanItem{scan: scan}
		}
		return m, m.history.SetItems(items)

	case MsgScanResolved:
		data := msg.data.(scanResolved)
		res := data.resolution
		m.resolved = &res
		m.view = ResultView
		switch {
		case data.err != nil:
			m.status = styles.warn.Render(fmt.Sprintf("not recorded: %v", data.err))
		case data.scan != nil:
			m.status = styles.ok.Render(fmt.Sprintf("recorded as #%d", data.scan.Sequence()))
			return m, m.loadScans()
		default:
			m.status = ""
		}
		return m, nil

	case MsgScanDeleted:
		data := msg.data.(scanDeleted)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("delete failed: %v", data.err))
			return m, nil
		}
		m.status = "deleted"
		return m, m.loadScans()

	case MsgStatus:
		m.status = msg.data.(string)
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+r to retry, q to quit", m.err))
	}

	switch m.view {
	case HistoryView:
		return m.renderHistory()
	case DetailView:
		return m.renderDetail()
	case ResolveView:
		return m.renderResolve()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.history.FilterState() == list.Filtering {
		return m.updateComponents(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.err = nil
		return m, m.loadScans()
	case key.Matches(msg, m.keys.resolve):
		return m, m.startResolve()
	case key.Matches(msg, m.keys.enter):
		if scan := m.selectedScan(); scan != nil {
			m.selected = scan
			m.status = ""
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.open):
		if scan := m.selectedScan(); scan != nil {
			return m, m.open(scan.Link().OpenURL())
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if scan := m.selectedScan(); scan != nil && m.store != nil {
			return m, m.deleteScan(scan.ID())
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = HistoryView
		m.selected = nil
		m.status = ""
	case key.Matches(msg, m.keys.open):
		return m, m.open(m.selected.Link().OpenURL())
	}
	return m, nil
}

func (m *Model) handleResolveKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.force):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = HistoryView
		m.status = ""
		return m, nil
	case key.Matches(msg, m.keys.enter):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			m.status = styles.warn.Render("paste a link first")
			return m, nil
		}
		m.input.Blur()
		return m, m.resolve(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.resolve):
		return m, m.startResolve()
	case key.Matches(msg, m.keys.open):
		return m, m.open(m.resolved.OpenURL)
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = HistoryView
		m.resolved = nil
		m.status = ""
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case HistoryView:
		m.history, cmd = m.history.Update(msg)
	case ResolveView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedScan() *models.Scan {
	if item, ok := m.history.SelectedItem().(scanItem); ok {
		return item.scan
	}
	return nil
}

func (m *Model) startResolve() tea.Cmd {
	m.view = ResolveView
	m.status = ""
	m.resolved = nil
	m.input.Reset()
	return m.input.Focus()
}

func (m *Model) loadScans() tea.Cmd {
	return func() tea.Msg {
		if m.store == nil {
			return scansLoadedMsg(nil, nil)
		}
		scans, err := m.store.Recent(m.limit)
		return scansLoadedMsg(scans, err)
	}
}

// resolve mirrors POST /resolve: the text always resolves and recording is best effort.
func (m *Model) resolve(text string) tea.Cmd {
	return func() tea.Msg {
		res := links.Resolve(text)
		if m.store == nil {
			return scanResolvedMsg(res, nil, nil)
		}

		scan := models.NewScan(text, ClientName)
		if err := m.store.Create(scan); err != nil {
			return scanResolvedMsg(res, nil, err)
		}
		return scanResolvedMsg(res, scan, nil)
	}
}

func (m *Model) deleteScan(id string) tea.Cmd {
	return func() tea.Msg {
		return scanDeletedMsg(id, m.store.Delete(id))
	}
}

func (m *Model) open(target string) tea.Cmd {
	return func() tea.Msg {
		if target == "" {
			return statusMsg(styles.warn.Render("nothing to open"))
		}
		if err := openBrowser(target); err != nil {
			return statusMsg(styles.err.Render(fmt.Sprintf("open failed: %v", err)))
		}
		return statusMsg("opened " + target)
	}
}

func (m *Model) footer(bindings ...key.Binding) string {
	out := m.help.ShortHelpView(bindings)
	if m.status != "" {
		out = m.status + "\n" + out
	}
	return out
}

func (m *Model) renderHistory() string {
	if m.store == nil {
		title := styles.title.Render("Scan History")
		body := styles.warn.Render("History is disabled; resolved links are not recorded.")
		return fmt.Sprintf("%s\n%s\n\n%s", title, body, m.footer(m.keys.resolve, m.keys.quit))
	}
	if len(m.scans) == 0 {
		title := styles.title.Render("Scan History")
		body := styles.help.Render("No scans yet. Press r to resolve a link.")
		return fmt.Sprintf("%s\n%s\n\n%s", title, body, m.footer(m.keys.resolve, m.keys.reload, m.keys.quit))
	}
	return fmt.Sprintf("%s\n%s", m.history.View(),
		m.footer(m.keys.enter, m.keys.resolve, m.keys.open, m.keys.remove, m.keys.quit))
}

func (m *Model) renderDetail() string {
	s := m.selected
	title := styles.title.Render(fmt.Sprintf("Scan #%d", s.Sequence()))
	l := s.Link()

	rows := []string{
		field("Kind", kindText(l)),
		field("ID", l.ID),
		field("Raw", s.Raw()),
		field("Open", l.OpenURL()),
		field("URI", l.URI()),
		field("Embed", l.EmbedURL()),
		field("Client", s.Client()),
		field("Scanned", s.CreatedAt().Local().Format("2006-01-02 15:04:05")),
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, styles.box.Render(strings.Join(rows, "\n")),
		m.footer(m.keys.open, m.keys.back, m.keys.quit))
}

func (m *Model) renderResolve() string {
	title := styles.title.Render("Resolve a Link")
	prompt := styles.help.Render("Paste a Spotify or YouTube link, or a spotify: URI.")
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, prompt, m.input.View(),
		m.footer(m.keys.enter, m.keys.back))
}

func (m *Model) renderResult() string {
	r := m.resolved
	var title string
	if r.Kind == links.KindUnknown {
		title = styles.warn.Render("Unrecognized link")
	} else {
		title = styles.ok.Render(fmt.Sprintf("✓ %s", kindText(r.Link)))
	}

	rows := []string{
		field("ID", r.ID),
		field("Open", r.OpenURL),
		field("URI", r.URI),
		field("Embed", r.EmbedURL),
		field("Playable", fmt.Sprintf("%t", r.Playable)),
	}
	if r.Kind == links.KindUnknown {
		rows = []string{field("Text", r.Raw)}
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, styles.box.Render(strings.Join(rows, "\n")),
		m.footer(m.keys.open, m.keys.resolve, m.keys.back, m.keys.quit))
}

func field(label, value string) string {
	if value == "" {
		value = "-"
	}
	return styles.label.Render(label) + value
}

func kindText(l links.Link) string {
	if l.Subtype != "" && l.Subtype != links.SubtypeUnknown {
		return fmt.Sprintf("%s %s", l.Kind, l.Subtype)
	}
	return string(l.Kind)
}

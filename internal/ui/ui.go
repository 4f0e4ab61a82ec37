package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoginView ViewState = iota
	InputView
	LoadingView
	ResultsView
)

// TokenChecker reports whether a usable session exists.
//
// auth.Flow satisfies this interface.
type TokenChecker interface {
	Token() (string, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	tokens       TokenChecker
	engine       tasks.Engine
	width        int
	height       int
	input        textinput.Model
	spin         spinner.Model
	trackList    list.Model
	report       *formatter.Report
	progressChan chan tasks.ProgressUpdate
	doneChan     chan analysisCompleteMsg
	progress     tasks.ProgressUpdate
	analyzing    bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, tokens TokenChecker, engine tasks.Engine) *Model {
	input := textinput.New()
	input.Placeholder = "https://open.spotify.com/playlist/…"
	input.CharLimit = 256
	input.Width = 64

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styles.title

	return &Model{
		ctx:    ctx,
		view:   LoginView,
		tokens: tokens,
		engine: engine,
		input:  input,
		spin:   spin,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init checks for an existing session before showing the link prompt.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.checkSession(), m.spin.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.trackList.Width() == 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoginView:
			return m.handleLoginKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		case LoadingView:
			return m.handleLoadingKeys(msg)
		case ResultsView:
			return m.handleResultsKeys(msg)
		}

	case sessionCheckedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = LoginView
			return m, nil
		}
		m.err = nil
		m.view = InputView
		m.input.Focus()
		return m, textinput.Blink

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case analysisCompleteMsg:
		m.analyzing = false
		m.report = msg.report
		m.err = msg.err
		m.progressChan = nil
		m.doneChan = nil
		if msg.err != nil {
			m.view = InputView
			return m, nil
		}
		m.buildTrackList()
		m.view = ResultsView
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m.updateActive(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoginView:
		return m.renderLogin()
	case InputView:
		return m.renderInput()
	case LoadingView:
		return m.renderLoading()
	case ResultsView:
		return m.renderResults()
	default:
		return ""
	}
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r", "enter":
		return m, m.checkSession()
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.SetValue("")
		m.err = nil
		return m, nil
	case "enter":
		link := m.input.Value()
		if link == "" {
			return m, nil
		}
		m.err = nil
		m.view = LoadingView
		return m, tea.Batch(m.startAnalysis(link), m.spin.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleLoadingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r", "esc":
		m.view = InputView
		m.report = nil
		m.err = nil
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case InputView:
		m.input, cmd = m.input.Update(msg)
	case ResultsView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) checkSession() tea.Cmd {
	return func() tea.Msg {
		_, err := m.tokens.Token()
		return sessionCheckedMsg{err: err}
	}
}

func (m *Model) startAnalysis(link string) tea.Cmd {
	m.analyzing = true
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progress := m.progressChan
	done := make(chan analysisCompleteMsg, 1)

	go func() {
		report, err := m.engine.Analyze(m.ctx, progress, link)
		done <- analysisCompleteMsg{report: report, err: err}
		close(progress)
	}()
	m.doneChan = done

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	done := m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		select {
		case update, ok := <-progress:
			if !ok {
				return <-done
			}
			return progressUpdateMsg(update)
		case result := <-done:
			return result
		}
	}
}

func (m *Model) buildTrackList() {
	items := make([]list.Item, len(m.report.Tracks))
	for i, track := range m.report.Tracks {
		items[i] = trackItem{track: track}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", m.report.Playlist.Name)
	m.trackList.SetSize(m.width-4, m.height-10)
}

func (m *Model) renderLogin() string {
	title := styles.title.Render("Prismatify")
	var body string
	if m.err != nil {
		body = styles.err.Render("No active session.") +
			"\n\nRun `prismatify auth login` in another terminal, then press r to retry."
	} else {
		body = "Checking session..."
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderInput() string {
	title := styles.title.Render("Analyze a Playlist")
	prompt := "Paste a Spotify playlist link or ID:"

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s\n%s%s\n\n%s",
		title, prompt, m.input.View(), errLine, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderLoading() string {
	title := styles.title.Render("Analyzing Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchPlaylist:
		phase = "Fetching playlist metadata..."
	case tasks.FetchTracks:
		phase = fmt.Sprintf("Fetching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.FetchFeatures:
		phase = "Fetching audio features..."
	case tasks.BuildReport:
		phase = "Building report..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spin.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResults() string {
	if m.report == nil {
		return styles.err.Render("No report available\n\nPress r to analyze another playlist, q to quit")
	}

	title := styles.ok.Render(fmt.Sprintf("✓ %s", m.report.Playlist.Name))
	summary := fmt.Sprintf(
		"\nOwner: %s\nTracks: %d\nTotal duration: %s\nAverage popularity: %s\n",
		m.report.Playlist.Owner,
		len(m.report.Tracks),
		m.report.TotalDuration(),
		formatter.FormatPopularity(m.report.AveragePopularity()),
	)
	if tempo, ok := m.report.AverageTempo(); ok {
		summary += fmt.Sprintf("Average tempo: %.1f BPM\n", tempo)
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	return fmt.Sprintf("%s%s\n%s\n\n%s", title, summary, m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

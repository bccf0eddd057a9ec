package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/tui/layout"
)

// Coordinator is the part of home.Coordinator the TUI drives.
type Coordinator interface {
	State() home.State
	Updates() <-chan home.State
	Effects() <-chan home.Effect
	Dispatch(intent home.Intent)
}

// StateMsg delivers a new coordinator state.
type StateMsg struct{ State home.State }

// EffectMsg delivers a coordinator effect.
type EffectMsg struct{ Effect home.Effect }

type clipboardMsg struct{ text string }

type openedMsg struct {
	url string
	err error
}

// App is the bubbletea model for the home screen. All data comes from the
// coordinator; the App only keeps cursor, mode and input state.
type App struct {
	coord        Coordinator
	keys         KeyMap
	styles       Styles
	layoutConfig layout.LayoutConfig
	clipboard    Clipboard
	openURL      func(string) error
	clock        model.Clock

	state  home.State
	mode   Mode
	cursor int

	search        textinput.Model
	form          AddForm
	suggestedURL  string
	pendingDelete *home.ListItem

	messageText string
	messageType MessageType

	// For gg command
	lastKeyWasG bool

	width  int
	height int
}

// AppParams holds parameters for creating a new App.
type AppParams struct {
	Coordinator  Coordinator
	Keys         *KeyMap              // optional, uses default if nil
	Styles       *Styles              // optional, uses default if nil
	LayoutConfig *layout.LayoutConfig // optional, uses default if nil
	Clipboard    Clipboard            // optional, SystemClipboard if nil
	OpenURL      func(string) error   // optional, OpenInBrowser if nil
	Clock        model.Clock          // optional, RealClock if nil
}

// NewApp creates a new App with the given parameters.
func NewApp(params AppParams) App {
	keys := DefaultKeyMap()
	if params.Keys != nil {
		keys = *params.Keys
	}

	styles := DefaultStyles()
	if params.Styles != nil {
		styles = *params.Styles
	}

	layoutCfg := layout.DefaultConfig()
	if params.LayoutConfig != nil {
		layoutCfg = *params.LayoutConfig
	}

	var clip Clipboard = SystemClipboard{}
	if params.Clipboard != nil {
		clip = params.Clipboard
	}

	openURL := OpenInBrowser
	if params.OpenURL != nil {
		openURL = params.OpenURL
	}

	var clock model.Clock = model.RealClock{}
	if params.Clock != nil {
		clock = params.Clock
	}

	search := textinput.New()
	search.Placeholder = "Search bookmarks..."
	search.Prompt = "/ "
	search.CharLimit = layoutCfg.Input.SearchCharLimit
	search.Width = layoutCfg.Input.SearchWidth

	return App{
		coord:        params.Coordinator,
		keys:         keys,
		styles:       styles,
		layoutConfig: layoutCfg,
		clipboard:    clip,
		openURL:      openURL,
		clock:        clock,
		state:        params.Coordinator.State(),
		search:       search,
		form:         NewAddForm(layoutCfg),
		width:        80,
		height:       24,
	}
}

// WithDimensions returns a copy of the App with the given terminal size.
func (a App) WithDimensions(width, height int) App {
	a.width = width
	a.height = height
	return a
}

// Cursor returns the current cursor position.
func (a App) Cursor() int {
	return a.cursor
}

// Mode returns the current interaction mode.
func (a App) Mode() Mode {
	return a.mode
}

// State returns the last coordinator state the App has seen.
func (a App) State() home.State {
	return a.state
}

// Message returns the text and type of the message line.
func (a App) Message() (string, MessageType) {
	return a.messageText, a.messageType
}

// Form returns the add sheet form.
func (a App) Form() AddForm {
	return a.form
}

// Selected returns the item under the cursor, if any.
func (a App) Selected() (home.ListItem, bool) {
	if a.cursor < 0 || a.cursor >= len(a.state.Items) {
		return home.ListItem{}, false
	}
	return a.state.Items[a.cursor], true
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		waitForState(a.coord.Updates()),
		waitForEffect(a.coord.Effects()),
		readClipboard(a.clipboard),
	)
}

func waitForState(ch <-chan home.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg{State: s}
	}
}

func waitForEffect(ch <-chan home.Effect) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return EffectMsg{Effect: e}
	}
}

func readClipboard(clip Clipboard) tea.Cmd {
	return func() tea.Msg {
		text, err := clip.ReadAll()
		if err != nil {
			return nil
		}
		return clipboardMsg{text: text}
	}
}

func openCmd(open func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{url: url, err: open(url)}
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case StateMsg:
		cmd := a.applyState(msg.State)
		return a, tea.Batch(waitForState(a.coord.Updates()), cmd)

	case EffectMsg:
		cmd := a.handleEffect(msg.Effect)
		return a, tea.Batch(waitForEffect(a.coord.Effects()), cmd)

	case clipboardMsg:
		if msg.text != "" {
			a.coord.Dispatch(home.CheckClipboard{Text: msg.text})
		}
		return a, nil

	case openedMsg:
		if msg.err != nil {
			a.setMessage(MessageError, "Could not open "+msg.url+": "+msg.err.Error())
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) applyState(s home.State) tea.Cmd {
	opened := s.AddSheetVisible && !a.state.AddSheetVisible
	a.state = s

	if a.cursor >= len(s.Items) {
		a.cursor = len(s.Items) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}

	if opened {
		url := a.suggestedURL
		a.suggestedURL = ""
		return a.form.Reset(url)
	}
	return nil
}

func (a *App) handleEffect(e home.Effect) tea.Cmd {
	switch e := e.(type) {
	case home.OpenURL:
		return openCmd(a.openURL, e.URL)
	case home.Message:
		a.setMessage(messageTypeFor(e.Text), e.Text)
	case home.ClipboardSuggest:
		a.suggestedURL = e.URL
		a.setMessage(MessageInfo, "Link on clipboard: "+e.URL+" (a to add)")
	}
	return nil
}

func messageTypeFor(text string) MessageType {
	switch text {
	case home.MsgSaved, home.MsgDeleted:
		return MessageSuccess
	default:
		return MessageError
	}
}

func (a *App) setMessage(t MessageType, text string) {
	a.messageType = t
	a.messageText = text
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.state.AddSheetVisible {
		return a.handleAddSheetKey(msg)
	}

	switch a.mode {
	case ModeSearch:
		return a.handleSearchKey(msg)
	case ModeConfirmDelete:
		return a.handleConfirmDeleteKey(msg)
	case ModeHelp:
		if key.Matches(msg, a.keys.Help, a.keys.Cancel, a.keys.Quit) {
			a.mode = ModeNormal
		}
		return a, nil
	}

	return a.handleNormalKey(msg)
}

func (a App) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle gg sequence
	if key.Matches(msg, a.keys.Top) {
		if a.lastKeyWasG {
			a.cursor = 0
			a.lastKeyWasG = false
			return a, nil
		}
		a.lastKeyWasG = true
		return a, nil
	}
	a.lastKeyWasG = false
	a.messageText = ""

	item, hasItem := a.Selected()

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.state.Items)-1 {
			a.cursor++
		}

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}

	case key.Matches(msg, a.keys.Bottom):
		if len(a.state.Items) > 0 {
			a.cursor = len(a.state.Items) - 1
		}

	case key.Matches(msg, a.keys.Open):
		if hasItem {
			a.coord.Dispatch(home.Open{ID: item.ID})
		}

	case key.Matches(msg, a.keys.Search):
		a.mode = ModeSearch
		cmd := a.search.Focus()
		return a, cmd

	case key.Matches(msg, a.keys.Add):
		a.coord.Dispatch(home.ShowAddSheet{})

	case key.Matches(msg, a.keys.Archive):
		if hasItem {
			a.coord.Dispatch(home.ToggleArchive{ID: item.ID, Archived: !item.Archived})
		}

	case key.Matches(msg, a.keys.Delete):
		if hasItem {
			a.pendingDelete = &item
			a.mode = ModeConfirmDelete
		}

	case key.Matches(msg, a.keys.Refresh):
		a.coord.Dispatch(home.Refresh{})

	case key.Matches(msg, a.keys.YankURL):
		if hasItem {
			if err := a.clipboard.WriteAll(item.URL); err != nil {
				a.setMessage(MessageError, "Could not copy URL: "+err.Error())
			} else {
				a.setMessage(MessageSuccess, "Copied "+item.URL)
			}
		}

	case key.Matches(msg, a.keys.Undo):
		if undo := a.state.UndoRequest; undo != nil {
			a.coord.Dispatch(home.UndoArchive{ID: undo.ID, PreviousArchived: undo.PreviousArchived})
		}

	case key.Matches(msg, a.keys.Cancel):
		switch {
		case a.state.UndoRequest != nil:
			a.coord.Dispatch(home.DismissUndo{})
		case a.search.Value() != "" || a.state.Query != "":
			a.search.Reset()
			a.cursor = 0
			a.coord.Dispatch(home.ClearSearch{})
		}

	case key.Matches(msg, a.keys.Help):
		a.mode = ModeHelp
	}

	return a, nil
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.search.Reset()
		a.search.Blur()
		a.mode = ModeNormal
		a.cursor = 0
		a.coord.Dispatch(home.ClearSearch{})
		return a, nil

	case key.Matches(msg, a.keys.Confirm):
		a.search.Blur()
		a.mode = ModeNormal
		a.coord.Dispatch(home.SubmitSearch{})
		return a, nil
	}

	before := a.search.Value()
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	if value := a.search.Value(); value != before {
		a.cursor = 0
		a.coord.Dispatch(home.QueryChanged{Value: value})
	}
	return a, cmd
}

func (a App) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "y", key.Matches(msg, a.keys.Confirm):
		if a.pendingDelete != nil {
			a.coord.Dispatch(home.Delete{ID: a.pendingDelete.ID})
		}
		a.pendingDelete = nil
		a.mode = ModeNormal

	case msg.String() == "n", key.Matches(msg, a.keys.Cancel):
		a.pendingDelete = nil
		a.mode = ModeNormal
	}
	return a, nil
}

func (a App) handleAddSheetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.coord.Dispatch(home.HideAddSheet{})
		return a, nil

	case key.Matches(msg, a.keys.NextField):
		cmd := a.form.Next()
		return a, cmd

	case key.Matches(msg, a.keys.PrevField):
		cmd := a.form.Prev()
		return a, cmd

	case key.Matches(msg, a.keys.Confirm):
		// the coordinator hides the sheet once the bookmark is saved
		a.coord.Dispatch(a.form.Intent())
		return a, nil
	}

	cmd := a.form.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a App) View() string {
	return a.renderView()
}

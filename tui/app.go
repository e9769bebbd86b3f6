package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"plclogger/config"
	"plclogger/plcman"
)

// App is the main TUI application: a connection form, a status line and a log panel.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	form      *tview.Form
	statusBar *tview.TextView
	logView   *tview.TextView

	ipField   *tview.InputField
	dbField   *tview.InputField
	rackField *tview.InputField
	slotField *tview.InputField

	session    *plcman.Session
	store      *LogStore
	config     *config.Config
	configPath string

	busy bool

	// async runs work off the UI goroutine and applies done on it.
	async func(work func() (done func()))
}

// NewApp creates a new TUI application bound to session. Log lines reach the panel
// through store, which must be hooked into the session's logger. Settings of each
// successful connect are saved to configPath unless it is empty.
func NewApp(cfg *config.Config, configPath string, session *plcman.Session, store *LogStore) *App {
	return newApp(cfg, configPath, session, store, tview.NewApplication())
}

// NewAppWithScreen creates a TUI application on the given screen.
func NewAppWithScreen(cfg *config.Config, configPath string, session *plcman.Session, store *LogStore, screen tcell.Screen) *App {
	return newApp(cfg, configPath, session, store, tview.NewApplication().SetScreen(screen))
}

func newApp(cfg *config.Config, configPath string, session *plcman.Session, store *LogStore, app *tview.Application) *App {
	if store == nil {
		store = NewLogStore(0)
	}
	a := &App{
		app:        app,
		session:    session,
		store:      store,
		config:     cfg,
		configPath: configPath,
	}
	a.async = func(work func() func()) {
		go func() {
			done := work()
			a.app.QueueUpdateDraw(done)
		}()
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	plc := a.config.PLC

	a.ipField = tview.NewInputField().
		SetLabel("PLC IP Address: ").
		SetText(plc.Address).
		SetFieldWidth(30)
	a.dbField = tview.NewInputField().
		SetLabel("DB Number: ").
		SetText(strconv.Itoa(plc.DB)).
		SetFieldWidth(8).
		SetAcceptanceFunc(acceptDigits)
	a.rackField = tview.NewInputField().
		SetLabel("Rack: ").
		SetText(strconv.Itoa(plc.Rack)).
		SetFieldWidth(4).
		SetAcceptanceFunc(acceptDigits)
	a.slotField = tview.NewInputField().
		SetLabel("Slot: ").
		SetText(strconv.Itoa(plc.Slot)).
		SetFieldWidth(4).
		SetAcceptanceFunc(acceptDigits)

	a.form = tview.NewForm().
		AddFormItem(a.ipField).
		AddFormItem(a.dbField).
		AddFormItem(a.rackField).
		AddFormItem(a.slotField).
		AddButton(ButtonConnect, a.connect).
		AddButton(ButtonRead, a.readAndSave).
		AddButton(ButtonDisconnect, a.disconnect).
		AddButton(ButtonQuit, a.Stop)
	a.form.SetBorder(true).
		SetTitle(" PLC Connection Settings ").
		SetBorderColor(ColorPrimary).
		SetTitleColor(ColorAccent)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	a.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.logView.SetBorder(true).
		SetTitle(" Log ").
		SetBorderColor(ColorPrimary).
		SetTitleColor(ColorAccent)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.form, 11, 0, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.logView, 0, 1, false)

	a.pages = tview.NewPages().
		AddPage("main", layout, true, true)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.pages, true)
	a.updateStatus()
	a.refreshLog()
}

func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}
	// Modals handle their own keys.
	if front, _ := a.pages.GetFrontPage(); front != "main" {
		return event
	}

	switch event.Key() {
	case tcell.KeyCtrlQ:
		a.Stop()
		return nil
	case tcell.KeyCtrlR:
		a.readAndSave()
		return nil
	case tcell.KeyF1:
		a.showHelp()
		return nil
	}
	return event
}

// updateStatus renders the connection state: green when connected, red otherwise.
func (a *App) updateStatus() {
	if a.session.State() == plcman.StateConnected {
		a.statusBar.SetText(fmt.Sprintf(" %s [green]Connected to PLC at %s[-]",
			StatusIndicatorConnected, tview.Escape(a.session.Params().Address)))
		return
	}
	a.statusBar.SetText(fmt.Sprintf(" %s [red]Not connected to PLC[-]", StatusIndicatorDisconnected))
}

func (a *App) refreshLog() {
	a.logView.SetText(strings.Join(a.store.Lines(), "\n"))
	a.logView.ScrollToEnd()
}

// formInt reads a numeric field; acceptDigits keeps non-digits out, so only an
// empty field fails.
func formInt(field *tview.InputField, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field.GetText()))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func (a *App) params() (plcman.Params, error) {
	rack, err := formInt(a.rackField, "Rack")
	if err != nil {
		return plcman.Params{}, err
	}
	slot, err := formInt(a.slotField, "Slot")
	if err != nil {
		return plcman.Params{}, err
	}
	return plcman.Params{Address: a.ipField.GetText(), Rack: rack, Slot: slot}, nil
}

func (a *App) connect() {
	if a.busy {
		return
	}
	p, err := a.params()
	if err != nil {
		a.showError("Error", err.Error())
		return
	}
	// Checked here so the modal shows before any work starts.
	if strings.TrimSpace(p.Address) == "" {
		a.showError("Error", plcman.ErrEmptyAddress.Error())
		return
	}

	a.busy = true
	a.statusBar.SetText(fmt.Sprintf(" %s Connecting to %s...", StatusIndicatorConnecting, tview.Escape(p.Address)))
	a.async(func() func() {
		err := a.session.Connect(p)
		return func() {
			a.busy = false
			a.updateStatus()
			a.refreshLog()
			if err != nil {
				if errors.Is(err, plcman.ErrNotEstablished) {
					a.statusBar.SetText(fmt.Sprintf(" %s [red]Failed to connect to PLC[-]", StatusIndicatorError))
					return
				}
				a.showError("Connection Error", "Failed to connect to PLC: "+errorCause(err))
				return
			}
			a.saveSettings(p)
		}
	})
}

// saveSettings stores the form values of a successful connect in the config file.
func (a *App) saveSettings(p plcman.Params) {
	if a.configPath == "" {
		return
	}
	db, _ := formInt(a.dbField, "DB Number")
	a.config.SetPLC(p.Address, p.Rack, p.Slot, db)
	if err := a.config.Save(a.configPath); err != nil {
		a.showError("Error", "Failed to save settings: "+err.Error())
	}
}

func (a *App) readAndSave() {
	if a.busy {
		return
	}
	if a.session.State() != plcman.StateConnected {
		a.showError("Error", "Not connected to PLC")
		return
	}
	db, err := formInt(a.dbField, "DB Number")
	if err != nil {
		a.showError("Error", err.Error())
		return
	}

	a.busy = true
	dir := a.config.Output.Dir
	a.async(func() func() {
		res, err := a.session.ReadAndExport(context.Background(), db, dir)
		return func() {
			a.busy = false
			a.updateStatus()
			a.refreshLog()
			var notConn *plcman.NotConnectedError
			switch {
			case errors.As(err, &notConn):
				a.showError("Error", "Not connected to PLC")
			case err != nil:
				a.showError("Error", "Failed to read DB: "+errorCause(err))
			default:
				a.showInfo("Success", "Data saved to "+res.Path)
			}
		}
	})
}

func (a *App) disconnect() {
	if a.busy {
		return
	}
	a.session.Disconnect()
	a.updateStatus()
	a.refreshLog()
}

// errorCause strips the taxonomy prefix so dialogs read like the log lines.
func errorCause(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}

func (a *App) showHelp() {
	text := tview.NewTextView().
		SetText(HelpText)
	text.SetBorder(true).SetTitle(" Help ")
	text.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyEnter {
			a.pages.RemovePage("help")
			a.app.SetFocus(a.form)
			return nil
		}
		return event
	})
	a.pages.AddPage("help", center(text, 50, 14), true, true)
	a.app.SetFocus(text)
}

func (a *App) showError(title, message string) {
	a.showModal("error", title, message)
}

func (a *App) showInfo(title, message string) {
	a.showModal("info", title, message)
}

func (a *App) showModal(page, title, message string) {
	modal := tview.NewModal().
		SetText(title + "\n\n" + message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage(page)
			a.app.SetFocus(a.form)
		})
	if page == "error" {
		modal.SetBackgroundColor(ColorError)
	}
	a.pages.AddPage(page, modal, true, true)
}

func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.store.SetOnChange(func() {
		a.app.QueueUpdateDraw(a.refreshLog)
	})
	defer a.store.SetOnChange(nil)
	return a.app.Run()
}

// Stop ends the application.
func (a *App) Stop() {
	a.app.Stop()
}

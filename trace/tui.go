package trace

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TUI presents a recorded execution trace alongside the program's
// captured output in a scrollable two-pane view.
type TUI struct {
	App        *tview.Application
	MainLayout *tview.Flex

	TraceView  *tview.TextView
	OutputView *tview.TextView
	StatusBar  *tview.TextView

	Recorder      *Recorder
	ProgramOutput string
	ShowPositions bool
}

// NewTUI creates the trace viewer over a completed recording.
func NewTUI(rec *Recorder, programOutput string) *TUI {
	t := &TUI{
		App:           tview.NewApplication(),
		Recorder:      rec,
		ProgramOutput: programOutput,
		ShowPositions: true,
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()
	t.refresh()

	return t
}

func (t *TUI) initializeViews() {
	t.TraceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.TraceView.SetBorder(true).SetTitle(" Executed Statements ")

	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.OutputView.SetBorder(true).SetTitle(" Program Output ")

	t.StatusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
}

func (t *TUI) buildLayout() {
	t.MainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(t.TraceView, 0, 2, true).
			AddItem(t.OutputView, 0, 1, false), 0, 1, true).
		AddItem(t.StatusBar, 1, 0, false)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q':
			t.App.Stop()
			return nil
		case event.Rune() == 'p':
			t.ShowPositions = !t.ShowPositions
			t.refresh()
			return nil
		}
		return event
	})
}

func (t *TUI) refresh() {
	t.TraceView.Clear()
	for _, e := range t.Recorder.Entries {
		fmt.Fprintln(t.TraceView, e.Format(t.ShowPositions))
	}
	if t.Recorder.Dropped > 0 {
		fmt.Fprintf(t.TraceView, "[yellow]... %d entries dropped (max_entries)[-]\n", t.Recorder.Dropped)
	}

	t.OutputView.Clear()
	fmt.Fprint(t.OutputView, t.ProgramOutput)

	t.StatusBar.Clear()
	fmt.Fprintf(t.StatusBar, " %d statements executed | q/Esc quit | p toggle positions",
		len(t.Recorder.Entries))
}

// Run starts the viewer and blocks until the user quits. The views are
// rebuilt first so callers may adjust ShowPositions after NewTUI.
func (t *TUI) Run() error {
	t.refresh()
	return t.App.SetRoot(t.MainLayout, true).Run()
}

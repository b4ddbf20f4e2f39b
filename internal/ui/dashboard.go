// internal/ui/dashboard.go
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rovshanmuradov/pump-sniper/internal/engine"
	"github.com/rovshanmuradov/pump-sniper/internal/logger"
	"go.uber.org/zap/zapcore"
)

// KeyMap defines keyboard shortcuts of the dashboard.
type KeyMap struct {
	Quit       key.Binding
	ToggleLogs key.Binding
	Up         key.Binding
	Down       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "toggle logs"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

type tickMsg time.Time

const refreshInterval = 500 * time.Millisecond

// Options configure the dashboard.
type Options struct {
	Wallet   string
	Simulate bool
	// Logs is the in-memory log ring; nil hides the log pane.
	Logs *logger.Ring
}

// Dashboard is the read-only live view of the bot.
type Dashboard struct {
	opts     Options
	keys     KeyMap
	table    table.Model
	health   engine.HealthSnapshot
	received bool
	showLogs bool
	width    int
	height   int
}

// NewDashboard creates the dashboard model.
func NewDashboard(opts Options) Dashboard {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Mint", Width: 14},
			{Title: "State", Width: 18},
			{Title: "Age", Width: 8},
			{Title: "Activity", Width: 9},
			{Title: "Signature", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(6),
		table.WithWidth(72),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(muted).
		BorderBottom(true).
		Foreground(cyan)
	styles.Selected = styles.Selected.Foreground(text).Background(lipgloss.Color("#262831"))
	t.SetStyles(styles)

	return Dashboard{
		opts:     opts,
		keys:     DefaultKeyMap(),
		table:    t,
		showLogs: opts.Logs != nil,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d Dashboard) Init() tea.Cmd { return tick() }

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keys.ToggleLogs):
			d.showLogs = !d.showLogs && d.opts.Logs != nil
			return d, nil
		}
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.table.SetWidth(max(msg.Width-4, 40))
		d.table.SetHeight(max(msg.Height/3, 4))
		return d, nil
	case HealthMsg:
		d.health = engine.HealthSnapshot(msg)
		d.received = true
		d.table.SetRows(positionRows(d.health.Positions))
		return d, nil
	case tickMsg:
		return d, tick()
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return d, cmd
}

func positionRows(views []engine.PositionView) []table.Row {
	rows := make([]table.Row, 0, len(views))
	for _, v := range views {
		activity := "-"
		if v.Activity {
			activity = "yes"
		}
		rows = append(rows, table.Row{
			short(v.Mint),
			v.State,
			v.Age.Truncate(time.Second).String(),
			activity,
			short(v.Signature),
		})
	}
	return rows
}

func (d Dashboard) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(d.header()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(titleStyle.Render("Positions") + "\n" + d.table.View()))
	b.WriteString("\n")
	if d.showLogs {
		b.WriteString(panelStyle.Render(titleStyle.Render("Logs") + "\n" + d.logs()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q quit • l logs • ↑/↓ select"))
	return b.String()
}

func (d Dashboard) header() string {
	mode := goodStyle.Render("LIVE")
	if d.opts.Simulate {
		mode = simStyle.Render("SIMULATE")
	}
	lines := []string{
		titleStyle.Render("pump-sniper") + "  " + mode + "  " + labelStyle.Render("wallet ") + valueStyle.Render(short(d.opts.Wallet)),
	}
	if !d.received {
		return strings.Join(append(lines, labelStyle.Render("waiting for first health report...")), "\n")
	}

	h := d.health
	breaker := goodStyle.Render("closed")
	if h.Breaker.Open {
		breaker = badStyle.Render("OPEN") + labelStyle.Render(" ("+h.Breaker.LastReason+")")
	}
	lines = append(lines,
		field("breaker", breaker)+"  "+
			field("positions", valueStyle.Render(fmt.Sprint(len(h.Positions))))+"  "+
			field("pending", valueStyle.Render(fmt.Sprint(h.Pending)))+"  "+
			field("slot", valueStyle.Render(fmt.Sprint(h.LastSlot))),
		field("buys", valueStyle.Render(fmt.Sprint(h.Counters.Buys)))+"  "+
			field("confirmed", valueStyle.Render(fmt.Sprint(h.Counters.Confirmed)))+"  "+
			field("sold", valueStyle.Render(fmt.Sprint(h.Counters.Sold)))+"  "+
			field("failed", failures(h.Counters.FailedBuys+h.Counters.SellFailures)),
		d.cacheLine(),
	)
	return strings.Join(lines, "\n")
}

func (d Dashboard) cacheLine() string {
	if len(d.health.CacheAges) == 0 {
		return ""
	}
	var parts []string
	for _, name := range []string{"blockhash", "fees"} {
		age, ok := d.health.CacheAges[name]
		if !ok {
			continue
		}
		st := goodStyle
		if age < 0 || age > 5*time.Second {
			st = warnStyle
		}
		parts = append(parts, field(name, st.Render(age.Truncate(100*time.Millisecond).String())))
	}
	return strings.Join(parts, "  ")
}

func (d Dashboard) logs() string {
	limit := 8
	if d.height > 0 {
		limit = max(d.height/3, 3)
	}
	entries := d.opts.Logs.Recent(limit)
	if len(entries) == 0 {
		return labelStyle.Render("no log entries")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, logTimeStyle.Render(e.Time.Format("15:04:05"))+" "+levelStyle(e.Level).Render(e.Level.CapitalString())+" "+e.Message+" "+labelStyle.Render(e.Fields))
	}
	return strings.Join(lines, "\n")
}

func levelStyle(l zapcore.Level) lipgloss.Style {
	switch {
	case l >= zapcore.ErrorLevel:
		return badStyle
	case l == zapcore.WarnLevel:
		return warnStyle
	default:
		return labelStyle
	}
}

func field(name, value string) string {
	return labelStyle.Render(name+" ") + value
}

func failures(n int) string {
	if n > 0 {
		return badStyle.Render(fmt.Sprint(n))
	}
	return valueStyle.Render("0")
}

func short(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:5] + "…" + s[len(s)-5:]
}

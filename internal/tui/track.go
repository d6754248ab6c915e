// Package tui renders satellite positions and passes in the terminal.
package tui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

const tickInterval = time.Second

type tickMsg time.Time

// passResultMsg carries the outcome of one background pass search.
type passResultMsg struct {
	token uint64
	pass  passes.Pass
	found bool
}

// TrackModel is a live view of one satellite from one observer: the
// current look angles, refreshed every second, and the next pass.
//
// Pass searches run as tea.Cmds. Each carries a token; a search whose token
// is no longer the latest stops early and its result is ignored.
type TrackModel struct {
	sat   tle.TLE
	model propagation.Model
	obs   transform.Observer
	opts  passes.Options
	now   func() time.Time

	pos       propagation.Topocentric
	next      passes.Pass
	hasNext   bool
	searching bool
	token     uint64
	latest    *atomic.Uint64
	dropped   int

	spinner spinner.Model
	err     error
}

// NewTrackModel creates a TrackModel. now supplies the clock; nil uses
// time.Now.
func NewTrackModel(sat tle.TLE, model propagation.Model, obs transform.Observer, opts passes.Options, now func() time.Time) TrackModel {
	if now == nil {
		now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = TitleStyle

	m := TrackModel{
		sat:     sat,
		model:   model,
		obs:     obs,
		opts:    opts,
		now:     now,
		latest:  &atomic.Uint64{},
		spinner: s,
	}
	m.token = 1
	m.latest.Store(m.token)
	m.searching = true
	m.updatePosition()
	return m
}

// Init starts the clock, the spinner and the first pass search.
func (m TrackModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick, m.searchCmd(m.token))
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// requestPass issues a new token and returns the search for it.
func (m TrackModel) requestPass() (TrackModel, tea.Cmd) {
	m.token++
	m.latest.Store(m.token)
	m.searching = true
	return m, m.searchCmd(m.token)
}

func (m TrackModel) searchCmd(token uint64) tea.Cmd {
	model, obs, opts, latest := m.model, m.obs, m.opts, m.latest
	start := m.now()
	return func() tea.Msg {
		p, ok := passes.FindNextPassWith(model, obs, start, opts, func() bool {
			return latest.Load() != token
		})
		return passResultMsg{token: token, pass: p, found: ok}
	}
}

// Update handles clock ticks, search results and keys.
func (m TrackModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.latest.Store(0)
			return m, tea.Quit
		case "r":
			return m.requestPass()
		}

	case tickMsg:
		m.updatePosition()
		if m.hasNext && !m.searching && m.now().After(m.next.Set) {
			m, cmd := m.requestPass()
			return m, tea.Batch(tick(), cmd)
		}
		return m, tick()

	case passResultMsg:
		if msg.token != m.latest.Load() {
			m.dropped++
			return m, nil
		}
		m.token = msg.token
		m.searching = false
		m.next, m.hasNext = msg.pass, msg.found
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *TrackModel) updatePosition() {
	pos, err := propagation.PositionAt(m.model, m.now(), &m.obs)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.pos = pos.(propagation.Topocentric)
}

// View renders the current state.
func (m TrackModel) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n\n", TitleStyle.Render(m.sat.Name), HelpStyle.Render(fmt.Sprintf("NORAD %d", m.sat.CatalogNumber)))

	if m.err != nil {
		b.WriteString(ErrorStyle.Render("propagation failed: "+m.err.Error()) + "\n")
	} else {
		geo, look := m.pos.Geodetic, m.pos.Look
		row(&b, "Time", m.pos.Time.UTC().Format("2006-01-02 15:04:05 UTC"))
		row(&b, "Sub-point", fmt.Sprintf("%.3f°, %.3f°", geo.LatDeg, geo.LonDeg))
		row(&b, "Altitude", fmt.Sprintf("%.1f km", geo.AltKm))
		row(&b, "Azimuth", fmt.Sprintf("%.1f°", look.AzimuthDeg))
		elevation := fmt.Sprintf("%.1f°", look.ElevationDeg)
		if look.ElevationDeg > 0 {
			elevation = VisibleText.Render(elevation + "  visible")
		}
		row(&b, "Elevation", elevation)
		row(&b, "Range", fmt.Sprintf("%.0f km", look.RangeKm))
	}

	b.WriteString("\n")
	switch {
	case m.searching:
		row(&b, "Next pass", m.spinner.View()+" searching")
	case m.hasNext:
		row(&b, "Next pass", FormatPass(m.next, m.now()))
	default:
		row(&b, "Next pass", fmt.Sprintf("none within %.0f h above %.0f°", m.opts.MaxHours, m.opts.MinElevation))
	}

	b.WriteString("\n" + HelpStyle.Render("r: search again • q: quit"))
	return BoxStyle.Render(b.String()) + "\n"
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(label) + ValueStyle.Render(value) + "\n")
}

// FormatPass describes p relative to now.
func FormatPass(p passes.Pass, now time.Time) string {
	when := "in " + p.Rise.Sub(now).Round(time.Second).String()
	if !now.Before(p.Rise) {
		when = "in progress"
	}
	return fmt.Sprintf("%s (rise %s az %.0f°, max %.1f° at %s, set %s az %.0f°, %s)",
		when,
		p.Rise.UTC().Format("15:04:05"), p.RiseAzimuth,
		p.MaxElevation, p.Peak.UTC().Format("15:04:05"),
		p.Set.UTC().Format("15:04:05"), p.SetAzimuth,
		p.Duration().Round(time.Second),
	)
}

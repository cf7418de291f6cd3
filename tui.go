package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"curie/clipboard"
	"curie/monitor"
)

// TUI message types
type StateMsg struct{ Snapshot monitor.Snapshot }
type SegmentMsg struct {
	Index int
	Path  string
}
type ErrorMsg struct{ Err error }
type AudioLevelMsg struct{ Level float64 }
type NoAudioMsg struct{ On bool }
type clockMsg time.Time
type frameMsg time.Time
type hintExpiredMsg struct{ seq int }
type actionMsg struct{ err error }

const (
	clockTimeLayout = "3:04 PM"
	clockDateLayout = "January 2, 2006"
	hintDuration    = 3 * time.Second
)

// monitorControl is the part of *monitor.Monitor the screen drives.
type monitorControl interface {
	Start(ctx context.Context) error
	Stop() error
	Back() bool
	Snapshot() monitor.Snapshot
}

type tuiModel struct {
	mon           monitorControl
	ctx           context.Context
	now           func() time.Time
	copy          func(string) error
	clockInterval time.Duration

	snap          monitor.Snapshot
	clockTime     string
	clockDate     string
	frame         int
	audioLevel    float64
	noAudio       bool
	deviceLine    string
	hint          string
	hintSeq       int
	width, height int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// tuiSend delivers msg to the running screen, if any.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func newTUIModel(ctx context.Context, mon monitorControl, clockInterval time.Duration, device string) tuiModel {
	m := tuiModel{
		mon:           mon,
		ctx:           ctx,
		now:           time.Now,
		copy:          clipboard.Copy,
		clockInterval: clockInterval,
		snap:          mon.Snapshot(),
		deviceLine:    device,
	}
	// permission bootstrap runs after the program starts
	m.snap.Loading = true
	m.setClock(m.now())
	return m
}

func (m *tuiModel) setClock(t time.Time) {
	m.clockTime = t.Format(clockTimeLayout)
	m.clockDate = t.Format(clockDateLayout)
}

func (m tuiModel) clockTick() tea.Cmd {
	return tea.Tick(m.clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func frameTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.clockTick(), frameTick())
}

func (m *tuiModel) setHint(text string) tea.Cmd {
	m.hintSeq++
	m.hint = text
	seq := m.hintSeq
	return tea.Tick(hintDuration, func(time.Time) tea.Msg {
		return hintExpiredMsg{seq}
	})
}

func (m tuiModel) start() tea.Cmd {
	mon, ctx := m.mon, m.ctx
	return func() tea.Msg {
		return actionMsg{mon.Start(ctx)}
	}
}

func (m tuiModel) stop() tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		return actionMsg{mon.Stop()}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case clockMsg:
		m.setClock(m.now())
		return m, m.clockTick()

	case frameMsg:
		m.frame++
		return m, frameTick()

	case hintExpiredMsg:
		if msg.seq == m.hintSeq {
			m.hint = ""
		}

	case actionMsg:
		m.snap = m.mon.Snapshot()
		switch {
		case msg.err == nil, errors.Is(msg.err, monitor.ErrNotMonitoring):
		case errors.Is(msg.err, monitor.ErrNotIdle):
			return m, m.setHint("still stopping, try again")
		default:
			return m, m.setHint(msg.err.Error())
		}

	case StateMsg:
		m.snap = msg.Snapshot
		if !m.snap.MonitoringStatus {
			m.audioLevel = 0
			m.noAudio = false
		}

	case SegmentMsg:
		m.snap.Segments = msg.Index
		m.snap.AudioFile = msg.Path

	case ErrorMsg:
		return m, m.setHint(msg.Err.Error())

	case AudioLevelMsg:
		if m.snap.Recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoAudioMsg:
		m.noAudio = msg.On
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "ctrl+c":
		if m.mon.Back() {
			return m, tea.Quit
		}
		return m, m.setHint("recording in progress, stop monitoring first")

	case "enter", " ":
		if m.snap.Loading || m.snap.MonitoringStop {
			return m, nil
		}
		if m.snap.MonitoringStatus {
			return m, m.stop()
		}
		return m, m.start()

	case "s":
		if !m.snap.Loading && !m.snap.MonitoringStatus {
			return m, m.start()
		}

	case "x":
		if m.snap.MonitoringStatus && !m.snap.MonitoringStop {
			return m, m.stop()
		}

	case "y":
		if m.snap.AudioFile == "" {
			return m, m.setHint("no segment saved yet")
		}
		if err := m.copy(m.snap.AudioFile); err != nil {
			return m, m.setHint("copy failed: " + err.Error())
		}
		return m, m.setHint("copied " + filepath.Base(m.snap.AudioFile))
	}
	return m, nil
}

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBold     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)
	clockStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	startButton  = lipgloss.NewStyle().Foreground(lipgloss.Color("16")).Background(lipgloss.Color("42")).Bold(true).Padding(0, 2)
	stopButton   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("160")).Bold(true).Padding(0, 2)
	closeBar     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 2)
)

func (m tuiModel) View() string {
	if m.snap.Loading || m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	if m.snap.MonitoringStatus {
		lines = m.activePanel()
	} else {
		lines = m.idlePanel()
	}

	if m.deviceLine != "" {
		lines = append(lines, "", dimStyle.Render("mic: "+m.deviceLine))
	}
	if m.hint != "" {
		lines = append(lines, "", hintStyle.Render(m.hint))
	}
	lines = append(lines, "", m.helpLine(), helpStyle.Render("curie "+version))

	body := strings.Join(lines, "\n")
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Padding(1, 2).
		Render(body)
}

func (m tuiModel) idlePanel() []string {
	lines := []string{
		closeBar.Render("✕"),
		"",
		titleStyle.Render("To begin monitoring tap start now"),
		"",
		startButton.Render("START NOW"),
	}
	if !m.snap.HaveRecordingPermissions {
		lines = append(lines, "", warnStyle.Render("⚠ microphone access not confirmed; run `curie doctor`"))
	}
	if m.snap.AudioFile != "" {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("last session: %d segment(s), %s", m.snap.Segments, m.snap.AudioFile)))
	}
	return lines
}

func (m tuiModel) activePanel() []string {
	stopping := m.snap.MonitoringStop
	eye := strings.TrimRight(renderEye(m.frame, m.audioLevel, !stopping), "\n")
	lines := strings.Split(eye, "\n")

	lines = append(lines,
		clockStyle.Render(m.clockTime),
		dimStyle.Render(m.clockDate),
		"",
	)
	if stopping {
		lines = append(lines, dimStyle.Render("○ STOPPING"), "", pendingStyle.Render("stopping…"))
	} else {
		lines = append(lines, statusStyle.Render("● MONITORING"), "", stopButton.Render("STOP NOW"))
	}

	lines = append(lines, "", dimStyle.Render(fmt.Sprintf("segments saved: %d", m.snap.Segments)))
	if m.snap.AudioFile != "" {
		lines = append(lines, dimStyle.Render("last: "+m.snap.AudioFile))
	}
	if !m.snap.Recording && !stopping {
		lines = append(lines, warnStyle.Render("⚠ not recording, retrying at next segment"))
	}
	if m.noAudio {
		lines = append(lines, warnStyle.Render("⚠ no audio detected, is the microphone muted?"))
	}
	return lines
}

func (m tuiModel) helpLine() string {
	if m.snap.MonitoringStatus {
		return helpBold.Render("enter") + helpStyle.Render(" stop  ") +
			helpBold.Render("y") + helpStyle.Render(" copy last path")
	}
	return helpBold.Render("enter") + helpStyle.Render(" start  ") +
		helpBold.Render("y") + helpStyle.Render(" copy last path  ") +
		helpBold.Render("q") + helpStyle.Render(" quit")
}

// Pre-computed pixel styles to avoid allocations in render loop
var (
	pixelColorsLive = []string{"", "194", "157", "120", "83", "46", "40", "34", "28", "22", "236", "236", "255", "249"}
	pixelColorsDim  = []string{"", "253", "250", "247", "244", "241", "239", "238", "237", "236", "236", "236", "255", "249"}
	pixelStylesLive [14]lipgloss.Style
	pixelStylesDim  [14]lipgloss.Style
	pixelBgLive     [14][14]lipgloss.Style
	pixelBgDim      [14][14]lipgloss.Style
)

func init() {
	buildPixelStyles(pixelColorsLive, &pixelStylesLive, &pixelBgLive)
	buildPixelStyles(pixelColorsDim, &pixelStylesDim, &pixelBgDim)
}

func buildPixelStyles(colors []string, fg *[14]lipgloss.Style, bg *[14][14]lipgloss.Style) {
	for i, c := range colors {
		if c == "" {
			continue
		}
		fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		for j, b := range colors {
			if b != "" {
				bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
			}
		}
	}
}

// renderEye draws the monitoring indicator: concentric rings that breathe
// slowly and swell with the input level while live.
func renderEye(frame int, level float64, live bool) string {
	const charsW = 30
	const charsH = 10
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	if live {
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}
	rings := []ring{
		{0.6, 0.10, 1},
		{1.2, 0.12, 2},
		{1.8, 0.15, 3},
		{2.5, 0.35, 4},
		{3.1, 0.40, 5},
		{3.7, 0.38, 6},
		{4.4, 0.30, 7},
		{5.1, 0.15, 8},
		{5.8, 0.03, 9},
		{6.5, 0.0, 10},
		{7.5, 0.0, 11},
	}

	pixels := make([][]int, pixH)
	for y := range pixels {
		pixels[y] = make([]int, pixW)
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := math.Min(r.radius+breathe*r.breatheAmt*20, 7.5)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// glint
	for _, s := range [][3]float64{{-3.5, -3.5, 12}, {-2.8, -2.8, 13}} {
		x, y := int(centerX+s[0]), int(centerY+s[1])
		if y >= 0 && y < pixH && x >= 0 && x < pixW {
			pixels[y][x] = int(s[2])
		}
	}

	styles, bgStyles := &pixelStylesDim, &pixelBgDim
	if live {
		styles, bgStyles = &pixelStylesLive, &pixelBgLive
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(styles[top].Render("█"))
			case bot == 0:
				result.WriteString(styles[top].Render("▀"))
			case top == 0:
				result.WriteString(styles[bot].Render("▄"))
			default:
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

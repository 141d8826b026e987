// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kazwalker/romiserial/pkg/romiserial"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for sending commands to a RomiSerial device",
	Long: `console opens an interactive terminal UI for driving a RomiSerial
device: type a command, press enter, and watch the response and a running
transaction log, side by side with live statistics.

Press Ctrl+C or Esc to quit.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	client, stream, connInfo, err := newClient()
	if err != nil {
		return err
	}
	defer stream.Close()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runConsolePlain(client, connInfo)
	}

	program := tea.NewProgram(initialConsoleModel(client, connInfo), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// runConsolePlain is the fallback used when stdout isn't a terminal (piped
// output, a non-interactive CI run): a line-at-a-time loop instead of the
// bubbletea UI, which assumes a real screen to redraw.
func runConsolePlain(client *romiserial.Client, connInfo string) error {
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Enter commands, one per line (Ctrl+D to quit):\n")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		resp := client.Send(command)
		if resp.OK() {
			fmt.Printf("ok: %v\n", []interface{}(resp))
		} else {
			fmt.Printf("error %d: %s\n", resp.Code(), resp.Message())
		}
	}
	return scanner.Err()
}

// consoleLogEntry is one line of the transaction log: a command as it was
// sent, or the response Send returned for it (success or error code and
// message). Envelope-layer retries and firmware log lines are not added
// here; they go only to the client's Logger.
type consoleLogEntry struct {
	timestamp time.Time
	text      string
	isError   bool
}

type consoleTickMsg time.Time

// consoleResponseMsg carries a completed Send call back into Update; Send
// blocks, so it always runs inside a tea.Cmd goroutine rather than on the
// Bubble Tea event loop.
type consoleResponseMsg struct {
	command string
	resp    romiserial.Response
}

type consoleModel struct {
	client   *romiserial.Client
	connInfo string

	input textinput.Model
	log   []consoleLogEntry

	maxLogEntries int
	width, height int
	sending       bool
	quitting      bool
}

func initialConsoleModel(client *romiserial.Client, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = `L[1,0]`
	ti.CharLimit = romiserial.MaxMessageLength
	ti.Width = 40
	ti.Focus()

	return consoleModel{
		client:        client,
		connInfo:      connInfo,
		input:         ti,
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(consoleTickCmd(), textinput.Blink)
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return consoleTickMsg(t) })
}

// consoleSendCmd dispatches command on the client and reports back whenever it
// completes — the only place the interactive UI ever touches the wire.
func consoleSendCmd(client *romiserial.Client, command string) tea.Cmd {
	return func() tea.Msg {
		return consoleResponseMsg{command: command, resp: client.Send(command)}
	}
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			command := strings.TrimSpace(m.input.Value())
			if command == "" || m.sending {
				return m, nil
			}
			m.input.SetValue("")
			m.sending = true
			m.addLogEntry(fmt.Sprintf("> %s", command), false)
			return m, consoleSendCmd(m.client, command)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case consoleTickMsg:
		return m, consoleTickCmd()

	case consoleResponseMsg:
		m.sending = false
		if msg.resp.OK() {
			m.addLogEntry(fmt.Sprintf("  ok: %v", []interface{}(msg.resp)), false)
		} else {
			m.addLogEntry(fmt.Sprintf("  error %d: %s", msg.resp.Code(), msg.resp.Message()), true)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) addLogEntry(text string, isError bool) {
	m.log = append(m.log, consoleLogEntry{timestamp: time.Now(), text: text, isError: isError})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	statsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ROMISERIAL CONSOLE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Ctrl+C/Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	stats := m.client.StatsSnapshot()
	s.WriteString(statsStyle.Render(strings.TrimSuffix(stats.String(), "\n")))
	s.WriteString("\n\n")

	logHeight := m.height - 14
	if logHeight < 3 {
		logHeight = 3
	}
	start := 0
	if len(m.log) > logHeight {
		start = len(m.log) - logHeight
	}

	var logBody strings.Builder
	for _, entry := range m.log[start:] {
		line := fmt.Sprintf("[%s] %s", entry.timestamp.Format("15:04:05.000"), entry.text)
		if entry.isError {
			logBody.WriteString(errorStyle.Render(line))
		} else {
			logBody.WriteString(line)
		}
		logBody.WriteString("\n")
	}
	s.WriteString(boxStyle.Width(m.width - 4).Height(logHeight).Render(strings.TrimRight(logBody.String(), "\n")))
	s.WriteString("\n\n")

	s.WriteString("> " + m.input.View())
	s.WriteString("\n")

	return s.String()
}

package console

// Terminal rendering helpers for the console.

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	frameStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(1, 2)
)

// renderBanner builds the startup banner.
func (c *Console) renderBanner() string {
	lines := []string{
		titleStyle.Render("cipmaster | EtherNet/IP Cyclic I/O Console"),
		"",
		fmt.Sprintf("Version:   %s", c.version),
		fmt.Sprintf("Target:    %s", c.cfg.Target.IP),
		fmt.Sprintf("Multicast: %s", c.cfg.Target.Multicast),
		metaStyle.Render(fmt.Sprintf("Assemblies: %s (O->T), %s (T->O)", c.otName, c.toName)),
	}
	return frameStyle.Render(strings.Join(lines, "\n"))
}

func renderSection(title string) string {
	return sectionStyle.Render(title + ":")
}

func renderMeta(s string) string {
	return metaStyle.Render(s)
}

// renderTable draws an ASCII grid, headers bolded.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	rule := func() {
		for _, w := range widths {
			b.WriteString("+")
			b.WriteString(strings.Repeat("-", w+2))
		}
		b.WriteString("+\n")
	}
	writeRow := func(cells []string, styled bool) {
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			padded := fmt.Sprintf(" %-*s ", w, cell)
			if styled {
				padded = sectionStyle.Render(padded)
			}
			b.WriteString("|")
			b.WriteString(padded)
		}
		b.WriteString("|\n")
	}

	rule()
	writeRow(headers, true)
	rule()
	for _, row := range rows {
		writeRow(row, false)
	}
	rule()
	return strings.TrimRight(b.String(), "\n")
}

// helpEntries lists every console command with its usage line.
var helpEntries = [][]string{
	{"start", "Start communication in manual mode"},
	{"stop", "Stop communication"},
	{"auto", "Enable auto-reconnect and start communication"},
	{"man", "Switch back to manual mode"},
	{"status", "Show connection state and active waveforms"},
	{"set <field> <value>", "Set a field value"},
	{"clear <field>", "Clear a field value"},
	{"get <field>", "Get the current value of a field"},
	{"fields", "List the declared fields of both assemblies"},
	{"frame", "Print the current field values of both assemblies"},
	{"wave <field> <max> <min> <period_ms>", "Start a sine waveform on a REAL field"},
	{"tria <field> <max> <min> <period_ms>", "Start a triangular waveform on a REAL field"},
	{"box <field> <max> <min> <period_ms> <duty>", "Start a square waveform on a REAL field"},
	{"stop-wave <field>", "Stop the waveform on a field"},
	{"live <refresh_ms>", "Redraw the frame until Enter is pressed"},
	{"netcheck [target] [multicast]", "Run the network preflight checks"},
	{"log", "Print the last 100 log file lines"},
	{"exit", "Leave the console"},
	{"help", "Show this table"},
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, renderTable([]string{"Command Usage", "Description"}, helpEntries))
}

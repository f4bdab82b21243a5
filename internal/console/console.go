package console

// Interactive operator console. One command per line over the shared packet
// state, the communication manager and the waveform generators.

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tturner/cipmaster/internal/comm"
	"github.com/tturner/cipmaster/internal/config"
	"github.com/tturner/cipmaster/internal/logging"
	"github.com/tturner/cipmaster/internal/netcheck"
	"github.com/tturner/cipmaster/internal/waveform"
)

// logTailLines bounds the `log` command output.
const logTailLines = 100

// Options wires the console to the rest of the tool. In, Out, NetRun and Now
// default to the real implementations; tests substitute fakes.
type Options struct {
	State   *comm.SharedState
	Manager *comm.Manager
	Waves   *waveform.Manager
	Config  *config.Config
	Logger  *logging.Logger
	Version string

	// Assembly display names, from the schema document.
	OTName string
	TOName string

	In     io.Reader
	Out    io.Writer
	NetRun func(netcheck.Config) netcheck.Result
	Now    func() time.Time
}

// Console is the interactive shell.
type Console struct {
	state   *comm.SharedState
	mgr     *comm.Manager
	waves   *waveform.Manager
	cfg     *config.Config
	logger  *logging.Logger
	version string
	otName  string
	toName  string

	in     *bufio.Reader
	out    io.Writer
	netRun func(netcheck.Config) netcheck.Result
	now    func() time.Time
}

// New builds a console from the given options.
func New(opts Options) *Console {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.NetRun == nil {
		opts.NetRun = netcheck.Run
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.OTName == "" {
		opts.OTName = "OT"
	}
	if opts.TOName == "" {
		opts.TOName = "TO"
	}
	return &Console{
		state:   opts.State,
		mgr:     opts.Manager,
		waves:   opts.Waves,
		cfg:     opts.Config,
		logger:  opts.Logger,
		version: opts.Version,
		otName:  opts.OTName,
		toName:  opts.TOName,
		in:      bufio.NewReader(opts.In),
		out:     opts.Out,
		netRun:  opts.NetRun,
		now:     opts.Now,
	}
}

// Run prints the banner and serves commands until exit or EOF. Waveforms and
// the communication loop are shut down on the way out.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, c.renderBanner())
	fmt.Fprintln(c.out, "Type 'help' to list commands. Type 'exit' or 'quit' to leave.")

	for {
		fmt.Fprint(c.out, "cipmaster> ")
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(c.out)
			break
		}
		if c.Dispatch(ctx, line) {
			break
		}
		if err != nil {
			break
		}
	}

	c.waves.StopAll()
	c.mgr.Stop()
	return nil
}

// Dispatch executes one command line and reports whether the console should
// exit.
func (c *Console) Dispatch(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		c.printHelp()
	case "start":
		c.cmdStart(ctx)
	case "stop":
		c.cmdStop()
	case "auto":
		c.cmdAuto(ctx)
	case "man":
		c.cmdMan()
	case "status":
		c.cmdStatus()
	case "set":
		c.cmdSet(rest)
	case "clear":
		c.cmdClear(rest)
	case "get":
		c.cmdGet(rest)
	case "fields":
		c.cmdFields()
	case "frame":
		c.cmdFrame()
	case "wave":
		c.cmdWave(rest, "wave")
	case "tria":
		c.cmdWave(rest, "tria")
	case "box":
		c.cmdWave(rest, "box")
	case "stop-wave", "stop_wave":
		c.cmdStopWave(rest)
	case "live":
		c.cmdLive(rest)
	case "netcheck", "test-net":
		c.cmdNetcheck(rest)
	case "log":
		c.cmdLog()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (try 'help')\n", cmd)
	}
	return false
}

func (c *Console) cmdStart(ctx context.Context) {
	if c.mgr.AutoEnabled() {
		fmt.Fprintln(c.out, "Auto-reconnect is enabled. Switch to manual mode with 'man' first.")
		return
	}
	fmt.Fprintln(c.out, "Attempting to start communication...")
	if err := c.mgr.Start(ctx); err != nil {
		c.printError(err)
	}
}

func (c *Console) cmdStop() {
	if c.mgr.AutoEnabled() {
		fmt.Fprintln(c.out, "Auto-reconnect is enabled. Switch to manual mode with 'man' first.")
		return
	}
	fmt.Fprintln(c.out, "Attempting to stop communication...")
	c.mgr.Stop()
	fmt.Fprintf(c.out, "Communication state: %s\n", c.mgr.State())
}

func (c *Console) cmdAuto(ctx context.Context) {
	if c.mgr.AutoEnabled() {
		fmt.Fprintln(c.out, "Already in auto-reconnect mode.")
		return
	}
	fmt.Fprintln(c.out, "Switching to auto-reconnect mode.")
	c.mgr.EnableAuto()
	if err := c.mgr.Start(ctx); err != nil {
		c.printError(err)
	}
}

func (c *Console) cmdMan() {
	if !c.mgr.AutoEnabled() {
		fmt.Fprintln(c.out, "Already in manual mode.")
		return
	}
	fmt.Fprintln(c.out, "Switching to manual mode.")
	c.mgr.DisableAuto()
}

func (c *Console) cmdStatus() {
	mode := "manual"
	if c.mgr.AutoEnabled() {
		mode = "auto-reconnect"
	}
	rows := [][]string{
		{"State", c.mgr.State().String()},
		{"Mode", mode},
		{"Target", c.cfg.Target.IP},
		{"Multicast", c.cfg.Target.Multicast},
		{"Active Waveforms", strings.Join(c.waves.Active(), ", ")},
	}
	fmt.Fprintln(c.out, renderTable([]string{"Item", "Value"}, rows))
}

func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: set <field> <value>")
		return
	}
	name, value := args[0], args[1]
	c.waves.Stop(name)
	if err := c.state.Set(name, value); err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "Set %s = %s\n", name, value)
}

func (c *Console) cmdClear(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: clear <field>")
		return
	}
	name := args[0]
	c.waves.Stop(name)
	if err := c.state.Clear(name); err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "Cleared %s\n", name)
}

func (c *Console) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: get <field>")
		return
	}
	name := args[0]
	value, err := c.state.Format(name)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, c.renderTimestamp())
	rows := [][]string{{name, formatValue(value)}}
	fmt.Fprintln(c.out, renderTable([]string{"Field Name", "Field Value"}, rows))
}

func (c *Console) cmdFields() {
	c.printFieldGroups(c.otName, c.state.OTFieldsByType())
	c.printFieldGroups(c.toName, c.state.TOFieldsByType())
}

func (c *Console) cmdFrame() {
	fmt.Fprintln(c.out, c.renderTimestamp())
	c.printValueTable(c.otName, c.state.OTValues())
	c.printValueTable(c.toName, c.state.TOValues())
}

func (c *Console) cmdWave(args []string, shape string) {
	usage := fmt.Sprintf("Usage: %s <field> <max> <min> <period_ms>", shape)
	if shape == "box" {
		usage += " <duty_cycle>"
	}
	want := 4
	if shape == "box" {
		want = 5
	}
	if len(args) != want {
		fmt.Fprintln(c.out, usage)
		return
	}

	name := args[0]
	max, err1 := strconv.ParseFloat(args[1], 64)
	min, err2 := strconv.ParseFloat(args[2], 64)
	periodMs, err3 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(c.out, usage)
		return
	}

	var fn waveform.Func
	switch shape {
	case "wave":
		fn = waveform.Sine(max, min)
	case "tria":
		fn = waveform.Triangle(max, min)
	case "box":
		duty, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			fmt.Fprintln(c.out, usage)
			return
		}
		fn = waveform.Square(max, min, duty)
	}

	period := time.Duration(periodMs) * time.Millisecond
	if err := c.waves.Start(name, period, fn); err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "Started %s waveform on %s (period %dms)\n", shape, name, periodMs)
}

func (c *Console) cmdStopWave(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: stop-wave <field>")
		return
	}
	if c.waves.Stop(args[0]) {
		fmt.Fprintf(c.out, "Stopped waveform on %s\n", args[0])
	} else {
		fmt.Fprintf(c.out, "No active waveform on %s\n", args[0])
	}
}

// cmdLive redraws the frame at the requested rate until the next input line
// arrives. Non-interactive input ends it immediately.
func (c *Console) cmdLive(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: live <refresh_ms>")
		return
	}
	refreshMs, err := strconv.Atoi(args[0])
	if err != nil || refreshMs <= 0 {
		fmt.Fprintln(c.out, "Usage: live <refresh_ms>")
		return
	}

	fmt.Fprintln(c.out, "Live view. Press Enter to stop.")
	stop := make(chan struct{})
	go func() {
		c.in.ReadString('\n')
		close(stop)
	}()

	ticker := time.NewTicker(time.Duration(refreshMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		c.cmdFrame()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (c *Console) cmdNetcheck(args []string) {
	target := c.cfg.Target.IP
	mcast := c.cfg.Target.Multicast
	if len(args) > 0 {
		target = args[0]
	}
	if len(args) > 1 {
		mcast = args[1]
	}

	result := c.netRun(netcheck.Config{TargetIP: target, MulticastIP: mcast})
	rows := make([][]string, 0, len(result.Checks))
	for _, check := range result.Checks {
		rows = append(rows, []string{check.Name, check.Status})
	}
	fmt.Fprintln(c.out, renderTable([]string{"Check", "Status"}, rows))
	if result.OK {
		fmt.Fprintln(c.out, "Network checks passed.")
	} else {
		fmt.Fprintln(c.out, "Network checks failed.")
	}
}

// cmdLog prints the tail of the configured log file.
func (c *Console) cmdLog() {
	if c.cfg.Log.File == "" {
		fmt.Fprintln(c.out, "No log file configured.")
		return
	}
	data, err := os.ReadFile(c.cfg.Log.File)
	if err != nil {
		c.printError(fmt.Errorf("read log file: %w", err))
		return
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	for _, line := range lines {
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) printValueTable(title string, values []comm.FieldValue) {
	rows := make([][]string, 0, len(values))
	for _, fv := range values {
		rows = append(rows, []string{fv.Name, formatValue(fv.Value)})
	}
	fmt.Fprintln(c.out, renderSection(title))
	fmt.Fprintln(c.out, renderTable([]string{"Field Name", "Field Value"}, rows))
}

func (c *Console) printFieldGroups(title string, groups map[string][]string) {
	rows := make([][]string, 0, len(groups))
	for _, typeName := range fieldTypeOrder {
		var declared []string
		for _, name := range groups[typeName] {
			if strings.HasPrefix(name, "spare_") {
				continue
			}
			declared = append(declared, name)
		}
		if len(declared) == 0 {
			continue
		}
		rows = append(rows, []string{typeName, strings.Join(declared, ", ")})
	}
	fmt.Fprintln(c.out, renderSection(title))
	fmt.Fprintln(c.out, renderTable([]string{"Field Type", "Field Names"}, rows))
}

func (c *Console) printError(err error) {
	if c.logger != nil {
		c.logger.Error("%v", err)
	} else {
		fmt.Fprintf(c.out, "ERROR: %v\n", err)
	}
}

func (c *Console) renderTimestamp() string {
	return renderMeta(c.now().Format("2006-01-02 15:04:05 MST"))
}

// fieldTypeOrder fixes the display order of the fields listing.
var fieldTypeOrder = []string{
	"bool", "sint", "usint", "int", "uint",
	"dint", "udint", "real", "lreal", "lint", "string",
}

func formatValue(v any) string {
	switch t := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

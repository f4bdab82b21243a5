package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tturner/cipmaster/internal/client"
	"github.com/tturner/cipmaster/internal/comm"
	"github.com/tturner/cipmaster/internal/config"
	"github.com/tturner/cipmaster/internal/layout"
	"github.com/tturner/cipmaster/internal/logging"
	"github.com/tturner/cipmaster/internal/netcheck"
	"github.com/tturner/cipmaster/internal/packet"
	"github.com/tturner/cipmaster/internal/waveform"
)

func testState(t *testing.T) *comm.SharedState {
	t.Helper()
	otLayout, err := layout.Compile("OT_EO", 64, []layout.FieldSpec{
		{ID: "MPU_CSpeed", BitOffset: 0, Type: layout.TypeREAL, Length: 1},
		{ID: "MPU_CTCMSAlive", BitOffset: 32, Type: layout.TypeUSINT, Length: 1},
	})
	if err != nil {
		t.Fatalf("compile O->T layout: %v", err)
	}
	toLayout, err := layout.Compile("TO", 16, []layout.FieldSpec{
		{ID: "DCU_Status", BitOffset: 0, Type: layout.TypeUINT, Length: 1},
	})
	if err != nil {
		t.Fatalf("compile T->O layout: %v", err)
	}
	return comm.NewSharedState(packet.New(otLayout), packet.New(toLayout))
}

type consoleFixture struct {
	console *Console
	out     *bytes.Buffer
	waves   *waveform.Manager
	netCfg  *netcheck.Config
}

func newFixture(t *testing.T) *consoleFixture {
	t.Helper()
	state := testState(t)
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	mgr := comm.NewManager(comm.Options{
		Dial: func(ctx context.Context, cfg client.Config) (comm.IOClient, error) {
			return nil, context.Canceled
		},
		JoinTimeout: time.Second,
	}, state, logger)

	waves := waveform.NewManager(state, time.Millisecond)
	out := &bytes.Buffer{}
	fx := &consoleFixture{out: out, waves: waves}

	cfg := &config.Config{
		Target: config.TargetConfig{IP: "10.0.1.1", Multicast: "239.192.1.3"},
	}
	fx.console = New(Options{
		State:   state,
		Manager: mgr,
		Waves:   waves,
		Config:  cfg,
		Logger:  nil,
		OTName:  "MPU_C",
		TOName:  "DCU",
		In:      strings.NewReader(""),
		Out:     out,
		NetRun: func(nc netcheck.Config) netcheck.Result {
			fx.netCfg = &nc
			return netcheck.Result{
				Checks: []netcheck.Check{{Name: "Communication With Target", Status: netcheck.StatusOK}},
				OK:     true,
			}
		},
		Now: func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
	})
	return fx
}

func (fx *consoleFixture) dispatch(t *testing.T, line string) string {
	t.Helper()
	fx.out.Reset()
	fx.console.Dispatch(context.Background(), line)
	return fx.out.String()
}

func TestSetGetClear(t *testing.T) {
	fx := newFixture(t)

	out := fx.dispatch(t, "set MPU_CSpeed 12.5")
	if !strings.Contains(out, "Set MPU_CSpeed = 12.5") {
		t.Errorf("set output: %q", out)
	}

	out = fx.dispatch(t, "get MPU_CSpeed")
	if !strings.Contains(out, "12.5") {
		t.Errorf("get output missing value: %q", out)
	}

	fx.dispatch(t, "clear MPU_CSpeed")
	out = fx.dispatch(t, "get MPU_CSpeed")
	if !strings.Contains(out, " 0 ") {
		t.Errorf("get after clear: %q", out)
	}
}

func TestSetUnknownField(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "set bogus 1")
	if !strings.Contains(out, "ERROR") {
		t.Errorf("expected error output, got %q", out)
	}
}

func TestGetReadsIncomingField(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "get DCU_Status")
	if !strings.Contains(out, "DCU_Status") {
		t.Errorf("get output: %q", out)
	}
}

func TestFieldsHidesSpares(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "fields")
	for _, want := range []string{"MPU_C", "DCU", "MPU_CSpeed", "DCU_Status", "real", "uint"} {
		if !strings.Contains(out, want) {
			t.Errorf("fields output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "spare_") {
		t.Errorf("fields output shows spares: %q", out)
	}
}

func TestFrameShowsBothAssemblies(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(t, "set MPU_CTCMSAlive 7")
	out := fx.dispatch(t, "frame")
	if !strings.Contains(out, "MPU_CTCMSAlive") || !strings.Contains(out, " 7 ") {
		t.Errorf("frame missing outgoing value: %q", out)
	}
	if !strings.Contains(out, "DCU_Status") {
		t.Errorf("frame missing incoming assembly: %q", out)
	}
}

func TestWaveLifecycle(t *testing.T) {
	fx := newFixture(t)

	out := fx.dispatch(t, "wave MPU_CSpeed 1.0 0.0 100")
	if !strings.Contains(out, "Started wave waveform on MPU_CSpeed") {
		t.Errorf("wave output: %q", out)
	}

	out = fx.dispatch(t, "status")
	if !strings.Contains(out, "MPU_CSpeed") {
		t.Errorf("status missing active waveform: %q", out)
	}

	out = fx.dispatch(t, "stop-wave MPU_CSpeed")
	if !strings.Contains(out, "Stopped waveform on MPU_CSpeed") {
		t.Errorf("stop-wave output: %q", out)
	}

	out = fx.dispatch(t, "stop_wave MPU_CSpeed")
	if !strings.Contains(out, "No active waveform") {
		t.Errorf("second stop-wave output: %q", out)
	}
}

func TestWaveRejectsNonRealField(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "tria MPU_CTCMSAlive 1 0 100")
	if !strings.Contains(out, "ERROR") {
		t.Errorf("expected rejection, got %q", out)
	}
}

func TestSetStopsActiveWave(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(t, "box MPU_CSpeed 1 0 100 0.5")
	fx.dispatch(t, "set MPU_CSpeed 3.0")
	if active := fx.waves.Active(); len(active) != 0 {
		t.Errorf("waveform still active after set: %v", active)
	}
}

func TestNetcheckUsesConfiguredAddresses(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "netcheck")
	if !strings.Contains(out, "Network checks passed") {
		t.Errorf("netcheck output: %q", out)
	}
	if fx.netCfg == nil || fx.netCfg.TargetIP != "10.0.1.1" || fx.netCfg.MulticastIP != "239.192.1.3" {
		t.Errorf("netcheck config: %+v", fx.netCfg)
	}

	fx.dispatch(t, "test-net 10.0.2.2 239.192.9.9")
	if fx.netCfg.TargetIP != "10.0.2.2" || fx.netCfg.MulticastIP != "239.192.9.9" {
		t.Errorf("netcheck override: %+v", fx.netCfg)
	}
}

func TestHelpListsCommands(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "help")
	for _, want := range []string{"start", "stop-wave", "netcheck", "live"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	fx := newFixture(t)
	out := fx.dispatch(t, "bogus")
	if !strings.Contains(out, "Unknown command") {
		t.Errorf("unknown command output: %q", out)
	}
}

func TestExitCommands(t *testing.T) {
	fx := newFixture(t)
	if !fx.console.Dispatch(context.Background(), "exit") {
		t.Errorf("exit did not request quit")
	}
	if !fx.console.Dispatch(context.Background(), "quit") {
		t.Errorf("quit did not request quit")
	}
	if fx.console.Dispatch(context.Background(), "help") {
		t.Errorf("help requested quit")
	}
}

func TestRunExitsOnEOF(t *testing.T) {
	fx := newFixture(t)
	if err := fx.console.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(fx.out.String(), "cipmaster") {
		t.Errorf("banner missing: %q", fx.out.String())
	}
}

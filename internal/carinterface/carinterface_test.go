package carinterface

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/units"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

func frame(t *testing.T, cat *canbus.Catalog, bus uint8, msg string, values map[string]float64) canbus.BusFrame {
	t.Helper()
	def, ok := cat.Message(msg)
	require.True(t, ok, msg)
	return def.Encode(bus, values)
}

// cycleFrames is one healthy cycle of traffic at the given wheel speed.
func cycleFrames(t *testing.T, mph float64, buttons ...string) []canbus.BusFrame {
	him := map[string]float64{}
	for _, b := range buttons {
		him[b] = 1
	}
	return []canbus.BusFrame{
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "TOYOTA_STEERING_ANGLE_SENSOR1", nil),
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "STEERING_STATUS", map[string]float64{"STEERING_OK": 1}),
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "BRAKE_STATUS", map[string]float64{"BRAKE_OK": 1}),
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "GAS_SENSOR", nil),
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "HIM_CTRLS", him),
		frame(t, &canbus.ChassisCatalog, canbus.BusChassis, "SMARTROADSTERWHEELSPEEDS", map[string]float64{
			"WHEELSPEED_FL": mph, "WHEELSPEED_FR": mph, "WHEELSPEED_RL": mph, "WHEELSPEED_RR": mph,
		}),
		frame(t, &canbus.ChassisCatalog, canbus.BusChassis, "GEAR_PACKET", map[string]float64{"GEAR": 3}),
	}
}

func newInterface(t *testing.T, opts Options) *CarInterface {
	t.Helper()
	vc, err := config.VariantConfigFor(config.DefaultTuningConfig())
	require.NoError(t, err)
	opts.Variant = vc
	ci, err := New(opts)
	require.NoError(t, err)
	return ci
}

func TestStepDecodesAndValidates(t *testing.T) {
	ci := newInterface(t, Options{})

	st := ci.Step(nil, false, StockPolicy)
	assert.False(t, st.CanValid, "no traffic yet")
	assert.Contains(t, st.Events, EventCanError)

	st = ci.Step(cycleFrames(t, 20, "SET_BTN"), false, StockPolicy)
	assert.True(t, st.CanValid)
	assert.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 20*units.MPHToMPS, st.CruiseState.Speed, 1e-9)
	assert.Equal(t, vehicle.GearDrive, st.GearShifter)
	assert.Contains(t, st.Events, EventPcmEnable)
	assert.NotContains(t, st.Events, EventCanError)

	primary, body := ci.ParserStats()
	assert.Equal(t, uint64(5), primary)
	assert.Equal(t, uint64(2), body)
}

func TestStepBroadcastsEveryButtonEachCycle(t *testing.T) {
	ci := newInterface(t, Options{})

	st := ci.Step(cycleFrames(t, 0, "SPEEDUP_BTN"), false, StockPolicy)
	want := []vehicle.ButtonEvent{
		{Type: vehicle.AccelCruise, Pressed: true},
		{Type: vehicle.DecelCruise, Pressed: false},
		{Type: vehicle.Cancel, Pressed: false},
		{Type: vehicle.SetCruise, Pressed: false},
	}
	if diff := cmp.Diff(want, st.ButtonEvents); diff != "" {
		t.Errorf("button events mismatch (-want +got):\n%s", diff)
	}

	// held button repeats, and released buttons still broadcast
	st = ci.Step(cycleFrames(t, 0, "SPEEDUP_BTN"), false, StockPolicy)
	require.Len(t, st.ButtonEvents, 4)
	assert.True(t, st.ButtonEvents[0].Pressed)

	st = ci.Step(cycleFrames(t, 0), false, StockPolicy)
	require.Len(t, st.ButtonEvents, 4)
	for _, be := range st.ButtonEvents {
		assert.False(t, be.Pressed, be.Type.String())
	}
}

func TestStepSnapshotsPreviousFlags(t *testing.T) {
	ci := newInterface(t, Options{})

	frames := cycleFrames(t, 10, "SET_BTN")
	frames = append(frames,
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "BRAKE_STATUS", map[string]float64{"BRAKE_OK": 1, "DRIVER_BRAKE_APPLIED": 1}),
		frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "GAS_SENSOR", map[string]float64{"PED_GAS": 40, "PED_GAS2": 40}),
	)
	ci.Step(frames, false, StockPolicy)

	prev := ci.Previous()
	assert.True(t, prev.BrakePressedPrev)
	assert.True(t, prev.GasPressedPrev)
	assert.True(t, prev.CruiseEnabledPrev)
	assert.True(t, prev.ButtonStatesPrev.Pressed(vehicle.SetCruise))
}

func TestStepClassifiesAgainstSnapshot(t *testing.T) {
	var seen []Snapshot
	ci := newInterface(t, Options{
		Events: EventClassifierFunc(func(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName {
			seen = append(seen, prev)
			return nil
		}),
	})

	gas := frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "GAS_SENSOR", map[string]float64{"PED_GAS": 40, "PED_GAS2": 40})
	ci.Step(append(cycleFrames(t, 10, "SET_BTN"), gas), false, StockPolicy)
	first := ci.Previous()
	ci.Step(cycleFrames(t, 10), false, StockPolicy)

	require.Len(t, seen, 2)
	assert.Equal(t, Snapshot{}, seen[0])
	assert.Equal(t, first, seen[1])
	assert.True(t, seen[1].GasPressedPrev)
}

func TestStepAppliesPolicy(t *testing.T) {
	ci := newInterface(t, Options{})

	st := ci.Step(cycleFrames(t, 10), false, ATLPolicy(true))
	assert.True(t, st.CruiseState.Enabled, "ATL engages without SET")

	// the decoder's own state is unaffected by the override
	assert.False(t, ci.DecoderState().EnabledPrevious)

	disengage := LongitudinalPolicy(func(vehicle.VehicleState) bool { return false })
	st = ci.Step(cycleFrames(t, 10, "SET_BTN"), false, disengage)
	assert.False(t, st.CruiseState.Enabled)
	assert.Contains(t, st.Events, EventPcmDisable)

	// nil policy behaves as stock
	st = ci.Step(cycleFrames(t, 10), false, nil)
	assert.True(t, st.CruiseState.Enabled)
}

func TestStepControlsBoardDisengage(t *testing.T) {
	ci := newInterface(t, Options{})
	board := func(on float64) canbus.BusFrame {
		return frame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "CURRENT_STATE", map[string]float64{"ENABLED": on})
	}

	st := ci.Step(append(cycleFrames(t, 30, "SET_BTN"), board(1)), ci.ControlsBoardEnabled(), StockPolicy)
	require.True(t, st.CruiseState.Enabled)
	assert.True(t, ci.ControlsBoardEnabled())

	st = ci.Step(append(cycleFrames(t, 30), board(0)), ci.ControlsBoardEnabled(), StockPolicy)
	assert.True(t, st.CruiseState.Enabled, "hint lags the board by one cycle")

	st = ci.Step(cycleFrames(t, 30), ci.ControlsBoardEnabled(), StockPolicy)
	assert.False(t, st.CruiseState.Enabled)
}

func TestStepReturnsIndependentCopies(t *testing.T) {
	ci := newInterface(t, Options{})
	st := ci.Step(cycleFrames(t, 0), false, StockPolicy)
	st.ButtonEvents[0].Pressed = true
	st.Events = append(st.Events[:0], "tampered")

	last := ci.LastState()
	assert.False(t, last.ButtonEvents[0].Pressed)
	assert.NotContains(t, last.Events, vehicle.EventName("tampered"))
}

type recordingGenerator struct {
	seen []CommandContext
	err  error
}

func (g *recordingGenerator) Update(cc CommandContext) ([]canbus.BusFrame, error) {
	g.seen = append(g.seen, cc)
	if g.err != nil {
		return nil, g.err
	}
	return []canbus.BusFrame{canbus.NewFrame(canbus.BusPrimary, 0x500, []byte{byte(cc.Frame)})}, nil
}

func TestApplyAdvancesFrameCounter(t *testing.T) {
	gen := &recordingGenerator{}
	ci := newInterface(t, Options{Generator: gen})

	st := ci.Step(cycleFrames(t, 15), false, StockPolicy)
	out, err := ci.Apply(ControlCommand{Enabled: true, Accel: 0.5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(0), out[0].Frame.Data[0])

	// decode calls do not move the counter
	ci.Step(cycleFrames(t, 15), false, StockPolicy)
	ci.Step(cycleFrames(t, 15), false, StockPolicy)
	_, err = ci.Apply(ControlCommand{})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), ci.Frame())
	require.Len(t, gen.seen, 2)
	assert.Equal(t, uint64(0), gen.seen[0].Frame)
	assert.Equal(t, uint64(1), gen.seen[1].Frame)
	assert.Equal(t, 0.5, gen.seen[0].Command.Accel)
	assert.Equal(t, st.VEgo, gen.seen[0].State.VEgo)

	gen.err = errors.New("bus off")
	_, err = ci.Apply(ControlCommand{})
	assert.Error(t, err)
	assert.Equal(t, uint64(3), ci.Frame(), "counter advances even when the generator fails")
}

func TestNullGenerator(t *testing.T) {
	ci := newInterface(t, Options{})
	frames, err := ci.Apply(ControlCommand{})
	assert.NoError(t, err)
	assert.Nil(t, frames)
	assert.Equal(t, uint64(1), ci.Frame())
}

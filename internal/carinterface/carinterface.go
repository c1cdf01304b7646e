// Package carinterface drives one decode cycle: it feeds bus frames to the
// two signal parsers, runs the vehicle decoder, applies the longitudinal
// policy, broadcasts button state, classifies safety events and hands the
// last state to the command generator.
package carinterface

import (
	"fmt"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

// ControlCommand is the actuation request produced by the controls layer.
type ControlCommand struct {
	Enabled      bool    `json:"enabled"`
	Accel        float64 `json:"accel"`
	SteerTorque  float64 `json:"steerTorque"`
	CruiseCancel bool    `json:"cruiseCancel"`
}

// CommandContext is what a CommandGenerator receives once per cycle.
type CommandContext struct {
	Command ControlCommand
	State   vehicle.VehicleState
	Params  config.CarParams
	Frame   uint64
}

// CommandGenerator turns a control command into outgoing frames.
type CommandGenerator interface {
	Update(cc CommandContext) ([]canbus.BusFrame, error)
}

// NullGenerator sends nothing.
type NullGenerator struct{}

func (NullGenerator) Update(CommandContext) ([]canbus.BusFrame, error) { return nil, nil }

// Snapshot holds the previous cycle's flags. The event classifier reads it
// for edge detection and Previous exposes it to other collaborators.
type Snapshot struct {
	GasPressedPrev    bool                   `json:"gasPressedPrev"`
	BrakePressedPrev  bool                   `json:"brakePressedPrev"`
	CruiseEnabledPrev bool                   `json:"cruiseEnabledPrev"`
	ButtonStatesPrev  vehicle.ButtonStateMap `json:"buttonStatesPrev"`
}

// Options configure a CarInterface.
type Options struct {
	Variant config.VariantConfig
	Params  config.CarParams
	// Limits may be nil when no map feed is attached.
	Limits    vehicle.SpeedLimitSource
	Events    EventClassifier
	Generator CommandGenerator
}

// CarInterface owns the parsers, the decoder and the actuation frame
// counter. Step and Apply are called from the control loop only.
type CarInterface struct {
	primary   *canbus.Parser
	body      *canbus.Parser
	decoder   *vehicle.Decoder
	events    EventClassifier
	generator CommandGenerator
	params    config.CarParams

	prev  Snapshot
	last  vehicle.VehicleState
	frame uint64
}

// New builds the primary and body parsers for the variant and wires the
// decoder.
func New(opts Options) (*CarInterface, error) {
	v := opts.Variant
	primary, err := canbus.NewParser(canbus.PrimaryParserConfig(v.HasGasInterceptor, v.CycleHz))
	if err != nil {
		return nil, fmt.Errorf("failed to build primary parser: %w", err)
	}
	body, err := canbus.NewParser(canbus.ChassisParserConfig(v.HasBodyBus, v.CycleHz))
	if err != nil {
		return nil, fmt.Errorf("failed to build body parser: %w", err)
	}

	ci := &CarInterface{
		primary:   primary,
		body:      body,
		decoder:   vehicle.NewDecoder(v, opts.Limits),
		events:    opts.Events,
		generator: opts.Generator,
		params:    opts.Params,
	}
	if ci.events == nil {
		ci.events = CommonEvents{}
	}
	if ci.generator == nil {
		ci.generator = NullGenerator{}
	}
	return ci, nil
}

// Step runs one cycle over the frames received since the previous call.
func (ci *CarInterface) Step(frames []canbus.BusFrame, actuationEnabled bool, policy LongitudinalPolicy) vehicle.VehicleState {
	ci.primary.UpdateFrames(frames)
	ci.body.UpdateFrames(frames)

	st := ci.decoder.Decode(ci.primary, ci.body, actuationEnabled)

	if policy == nil {
		policy = StockPolicy
	}
	st.CruiseState.Enabled = policy(st)

	st.CanValid = ci.primary.CanValid() && ci.body.CanValid()

	buttons := ci.decoder.State().Buttons
	st.ButtonEvents = buttons.Events()

	st.Events = ci.events.Classify(st, ci.prev)

	ci.prev = Snapshot{
		GasPressedPrev:    st.GasPressed,
		BrakePressedPrev:  st.BrakePressed,
		CruiseEnabledPrev: st.CruiseState.Enabled,
		ButtonStatesPrev:  buttons,
	}

	ci.last = st
	return st.Clone()
}

// Apply forwards the command and the last state to the generator and
// advances the frame counter by one.
func (ci *CarInterface) Apply(cmd ControlCommand) ([]canbus.BusFrame, error) {
	frames, err := ci.generator.Update(CommandContext{
		Command: cmd,
		State:   ci.last.Clone(),
		Params:  ci.params,
		Frame:   ci.frame,
	})
	ci.frame++
	if err != nil {
		return nil, fmt.Errorf("command generator at frame %d: %w", ci.frame-1, err)
	}
	return frames, nil
}

// ControlsBoardEnabled reports the engagement the controls board last
// acknowledged on the primary bus.
func (ci *CarInterface) ControlsBoardEnabled() bool {
	return ci.primary.Value("CURRENT_STATE", "ENABLED") != 0
}

// Frame returns the number of Apply calls so far.
func (ci *CarInterface) Frame() uint64 { return ci.frame }

// Previous returns the snapshot taken at the end of the last Step.
func (ci *CarInterface) Previous() Snapshot { return ci.prev }

// LastState returns the state produced by the last Step.
func (ci *CarInterface) LastState() vehicle.VehicleState { return ci.last.Clone() }

// DecoderState exposes the decoder's cross-cycle state for diagnostics.
func (ci *CarInterface) DecoderState() vehicle.DecoderState { return ci.decoder.State() }

// Params returns the calibration handed to the generator.
func (ci *CarInterface) Params() config.CarParams { return ci.params }

// ParserStats reports how many tracked frames each parser has decoded.
func (ci *CarInterface) ParserStats() (primary, body uint64) {
	return ci.primary.Received(), ci.body.Received()
}

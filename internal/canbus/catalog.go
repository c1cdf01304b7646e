package canbus

// Catalog is a named set of message layouts for one bus.
type Catalog struct {
	Name     string
	Messages []MessageDef
}

// Message looks up a message layout by name.
func (c *Catalog) Message(name string) (*MessageDef, bool) {
	for i := range c.Messages {
		if c.Messages[i].Name == name {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

func bit(name string, start uint) SignalDef {
	return SignalDef{Name: name, StartBit: start, Size: 1, Factor: 1}
}

// PrimaryCatalog is the layout of the powertrain bus: the steering angle
// sensor, the standin steering ECU, the brake booster, the cruise buttons and
// the gas interceptor.
var PrimaryCatalog = Catalog{
	Name: "ocelot_controls",
	Messages: []MessageDef{
		{
			Name: "TOYOTA_STEERING_ANGLE_SENSOR1", ID: 0x025, Length: 8,
			Signals: []SignalDef{
				{Name: "TOYOTA_STEER_ANGLE", StartBit: 3, Size: 12, Signed: true, Factor: 1.5},
				{Name: "TOYOTA_STEER_FRACTION", StartBit: 39, Size: 4, Signed: true, Factor: 0.1},
				{Name: "TOYOTA_STEER_RATE", StartBit: 35, Size: 12, Signed: true, Factor: 1},
			},
		},
		{
			Name: "GAS_SENSOR", ID: 0x201, Length: 6,
			Signals: []SignalDef{
				{Name: "PED_GAS", StartBit: 7, Size: 16, Factor: 1},
				{Name: "PED_GAS2", StartBit: 23, Size: 16, Factor: 1},
				{Name: "STATE", StartBit: 35, Size: 4, Factor: 1},
			},
		},
		{
			Name: "STEERING_STATUS", ID: 0x210, Length: 8,
			Signals: []SignalDef{
				{Name: "STEERING_TORQUE_DRIVER", StartBit: 7, Size: 16, Signed: true, Factor: 1},
				{Name: "STEERING_TORQUE_EPS", StartBit: 23, Size: 16, Signed: true, Factor: 1},
				bit("STEERING_OK", 32),
			},
		},
		{
			Name: "BRAKE_STATUS", ID: 0x220, Length: 8,
			Signals: []SignalDef{
				bit("DRIVER_BRAKE_APPLIED", 0),
				bit("BRAKE_APPLIED", 1),
				bit("BRAKE_OK", 2),
				{Name: "BRAKE_PEDAL_POSITION", StartBit: 15, Size: 16, Factor: 1},
			},
		},
		{
			Name: "HIM_CTRLS", ID: 0x230, Length: 1,
			Signals: []SignalDef{
				bit("SET_BTN", 0),
				bit("CANCEL_BTN", 1),
				bit("SPEEDUP_BTN", 2),
				bit("SPEEDDN_BTN", 3),
			},
		},
		{
			Name: "CURRENT_STATE", ID: 0x240, Length: 1,
			Signals: []SignalDef{
				bit("ENABLED", 0),
			},
		},
	},
}

// ChassisCatalog is the layout of the body/chassis bus of the smart roadster.
var ChassisCatalog = Catalog{
	Name: "ocelot_smart_roadster_pt",
	Messages: []MessageDef{
		{
			Name: "SMARTROADSTERWHEELSPEEDS", ID: 0x200, Length: 8,
			Signals: []SignalDef{
				{Name: "WHEELSPEED_FL", StartBit: 7, Size: 16, Factor: 0.01},
				{Name: "WHEELSPEED_FR", StartBit: 23, Size: 16, Factor: 0.01},
				{Name: "WHEELSPEED_RL", StartBit: 39, Size: 16, Factor: 0.01},
				{Name: "WHEELSPEED_RR", StartBit: 55, Size: 16, Factor: 0.01},
			},
		},
		{
			Name: "ABS", ID: 0x300, Length: 2,
			Signals: []SignalDef{
				bit("ESP_STATUS", 0),
				{Name: "BRAKEPEDAL", StartBit: 15, Size: 8, Factor: 1},
			},
		},
		{
			Name: "GEAR_PACKET", ID: 0x310, Length: 3,
			Signals: []SignalDef{
				{Name: "GEAR", StartBit: 3, Size: 4, Factor: 1},
				{Name: "RPM", StartBit: 15, Size: 16, Factor: 1},
			},
		},
		{
			Name: "BODYCONTROL", ID: 0x320, Length: 1,
			Signals: []SignalDef{
				bit("RIGHT_DOOR", 0),
				bit("LEFT_DOOR", 1),
				bit("LEFT_SIGNAL", 2),
				bit("RIGHT_SIGNAL", 3),
			},
		},
	},
}

// PrimaryParserConfig returns the signals and freshness checks read from the
// primary bus. The gas sensor is only requested when the interceptor is fitted.
func PrimaryParserConfig(gasInterceptor bool, cycleHz float64) ParserConfig {
	cfg := ParserConfig{
		Catalog: &PrimaryCatalog,
		Bus:     BusPrimary,
		CycleHz: cycleHz,
		Signals: []SignalRequest{
			{"TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_ANGLE"},
			{"BRAKE_STATUS", "BRAKE_APPLIED"},
			{"BRAKE_STATUS", "DRIVER_BRAKE_APPLIED"},
			{"BRAKE_STATUS", "BRAKE_OK"},
			{"BRAKE_STATUS", "BRAKE_PEDAL_POSITION"},
			{"TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_FRACTION"},
			{"TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_RATE"},
			{"HIM_CTRLS", "SET_BTN"},
			{"HIM_CTRLS", "CANCEL_BTN"},
			{"HIM_CTRLS", "SPEEDUP_BTN"},
			{"HIM_CTRLS", "SPEEDDN_BTN"},
			{"STEERING_STATUS", "STEERING_TORQUE_DRIVER"},
			{"STEERING_STATUS", "STEERING_TORQUE_EPS"},
			{"STEERING_STATUS", "STEERING_OK"},
			{"CURRENT_STATE", "ENABLED"},
		},
		Checks: []Check{
			{"TOYOTA_STEERING_ANGLE_SENSOR1", 80},
			{"STEERING_STATUS", 80},
			{"BRAKE_STATUS", 80},
		},
	}

	if gasInterceptor {
		cfg.Signals = append(cfg.Signals,
			SignalRequest{"GAS_SENSOR", "PED_GAS"},
			SignalRequest{"GAS_SENSOR", "PED_GAS2"},
		)
		cfg.Checks = append(cfg.Checks, Check{"GAS_SENSOR", 50})
	}
	return cfg
}

// ChassisParserConfig returns the signals read from the body/chassis bus. A
// variant without a body bus gets an empty parser that is always valid.
func ChassisParserConfig(hasBodyBus bool, cycleHz float64) ParserConfig {
	cfg := ParserConfig{
		Catalog: &ChassisCatalog,
		Bus:     BusChassis,
		CycleHz: cycleHz,
	}
	if !hasBodyBus {
		return cfg
	}
	cfg.Signals = []SignalRequest{
		{"BODYCONTROL", "RIGHT_DOOR"},
		{"BODYCONTROL", "LEFT_DOOR"},
		{"BODYCONTROL", "LEFT_SIGNAL"},
		{"BODYCONTROL", "RIGHT_SIGNAL"},
		{"ABS", "ESP_STATUS"},
		{"SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_FL"},
		{"SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_FR"},
		{"SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_RL"},
		{"SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_RR"},
		{"ABS", "BRAKEPEDAL"},
		{"GEAR_PACKET", "GEAR"},
		{"GEAR_PACKET", "RPM"},
	}
	return cfg
}

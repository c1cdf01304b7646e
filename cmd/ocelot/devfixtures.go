package main

import (
	"math"

	"github.com/banshee-data/ocelot/internal/canbus"
)

// devCycles is the number of frame groups in one replayed drive.
const devCycles = 120

func encodeLine(cat *canbus.Catalog, bus uint8, msg string, values map[string]float64) string {
	def, ok := cat.Message(msg)
	if !ok {
		panic("unknown fixture message " + msg)
	}
	return canbus.FormatSLCAN(def.Encode(bus, values))
}

// devLines synthesizes SLCAN traffic for dev mode. The primary bus carries
// healthy status frames with a single SET press a quarter of the way in; the
// chassis bus ramps the wheel speeds up to 40 mph and back in drive.
func devLines(bus uint8) []string {
	var lines []string
	for i := 0; i < devCycles; i++ {
		switch bus {
		case canbus.BusPrimary:
			him := map[string]float64{}
			if i == devCycles/4 {
				him["SET_BTN"] = 1
			}
			lines = append(lines,
				encodeLine(&canbus.PrimaryCatalog, bus, "TOYOTA_STEERING_ANGLE_SENSOR1", map[string]float64{"TOYOTA_STEER_ANGLE": 3 * math.Sin(float64(i)/10)}),
				encodeLine(&canbus.PrimaryCatalog, bus, "STEERING_STATUS", map[string]float64{"STEERING_OK": 1}),
				encodeLine(&canbus.PrimaryCatalog, bus, "BRAKE_STATUS", map[string]float64{"BRAKE_OK": 1}),
				encodeLine(&canbus.PrimaryCatalog, bus, "GAS_SENSOR", nil),
				encodeLine(&canbus.PrimaryCatalog, bus, "HIM_CTRLS", him),
			)
		case canbus.BusChassis:
			mph := 40 * math.Sin(math.Pi*float64(i)/devCycles)
			lines = append(lines,
				encodeLine(&canbus.ChassisCatalog, bus, "SMARTROADSTERWHEELSPEEDS", map[string]float64{
					"WHEELSPEED_FL": mph, "WHEELSPEED_FR": mph, "WHEELSPEED_RL": mph, "WHEELSPEED_RR": mph,
				}),
				encodeLine(&canbus.ChassisCatalog, bus, "GEAR_PACKET", map[string]float64{"GEAR": 3}),
			)
		}
	}
	return lines
}

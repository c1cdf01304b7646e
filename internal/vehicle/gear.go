package vehicle

// GearShifter is the decoded gear selector position.
type GearShifter string

const (
	GearUnknown   GearShifter = "unknown"
	GearPark      GearShifter = "park"
	GearReverse   GearShifter = "reverse"
	GearNeutral   GearShifter = "neutral"
	GearDrive     GearShifter = "drive"
	GearSport     GearShifter = "sport"
	GearLow       GearShifter = "low"
	GearBrake     GearShifter = "brake"
	GearEco       GearShifter = "eco"
	GearManumatic GearShifter = "manumatic"
)

var gearLetters = map[string]GearShifter{
	"P": GearPark,
	"R": GearReverse,
	"N": GearNeutral,
	"E": GearEco,
	"T": GearManumatic,
	"D": GearDrive,
	"S": GearSport,
	"L": GearLow,
	"B": GearBrake,
}

// ParseGearShifter maps a shifter letter from a variant's gear table to a
// GearShifter. Anything unrecognised is GearUnknown.
func ParseGearShifter(letter string) GearShifter {
	if g, ok := gearLetters[letter]; ok {
		return g
	}
	return GearUnknown
}

// GearFromRaw resolves a raw gear signal through a variant's value table.
func GearFromRaw(table map[int]string, raw float64) GearShifter {
	letter, ok := table[int(raw)]
	if !ok {
		return GearUnknown
	}
	return ParseGearShifter(letter)
}

package ir

// Version constants for the generated guard units and the weaving engine.
const (
	// UnitVersion is the layout version of synthesized guard units.
	UnitVersion = "1"

	// EngineVersion is the contractweave engine version.
	EngineVersion = "0.1.0"
)

package alert

// Kind is an identity for one actionable condition, mapped 1:1 to a cooldown slot.
type Kind string

const (
	KindHighTemperature      Kind = "high-temperature"
	KindLowTemperature       Kind = "low-temperature"
	KindHighHeartRate        Kind = "high-heart-rate"
	KindLowHeartRate         Kind = "low-heart-rate"
	KindNormalHeartRate      Kind = "normal-heart-rate"
	KindAlcoholDetected      Kind = "alcohol-detected"
	KindMotionDetected       Kind = "motion-detected"
	KindConnectivityLost     Kind = "connectivity-lost"
	KindConnectivityRestored Kind = "connectivity-restored"
	KindSystemStartup        Kind = "system-startup"
)

// cues maps each kind to the audio cue resolved by the notification subsystem.
// The names match the sound bank shipped with the speaker service.
var cues = map[Kind]string{
	KindHighTemperature:      "high_temp",
	KindLowTemperature:       "temp_measure",
	KindHighHeartRate:        "high_bpm",
	KindLowHeartRate:         "normal_bpm",
	KindNormalHeartRate:      "normal_bpm",
	KindAlcoholDetected:      "alcohol_detected",
	KindMotionDetected:       "motion",
	KindConnectivityLost:     "error",
	KindConnectivityRestored: "online",
	KindSystemStartup:        "setup_complete",
}

// Cue returns the opaque action identifier for this kind.
func (k Kind) Cue() string {
	if cue, ok := cues[k]; ok {
		return cue
	}
	return string(k)
}

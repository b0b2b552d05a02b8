package domain

import "time"

// LayerCount is the number of sky layers a message can report.
const LayerCount = 5

// TimeLayout is the ISO 8601 form of TimeUTC.
const TimeLayout = "2006-01-02T15:04:05"

// Record is one decoded ceilometer message. The decoder fills the raw
// encodings field by field; PostProcess derives the physical quantities.
// A record returned by a decoder is finalized and must not be modified.
type Record struct {
	Dialect Dialect

	TimeUTC Field[string]
	Time    Field[float64] // seconds since 1970-01-01 00:00:00 UTC

	Unit            Field[string]
	SoftwareLevel   Field[int64]
	MessageNumber   Field[int64]
	MessageSubclass Field[int64]

	DetectionStatus    Field[string]
	SelfCheck          Field[string]
	VerticalVisibility Field[float64]
	CBH1               Field[float64]
	CBH2               Field[float64]
	CBH3               Field[float64]
	HighestSignal      Field[float64]
	StatusAlarm        Field[int64]
	StatusWarning      Field[int64]
	StatusInternal     Field[int64]
	Units              Field[string]

	SkyDetectionStatus Field[int64]
	LayerHeight        [LayerCount]Field[float64]
	LayerCloudAmount   [LayerCount]Field[int64]

	Scale               Field[int64]
	VerticalResolution  Field[int64]
	SampleCount         Field[int64]
	MeasurementMode     Field[string]
	PulseEnergy         Field[int64]
	LaserTemperature    Field[int64]
	WindowTransmission  Field[int64]
	WindowContamination Field[int64]
	ReceiverSensitivity Field[int64]
	TiltAngle           Field[int64]
	BackgroundLight     Field[int64]
	PulseLength         Field[string]
	PulseCount          Field[int64]
	ReceiverGain        Field[string]
	ReceiverBandwidth   Field[string]
	SamplingFrequency   Field[float64]
	BackscatterSum      Field[float64]
	Backscatter         []float64 // NaN where a sample is missing

	Device Field[string]
	Period Field[int64]

	Raw RawFields
}

// RawFields holds encodings consumed by PostProcess. They are not part of
// the output schema.
type RawFields struct {
	Height         [3]Field[int64]
	LayerHeight    [LayerCount]Field[int64]
	Backscatter    []Field[int64]
	BackscatterSum Field[int64]
	PulseCount     Field[int64]
	Sampling       Field[int64]
	Checksum       Field[int64]
	Message        []byte
}

// SetTime stores t in both time forms.
func (r *Record) SetTime(t time.Time) {
	t = t.UTC()
	r.TimeUTC = Value(t.Format(TimeLayout))
	r.Time = Value(float64(t.UnixNano()) / 1e9)
}

// Timestamp returns the record time when either form is valid.
func (r Record) Timestamp() (time.Time, bool) {
	if secs, ok := r.Time.Get(); ok {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), true
	}
	if s, ok := r.TimeUTC.Get(); ok {
		t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package schema

import (
	"math"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// accessor reads one variable out of a record. values returns nil for a
// missing element.
type accessor struct {
	present func(domain.Record) bool
	values  func(r domain.Record, levels int) []any
}

func scalar[T any](get func(domain.Record) domain.Field[T]) accessor {
	return accessor{
		present: func(r domain.Record) bool { return get(r).Declared() },
		values: func(r domain.Record, _ int) []any {
			if v, ok := get(r).Get(); ok {
				return []any{v}
			}
			return []any{nil}
		},
	}
}

func layered[T any](get func(domain.Record) [domain.LayerCount]domain.Field[T]) accessor {
	return accessor{
		present: func(r domain.Record) bool {
			for _, f := range get(r) {
				if f.Declared() {
					return true
				}
			}
			return false
		},
		values: func(r domain.Record, _ int) []any {
			out := make([]any, domain.LayerCount)
			for i, f := range get(r) {
				if v, ok := f.Get(); ok {
					out[i] = v
				}
			}
			return out
		},
	}
}

var profile = accessor{
	present: func(r domain.Record) bool { return r.Backscatter != nil },
	values: func(r domain.Record, levels int) []any {
		out := make([]any, levels)
		for i, v := range r.Backscatter {
			if i < levels && !math.IsNaN(v) {
				out[i] = v
			}
		}
		return out
	},
}

var accessors = map[string]accessor{
	"time_utc":             scalar(func(r domain.Record) domain.Field[string] { return r.TimeUTC }),
	"time":                 scalar(func(r domain.Record) domain.Field[float64] { return r.Time }),
	"backscatter":          profile,
	"unit":                 scalar(func(r domain.Record) domain.Field[string] { return r.Unit }),
	"software_level":       scalar(func(r domain.Record) domain.Field[int64] { return r.SoftwareLevel }),
	"message_number":       scalar(func(r domain.Record) domain.Field[int64] { return r.MessageNumber }),
	"message_subclass":     scalar(func(r domain.Record) domain.Field[int64] { return r.MessageSubclass }),
	"detection_status":     scalar(func(r domain.Record) domain.Field[string] { return r.DetectionStatus }),
	"self_check":           scalar(func(r domain.Record) domain.Field[string] { return r.SelfCheck }),
	"vertical_visibility":  scalar(func(r domain.Record) domain.Field[float64] { return r.VerticalVisibility }),
	"cbh_1":                scalar(func(r domain.Record) domain.Field[float64] { return r.CBH1 }),
	"cbh_2":                scalar(func(r domain.Record) domain.Field[float64] { return r.CBH2 }),
	"cbh_3":                scalar(func(r domain.Record) domain.Field[float64] { return r.CBH3 }),
	"highest_signal":       scalar(func(r domain.Record) domain.Field[float64] { return r.HighestSignal }),
	"status_alarm":         scalar(func(r domain.Record) domain.Field[int64] { return r.StatusAlarm }),
	"status_warning":       scalar(func(r domain.Record) domain.Field[int64] { return r.StatusWarning }),
	"status_internal":      scalar(func(r domain.Record) domain.Field[int64] { return r.StatusInternal }),
	"units":                scalar(func(r domain.Record) domain.Field[string] { return r.Units }),
	"vertical_resolution":  scalar(func(r domain.Record) domain.Field[int64] { return r.VerticalResolution }),
	"sample_count":         scalar(func(r domain.Record) domain.Field[int64] { return r.SampleCount }),
	"scale":                scalar(func(r domain.Record) domain.Field[int64] { return r.Scale }),
	"measurement_mode":     scalar(func(r domain.Record) domain.Field[string] { return r.MeasurementMode }),
	"sky_detection_status": scalar(func(r domain.Record) domain.Field[int64] { return r.SkyDetectionStatus }),
	"pulse_energy":         scalar(func(r domain.Record) domain.Field[int64] { return r.PulseEnergy }),
	"laser_temperature":    scalar(func(r domain.Record) domain.Field[int64] { return r.LaserTemperature }),
	"window_transmission":  scalar(func(r domain.Record) domain.Field[int64] { return r.WindowTransmission }),
	"window_contamination": scalar(func(r domain.Record) domain.Field[int64] { return r.WindowContamination }),
	"receiver_sensitivity": scalar(func(r domain.Record) domain.Field[int64] { return r.ReceiverSensitivity }),
	"tilt_angle":           scalar(func(r domain.Record) domain.Field[int64] { return r.TiltAngle }),
	"background_light":     scalar(func(r domain.Record) domain.Field[int64] { return r.BackgroundLight }),
	"pulse_length":         scalar(func(r domain.Record) domain.Field[string] { return r.PulseLength }),
	"pulse_count":          scalar(func(r domain.Record) domain.Field[int64] { return r.PulseCount }),
	"receiver_gain":        scalar(func(r domain.Record) domain.Field[string] { return r.ReceiverGain }),
	"receiver_bandwidth":   scalar(func(r domain.Record) domain.Field[string] { return r.ReceiverBandwidth }),
	"sampling_frequency":   scalar(func(r domain.Record) domain.Field[float64] { return r.SamplingFrequency }),
	"backscatter_sum":      scalar(func(r domain.Record) domain.Field[float64] { return r.BackscatterSum }),
	"layer_height":         layered(func(r domain.Record) [domain.LayerCount]domain.Field[float64] { return r.LayerHeight }),
	"layer_cloud_amount":   layered(func(r domain.Record) [domain.LayerCount]domain.Field[int64] { return r.LayerCloudAmount }),
	"device":               scalar(func(r domain.Record) domain.Field[string] { return r.Device }),
	"period":               scalar(func(r domain.Record) domain.Field[int64] { return r.Period }),
}

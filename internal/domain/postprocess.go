package domain

import (
	"math"
	"time"
)

const feetToMetres = 0.3048

// Layer heights are reported in tens of metres or hundreds of feet.
const (
	layerResolutionMetres = 10
	layerResolutionFeet   = 100
)

// heightRoute names which raw height slot (0-2) feeds each derived field,
// -1 for none.
type heightRoute struct {
	verticalVisibility, cbh1, cbh2, cbh3, highestSignal int
}

// heightRoutes is keyed by detection status:
//
//	1-3  one to three cloud bases detected
//	4    full obscuration, vertical visibility and highest signal reported
//
// Any other status (0 no significant backscatter, 5 transparent
// obscuration, '/' suspect input) routes nothing.
var heightRoutes = map[string]heightRoute{
	"1": {verticalVisibility: -1, cbh1: 0, cbh2: -1, cbh3: -1, highestSignal: -1},
	"2": {verticalVisibility: -1, cbh1: 0, cbh2: 1, cbh3: -1, highestSignal: -1},
	"3": {verticalVisibility: -1, cbh1: 0, cbh2: 1, cbh3: 2, highestSignal: -1},
	"4": {verticalVisibility: 0, cbh1: -1, cbh2: -1, cbh3: -1, highestSignal: 1},
}

var noRoute = heightRoute{-1, -1, -1, -1, -1}

// PostProcess derives physical quantities from the raw encodings of a
// complete record: unit conversion, height routing, backscatter scaling,
// pulse count expansion and time consistency.
func PostProcess(r Record) Record {
	spec := r.Dialect.Spec()

	metric := true
	if v, ok := r.StatusInternal.Get(); ok {
		metric = v&spec.UnitBit != 0
		if metric {
			r.Units = Value("m")
		} else {
			r.Units = Value("ft")
		}
	} else if r.StatusInternal.Declared() {
		r.Units = Missing[string]()
	}
	heightFactor := 1.0
	layerFactor := float64(layerResolutionMetres)
	if !metric {
		heightFactor = feetToMetres
		layerFactor = layerResolutionFeet * feetToMetres
	}

	if r.DetectionStatus.Declared() {
		route, ok := heightRoutes[r.DetectionStatus.Or("")]
		if !ok {
			route = noRoute
		}
		pick := func(i int, factor float64) Field[float64] {
			if i < 0 {
				return Missing[float64]()
			}
			return mapField(r.Raw.Height[i], func(v int64) float64 { return float64(v) * factor })
		}
		r.VerticalVisibility = pick(route.verticalVisibility, heightFactor)
		r.CBH1 = pick(route.cbh1, heightFactor)
		r.CBH2 = pick(route.cbh2, heightFactor)
		r.CBH3 = pick(route.cbh3, heightFactor)
		r.HighestSignal = pick(route.highestSignal, 1)
	}

	for i, raw := range r.Raw.LayerHeight {
		r.LayerHeight[i] = mapField(raw, func(v int64) float64 { return float64(v) * layerFactor })
	}

	// Scale stays as reported; the nominal value only enters the arithmetic.
	scale := float64(r.Scale.Or(spec.NominalScale)) / 100
	if r.Raw.Backscatter != nil {
		r.Backscatter = make([]float64, len(r.Raw.Backscatter))
		for i, s := range r.Raw.Backscatter {
			r.Backscatter[i] = math.NaN()
			if v, ok := s.Get(); ok {
				r.Backscatter[i] = float64(v) / spec.ProfileBase * scale
			}
		}
	}
	r.BackscatterSum = mapField(r.Raw.BackscatterSum, func(v int64) float64 {
		return float64(v) / spec.SumBase * scale
	})

	r.PulseCount = expandPulseCount(r.Raw.PulseCount, spec)
	r.SamplingFrequency = mapField(r.Raw.Sampling, func(v int64) float64 {
		return float64(v) * spec.SamplingMultiplier
	})

	if spec.FixedResolution > 0 && !r.VerticalResolution.Valid() {
		r.VerticalResolution = Value(spec.FixedResolution)
	}

	reconcileTime(&r)
	return r
}

// expandPulseCount applies the dialect formula. Codes that would overflow
// are treated as missing.
func expandPulseCount(coded Field[int64], spec DialectSpec) Field[int64] {
	c, ok := coded.Get()
	if !ok {
		return coded
	}
	if spec.Dialect == DialectCT && (c < 0 || c > 26) {
		return Missing[int64]()
	}
	return Value(spec.PulseCount(c))
}

// reconcileTime derives whichever time form is missing from the other.
func reconcileTime(r *Record) {
	_, hasString := r.TimeUTC.Get()
	_, hasNumber := r.Time.Get()
	switch {
	case hasString && !hasNumber:
		t, err := time.ParseInLocation(TimeLayout, r.TimeUTC.Or(""), time.UTC)
		if err != nil {
			r.TimeUTC = Missing[string]()
			r.Time = Missing[float64]()
			return
		}
		r.Time = Value(float64(t.Unix()))
	case hasNumber && !hasString:
		t, _ := r.Timestamp()
		r.TimeUTC = Value(t.Format(TimeLayout))
	case !hasString && !hasNumber:
		r.TimeUTC = Missing[string]()
		r.Time = Missing[float64]()
	}
}

package decoder

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// Stage is the position of the state machine within a message.
type Stage int

const (
	StageTimestamp Stage = iota
	StageHeader
	StageStatus
	StageSky
	StageConfig
	StageProfile
	StageChecksum
)

var stageNames = [...]string{"timestamp", "header", "status", "sky condition", "instrument config", "profile", "checksum"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// State is the per-record decoding state. The zero value awaits a timestamp.
type State struct {
	Stage Stage
	// Segment counts instrument config iterations for segmented profiles:
	// 0 is the config line, 1..N are profile segments.
	Segment int
	Record  domain.Record
}

// Action tells the caller what to do after a step.
type Action int

const (
	// ActionContinue means the line was consumed into the current record.
	ActionContinue Action = iota
	// ActionEmit means the line completed the record.
	ActionEmit
	// ActionEmitReplay means the record is complete and the line starts
	// the next one; step it again from the returned state.
	ActionEmitReplay
	// ActionDrop means the line failed its grammar; the record is abandoned.
	ActionDrop
)

// Effect is the outcome of a step.
type Effect struct {
	Action Action
	Record domain.Record // set for ActionEmit and ActionEmitReplay
	Err    error         // set for ActionDrop
	// Warning is a non-fatal problem with a consumed line.
	Warning error
	// Replay is set on a drop caused by a line that starts the next record.
	Replay bool
}

// Machine is the message state machine. Step is a pure function of its
// inputs: it never writes into slices shared with the State it was given.
// A Machine holds only configuration.
type Machine struct {
	grammar *Grammar
	// date is attached to time-only timestamp lines.
	date time.Time
	// keepMessage retains raw message bytes for checksum verification.
	keepMessage bool
}

// NewMachine creates a state machine. A zero date leaves time-only lines
// unresolved.
func NewMachine(g *Grammar, date time.Time, keepMessage bool) *Machine {
	return &Machine{grammar: g, date: date, keepMessage: keepMessage}
}

// Step advances st by one line.
func (m *Machine) Step(st State, line RawLine) (State, Effect) {
	var (
		next State
		err  error
	)
	switch st.Stage {
	case StageTimestamp:
		return m.timestamp(line)
	case StageHeader:
		next, err = m.header(st, line)
	case StageStatus:
		next, err = m.status(st, line)
	case StageSky:
		next, err = m.sky(st, line)
	case StageConfig:
		next, err = m.config(st, line)
	case StageProfile:
		next, err = m.profile(st, line)
	case StageChecksum:
		return m.checksum(st, line)
	default:
		err = fmt.Errorf("invalid decoding stage %d", int(st.Stage))
	}
	if err != nil {
		// A record past its instrument config survives being cut short.
		if m.Complete(st) && m.startsRecord(line.Text) {
			return State{}, Effect{Action: ActionEmitReplay, Record: st.Record}
		}
		reset, eff := drop(st.Stage, err)
		eff.Replay = m.startsRecord(line.Text)
		return reset, eff
	}
	return next, Effect{Action: ActionContinue}
}

// StartsRecord reports whether line can begin a record: a timestamp or a
// header line.
func (m *Machine) StartsRecord(line RawLine) bool {
	return m.startsRecord(line.Text)
}

// Complete reports whether st holds a record that may be finalized early,
// at end of input or when the next record starts: one that reached its
// profile stage.
func (m *Machine) Complete(st State) bool {
	switch st.Stage {
	case StageProfile, StageChecksum:
		return true
	case StageConfig:
		return st.Segment > 1
	default:
		return false
	}
}

func drop(stage Stage, err error) (State, Effect) {
	return State{}, Effect{Action: ActionDrop, Err: fmt.Errorf("%s: %w", stage, err)}
}

func (m *Machine) timestamp(line RawLine) (State, Effect) {
	t, err := m.grammar.Timestamps.Resolve(line.Text, m.date)
	switch {
	case err == nil:
		st := State{Stage: StageHeader}
		st.Record.SetTime(t)
		return st, Effect{Action: ActionContinue}
	case errors.Is(err, domain.ErrNoDate):
		return State{Stage: StageHeader}, Effect{Action: ActionContinue, Warning: err}
	}
	// No timestamp: the same line must be the header.
	next, err := m.header(State{Stage: StageHeader}, line)
	if err != nil {
		return drop(StageHeader, err)
	}
	return next, Effect{Action: ActionContinue}
}

func (m *Machine) header(st State, line RawLine) (State, error) {
	d, err := m.grammar.Dialect(line.Text)
	if err != nil {
		return st, err
	}
	f, err := fields(m.grammar.headers[d], line.Text, "header")
	if err != nil {
		return st, err
	}
	r := &st.Record
	r.Dialect = d
	r.Unit = domain.ParseCode(f["unit"])
	if err := parseInts(f, map[string]*domain.Field[int64]{
		"software_level":   &r.SoftwareLevel,
		"message_number":   &r.MessageNumber,
		"message_subclass": &r.MessageSubclass,
	}); err != nil {
		return st, err
	}
	if m.keepMessage {
		raw := line.Raw
		if len(raw) > 0 && raw[0] == 0x01 {
			raw = raw[1:]
		}
		r.Raw.Message = append([]byte(nil), raw...)
	}
	st.Stage = StageStatus
	return st, nil
}

func (m *Machine) status(st State, line RawLine) (State, error) {
	r := &st.Record
	f, err := fields(m.grammar.status[r.Dialect], line.Text, "status")
	if err != nil {
		return st, err
	}
	r.DetectionStatus = domain.ParseCode(f["detection_status"])
	r.SelfCheck = domain.ParseCode(f["self_check"])
	if err := parseInts(f, map[string]*domain.Field[int64]{
		"height1": &r.Raw.Height[0],
		"height2": &r.Raw.Height[1],
		"height3": &r.Raw.Height[2],
	}); err != nil {
		return st, err
	}
	for name, dst := range map[string]*domain.Field[int64]{
		"status_alarm":    &r.StatusAlarm,
		"status_warning":  &r.StatusWarning,
		"status_internal": &r.StatusInternal,
	} {
		if *dst, err = domain.ParseHex(f[name]); err != nil {
			return st, fmt.Errorf("%s: %w", name, err)
		}
	}
	m.appendMessage(r, line)

	spec := r.Dialect.Spec()
	st.Stage = StageConfig
	if n, ok := r.MessageNumber.Get(); ok && spec.HasSkyCondition && n == spec.SkyMessageNumber {
		st.Stage = StageSky
	}
	return st, nil
}

func (m *Machine) sky(st State, line RawLine) (State, error) {
	r := &st.Record
	f, err := fields(m.grammar.sky, line.Text, "sky condition")
	if err != nil {
		return st, err
	}
	if r.SkyDetectionStatus, err = domain.ParseInt(f["sky_detection_status"]); err != nil {
		return st, fmt.Errorf("sky_detection_status: %w", err)
	}
	for i := range domain.LayerCount {
		if r.Raw.LayerHeight[i], err = domain.ParseInt(f[fmt.Sprintf("layer%d_height", i+1)]); err != nil {
			return st, fmt.Errorf("layer%d_height: %w", i+1, err)
		}
		if i == 0 {
			continue
		}
		if r.LayerCloudAmount[i], err = domain.ParseInt(f[fmt.Sprintf("layer%d_cloud_amount", i+1)]); err != nil {
			return st, fmt.Errorf("layer%d_cloud_amount: %w", i+1, err)
		}
	}
	// The sky status doubles as the first layer's amount in octas; outside
	// 0-8 (vertical visibility, missing, not enough data) no amount is valid.
	sky, ok := r.SkyDetectionStatus.Get()
	if ok && sky >= 0 && sky <= 8 {
		r.LayerCloudAmount[0] = domain.Value(sky)
	} else {
		for i := range r.LayerCloudAmount {
			r.LayerCloudAmount[i] = domain.Missing[int64]()
		}
	}
	m.appendMessage(r, line)
	st.Stage = StageConfig
	return st, nil
}

func (m *Machine) config(st State, line RawLine) (State, error) {
	r := &st.Record
	spec := r.Dialect.Spec()
	if st.Segment > 0 {
		return m.segment(st, line)
	}
	f, err := fields(m.grammar.config[r.Dialect], line.Text, "instrument config")
	if err != nil {
		return st, err
	}
	ints := map[string]*domain.Field[int64]{
		"scale":             &r.Scale,
		"pulse_energy":      &r.PulseEnergy,
		"laser_temperature": &r.LaserTemperature,
		"tilt_angle":        &r.TiltAngle,
		"background_light":  &r.BackgroundLight,
		"pulse_count":       &r.Raw.PulseCount,
		"sampling":          &r.Raw.Sampling,
		"backscatter_sum":   &r.Raw.BackscatterSum,
	}
	if spec.Segmented {
		ints["receiver_sensitivity"] = &r.ReceiverSensitivity
		ints["window_contamination"] = &r.WindowContamination
		r.MeasurementMode = domain.ParseCode(f["measurement_mode"])
	} else {
		ints["vertical_resolution"] = &r.VerticalResolution
		ints["sample_count"] = &r.SampleCount
		ints["window_transmission"] = &r.WindowTransmission
	}
	if err := parseInts(f, ints); err != nil {
		return st, err
	}
	r.PulseLength = domain.ParseCode(f["pulse_length"])
	r.ReceiverGain = domain.ParseCode(f["receiver_gain"])
	r.ReceiverBandwidth = domain.ParseCode(f["receiver_bandwidth"])
	m.appendMessage(r, line)

	if !spec.Segmented {
		st.Stage = StageProfile
		return st, nil
	}
	r.Raw.Backscatter = make([]domain.Field[int64], spec.ProfileLength())
	for i := range r.Raw.Backscatter {
		r.Raw.Backscatter[i] = domain.Missing[int64]()
	}
	st.Segment = 1
	return st, nil
}

// segment writes one profile segment into the fixed-length profile at its
// start offset.
func (m *Machine) segment(st State, line RawLine) (State, error) {
	r := &st.Record
	spec := r.Dialect.Spec()
	f, err := fields(m.grammar.segment[r.Dialect], line.Text, "profile segment")
	if err != nil {
		return st, err
	}
	offset, err := domain.ParseInt(f["offset"])
	if err != nil {
		return st, fmt.Errorf("offset: %w", err)
	}
	start, _ := offset.Get()
	if start < 0 || int(start)+spec.SegmentSamples > len(r.Raw.Backscatter) {
		return st, fmt.Errorf("%w: segment offset %d outside profile", ErrGrammar, start)
	}
	samples, err := domain.ParseHexArray(f["samples"], spec.SampleDigits)
	if err != nil {
		return st, err
	}
	r.Raw.Backscatter = slices.Clone(r.Raw.Backscatter)
	copy(r.Raw.Backscatter[start:], samples)
	m.appendMessage(r, line)

	st.Segment++
	if st.Segment > spec.ProfileSegments {
		st.Stage = StageChecksum
		st.Segment = 0
	}
	return st, nil
}

func (m *Machine) profile(st State, line RawLine) (State, error) {
	r := &st.Record
	f, err := fields(m.grammar.profile, line.Text, "profile")
	if err != nil {
		return st, err
	}
	if r.Raw.Backscatter, err = domain.ParseHexArray(f["backscatter"], r.Dialect.Spec().SampleDigits); err != nil {
		return st, err
	}
	m.appendMessage(r, line)
	st.Stage = StageChecksum
	return st, nil
}

// checksum consumes the trailing checksum or trailing epoch line. Anything
// that starts a new record completes the current one instead.
func (m *Machine) checksum(st State, line RawLine) (State, Effect) {
	r := st.Record
	if f, err := fields(m.grammar.checksum, line.Text, "checksum"); err == nil {
		if r.Raw.Checksum, err = domain.ParseHex(f["checksum"]); err != nil {
			return drop(StageChecksum, err)
		}
		if m.keepMessage {
			r.Raw.Message = append(slices.Clip(r.Raw.Message), line.Raw[0])
		}
		return State{}, Effect{Action: ActionEmit, Record: r}
	}
	if m.grammar.trailingEpoch.MatchString(line.Text) && !r.Time.Valid() {
		t, err := domain.ParseEpoch(line.Text)
		if err != nil {
			return drop(StageChecksum, err)
		}
		r.SetTime(t)
		return State{}, Effect{Action: ActionEmit, Record: r}
	}
	if m.startsRecord(line.Text) {
		return State{}, Effect{Action: ActionEmitReplay, Record: r}
	}
	return drop(StageChecksum, fmt.Errorf("%w: expected checksum, timestamp or header", ErrGrammar))
}

func (m *Machine) startsRecord(text string) bool {
	ts := m.grammar.Timestamps
	return ts.IsBannerTimestamp(text) || ts.IsEpoch(text) || m.grammar.IsHeader(text)
}

func (m *Machine) appendMessage(r *domain.Record, line RawLine) {
	if m.keepMessage {
		r.Raw.Message = append(slices.Clip(r.Raw.Message), line.Raw...)
	}
}

func parseInts(f map[string]string, dst map[string]*domain.Field[int64]) error {
	for name, p := range dst {
		v, err := domain.ParseInt(f[name])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*p = v
	}
	return nil
}

package decoder

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// ErrGrammar reports a line that does not match its stage's grammar.
var ErrGrammar = errors.New("line does not match grammar")

// Grammar holds the compiled line matchers. It is immutable once built and
// safe to share between decoders running in parallel.
type Grammar struct {
	Timestamps *domain.TimestampResolver

	tag           *regexp.Regexp
	headers       map[domain.Dialect]*regexp.Regexp
	status        map[domain.Dialect]*regexp.Regexp
	config        map[domain.Dialect]*regexp.Regexp
	segment       map[domain.Dialect]*regexp.Regexp
	sky           *regexp.Regexp
	profile       *regexp.Regexp
	checksum      *regexp.Regexp
	trailingEpoch *regexp.Regexp
}

// NewGrammar compiles the matchers for every supported dialect.
func NewGrammar() *Grammar {
	g := &Grammar{
		Timestamps: domain.NewTimestampResolver(),
		tag:        regexp.MustCompile(`^\x01?([A-Z]{2})`),
		headers:    make(map[domain.Dialect]*regexp.Regexp),
		status:     make(map[domain.Dialect]*regexp.Regexp),
		config:     make(map[domain.Dialect]*regexp.Regexp),
		segment:    make(map[domain.Dialect]*regexp.Regexp),
		sky: regexp.MustCompile(`^ (?P<sky_detection_status>..) +(?P<layer1_height>.{4}) ` +
			`+(?P<layer2_cloud_amount>.) +(?P<layer2_height>.{4}) ` +
			`+(?P<layer3_cloud_amount>.) +(?P<layer3_height>.{4}) ` +
			`+(?P<layer4_cloud_amount>.) +(?P<layer4_height>.{4}) ` +
			`+(?P<layer5_cloud_amount>.) +(?P<layer5_height>.{3,4})$`),
		profile:       regexp.MustCompile(`^(?P<backscatter>[0-9A-Fa-f/]*)$`),
		checksum:      regexp.MustCompile(`^\x03(?P<checksum>[0-9A-Fa-f]{4})\x04$`),
		trailingEpoch: regexp.MustCompile(`^\d+$`),
	}

	for _, d := range domain.Dialects() {
		spec := d.Spec()
		g.headers[d] = regexp.MustCompile(fmt.Sprintf(
			`^\x01?%s(?P<unit>.)(?P<software_level>\d{%d})(?P<message_number>\d{%d})(?P<message_subclass>\d)\x02?$`,
			d, spec.SoftwareLevelWidth, spec.MessageNumberWidth))
		g.status[d] = regexp.MustCompile(fmt.Sprintf(
			`^(?P<detection_status>.)(?P<self_check>.) (?P<height1>.{5}) (?P<height2>.{5}) (?P<height3>.{5}) `+
				`(?P<status_alarm>.{%d})(?P<status_warning>.{%d})(?P<status_internal>.{4})$`,
			spec.AlarmWidth, spec.WarningWidth))
		if spec.Segmented {
			g.segment[d] = regexp.MustCompile(fmt.Sprintf(
				`^(?P<offset>\d{3}) ?(?P<samples>[0-9A-Fa-f]{%d})$`, spec.SegmentSamples*spec.SampleDigits))
		}
	}

	g.config[domain.DialectCL] = regexp.MustCompile(`^(?P<scale>.{5}) (?P<vertical_resolution>..) (?P<sample_count>.{4}) ` +
		`(?P<pulse_energy>...) (?P<laser_temperature>...) (?P<window_transmission>...) (?P<tilt_angle>..) ` +
		`(?P<background_light>.{4}) (?P<pulse_length>.)(?P<pulse_count>.{4})(?P<receiver_gain>.)` +
		`(?P<receiver_bandwidth>.)(?P<sampling>..) (?P<backscatter_sum>...)$`)
	g.config[domain.DialectCT] = regexp.MustCompile(`^(?P<scale>.{3}) (?P<measurement_mode>.) (?P<pulse_energy>...) ` +
		`(?P<laser_temperature>...) (?P<receiver_sensitivity>...) (?P<window_contamination>.{4}) ` +
		`(?P<tilt_angle>...) (?P<background_light>.{4}) (?P<pulse_length>.)(?P<pulse_count>.{4})` +
		`(?P<receiver_gain>.)(?P<receiver_bandwidth>.)(?P<sampling>..) (?P<backscatter_sum>...)$`)

	return g
}

// Dialect returns the dialect tag embedded in a header line.
func (g *Grammar) Dialect(line string) (domain.Dialect, error) {
	m := g.tag.FindStringSubmatch(line)
	if m == nil {
		return domain.DialectUnknown, fmt.Errorf("%w: no dialect tag", ErrGrammar)
	}
	return domain.ParseDialect(m[1])
}

// IsHeader reports whether line is a header of any known dialect.
func (g *Grammar) IsHeader(line string) bool {
	d, err := g.Dialect(line)
	return err == nil && g.headers[d].MatchString(line)
}

// fields matches line against re and returns its named groups.
func fields(re *regexp.Regexp, line, what string) (map[string]string, error) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("%w: invalid %s line", ErrGrammar, what)
	}
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = m[i]
		}
	}
	return out, nil
}

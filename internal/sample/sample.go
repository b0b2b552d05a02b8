// Package sample builds synthetic ceilometer files in the DAT line protocol
// and the HIS history format. The output is deterministic so it can serve
// as test fixtures and demo input.
package sample

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// Control characters framing a DAT message.
const (
	soh = "\x01"
	stx = "\x02"
	etx = "\x03"
	eot = "\x04"
)

// Stamp selects how a message carries its time.
type Stamp int

const (
	// StampDateTime precedes the message with "-YYYY-MM-DD HH:MM:SS".
	StampDateTime Stamp = iota
	// StampEpoch precedes the message with Unix seconds.
	StampEpoch
	// StampTimeOnly precedes the message with "= HH:MM:SS".
	StampTimeOnly
	// StampTrailing follows the profile with Unix seconds instead of a checksum.
	StampTrailing
	// StampNone omits the time.
	StampNone
)

// Missing marks a numeric field rendered as placeholder slashes.
const Missing = math.MinInt

// Layer is one sky layer.
type Layer struct {
	Amount int
	Height int
}

// Message describes one DAT message.
type Message struct {
	Dialect       domain.Dialect
	Time          time.Time
	Stamp         Stamp
	MessageNumber int

	DetectionStatus byte
	Heights         [3]int
	Feet            bool

	SkyStatus int
	Layers    [domain.LayerCount]Layer

	Scale      int
	PulseCount int
	Sum        int
	Profile    []int64

	// BadChecksum writes a checksum that does not match the message.
	BadChecksum bool
}

// CL returns a CL31 style message with sky condition data and a 770-bin
// profile. seed varies the profile between messages.
func CL(t time.Time, seed int) Message {
	return Message{
		Dialect:         domain.DialectCL,
		Time:            t,
		MessageNumber:   2,
		DetectionStatus: '1',
		Heights:         [3]int{1230, Missing, Missing},
		SkyStatus:       3,
		Layers: [domain.LayerCount]Layer{
			{Amount: 3, Height: 120},
			{Amount: 0, Height: Missing},
			{Amount: 0, Height: Missing},
			{Amount: 0, Height: Missing},
			{Amount: 0, Height: Missing},
		},
		Scale:      100,
		PulseCount: 16,
		Sum:        63,
		Profile:    Profile(770, seed),
	}
}

// CT returns a CT25K style message with a full 256-bin segmented profile.
func CT(t time.Time, seed int) Message {
	return Message{
		Dialect:         domain.DialectCT,
		Time:            t,
		MessageNumber:   6,
		DetectionStatus: '2',
		Heights:         [3]int{850, 2400, Missing},
		Scale:           100,
		PulseCount:      2,
		Sum:             52,
		Profile:         Profile(domain.DialectCT.Spec().ProfileLength(), seed),
	}
}

// Profile returns a deterministic decaying backscatter profile with a
// cloud return and a few negative noise samples.
func Profile(n, seed int) []int64 {
	p := make([]int64, n)
	cloud := 40 + seed%20
	for i := range p {
		v := 800*math.Exp(-float64(i)/60) + 3000*math.Exp(-math.Pow(float64(i-cloud)/3, 2))
		noise := int64((i*7+seed*13)%11) - 5
		p[i] = int64(v) + noise
	}
	return p
}

// Lines renders the message lines without line endings or the checksum.
func (m Message) Lines() []string {
	spec := m.Dialect.Spec()
	var lines []string

	lines = append(lines, fmt.Sprintf("%s%s0%0*d%0*d%d%s",
		soh, m.Dialect,
		spec.SoftwareLevelWidth, 202%int(math.Pow10(spec.SoftwareLevelWidth)),
		spec.MessageNumberWidth, m.MessageNumber,
		1, stx))

	internal := 0x0080
	if m.Feet {
		internal = 0
	}
	lines = append(lines, fmt.Sprintf("%c0 %s %s %s %0*X%0*X%04X",
		m.DetectionStatus,
		field(m.Heights[0], 5), field(m.Heights[1], 5), field(m.Heights[2], 5),
		spec.AlarmWidth, 0, spec.WarningWidth, 0, internal))

	if spec.HasSkyCondition && int64(m.MessageNumber) == spec.SkyMessageNumber {
		var b strings.Builder
		fmt.Fprintf(&b, " %s %s", field(m.SkyStatus, 2), field(m.Layers[0].Height, 4))
		for _, l := range m.Layers[1:] {
			fmt.Fprintf(&b, " %s %s", field(l.Amount, 1), field(l.Height, 4))
		}
		lines = append(lines, b.String())
	}

	if spec.Segmented {
		lines = append(lines, fmt.Sprintf("%s N 100 +25 100 0012 +01 0150 L%04dHN15 %s",
			field(m.Scale, 3), m.PulseCount, field(m.Sum, 3)))
		for seg := 0; seg*spec.SegmentSamples < len(m.Profile); seg++ {
			start := seg * spec.SegmentSamples
			end := min(start+spec.SegmentSamples, len(m.Profile))
			lines = append(lines, fmt.Sprintf("%03d%s", start, domain.EncodeHexArray(m.Profile[start:end], spec.SampleDigits)))
		}
	} else {
		lines = append(lines, fmt.Sprintf("%s 10 %04d 098 +32 099 13 0621 L%04dHN15 %s",
			field(m.Scale, 5), len(m.Profile), m.PulseCount, field(m.Sum, 3)))
		lines = append(lines, domain.EncodeHexArray(m.Profile, spec.SampleDigits))
	}
	return lines
}

// Bytes renders the message with CRLF line endings, its timestamp line and
// its trailer.
func (m Message) Bytes() []byte {
	var b strings.Builder
	switch m.Stamp {
	case StampDateTime:
		fmt.Fprintf(&b, "-%s\r\n", m.Time.UTC().Format("2006-01-02 15:04:05"))
	case StampEpoch:
		fmt.Fprintf(&b, "%d\r\n", m.Time.Unix())
	case StampTimeOnly:
		fmt.Fprintf(&b, "= %s\r\n", m.Time.UTC().Format("15:04:05"))
	}

	var msg strings.Builder
	for _, line := range m.Lines() {
		msg.WriteString(line)
		msg.WriteString("\r\n")
	}
	body := msg.String()
	b.WriteString(body)

	if m.Stamp == StampTrailing {
		fmt.Fprintf(&b, "%d\r\n", m.Time.Unix())
		return []byte(b.String())
	}
	crc := domain.Checksum([]byte(strings.TrimPrefix(body, soh) + etx))
	if m.BadChecksum {
		crc ^= 0x5A5A
	}
	fmt.Fprintf(&b, "%s%04x%s\r\n", etx, crc, eot)
	return []byte(b.String())
}

// DAT concatenates messages into a file body.
func DAT(msgs ...Message) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.Bytes()...)
	}
	return out
}

// Series returns n messages built by newMsg, spaced interval apart from start.
func Series(newMsg func(time.Time, int) Message, start time.Time, interval time.Duration, n int, stamp Stamp) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = newMsg(start.Add(time.Duration(i)*interval), i)
		msgs[i].Stamp = stamp
	}
	return msgs
}

// HISRow is one history file row.
type HISRow struct {
	Time    time.Time
	Device  string
	Period  int
	Profile []int64
}

// HIS renders a history file with a banner and column header.
func HIS(rows ...HISRow) []byte {
	var b strings.Builder
	b.WriteString("History file\r\n")
	b.WriteString("-----------------------------------\r\n")
	b.WriteString("CREATEDATE,UNIXTIME,CEILOMETER,PERIOD,BS_PROFILE\r\n")
	k := domain.DialectCL.Spec().SampleDigits
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%d,%s,%d,%s\r\n",
			r.Time.UTC().Format("2006-01-02 15:04:05"), r.Time.Unix(),
			r.Device, r.Period, domain.EncodeHexArray(r.Profile, k))
	}
	return []byte(b.String())
}

// field renders v zero-padded to width, or width slashes when missing.
func field(v, width int) string {
	if v == Missing {
		return strings.Repeat("/", width)
	}
	return fmt.Sprintf("%0*d", width, v)
}

// Package domain models lidar ceilometer messages and the quantities
// derived from them.
//
// # Data Source
//
// Vaisala CL31, CL51 and CT25K ceilometers emit a multi-line ASCII message
// per measurement cycle. Loggers store these messages in DAT files, usually
// preceded by a timestamp line. BL-View additionally writes HIS history
// files, a comma-separated table with one hex-packed profile per row.
//
// # Message Layout
//
// A DAT message (CL31 message 2, with sky condition) looks like:
//
//	-2013-07-01 00:00:12
//	<SOH>CL020221<STX>
//	30 01230 12340 23450 000000000080
//	 08  0120 0  //// 0  //// 0  //// 0  ////
//	00100 10 0770 098 +32 099 13 0621 L0016HN15 063
//	0001f0001a00019...
//	<ETX>d0a3<EOT>
//
// The two-letter tag after <SOH> selects the dialect (CL or CT); the tag
// fixes field widths and the formulas of PostProcess. See [DialectSpec].
//
// # Conventions
//
// Missing values:
//
//	A fixed-width field made only of '/' (and padding) means "not
//	applicable". It decodes to a missing [Field], never to zero.
//
// Units:
//
//	Bit 0x0080 of the internal status bitmask is set when heights are in
//	metres and clear when they are in feet. PostProcess converts feet to
//	metres (x 0.3048). Sky layer heights are in tens of metres or hundreds
//	of feet before that conversion.
//
// Backscatter:
//
//	Samples are two's-complement hex, 5 digits (CL) or 4 digits (CT). The
//	coefficient is sample / base * scale / 100 in km^-1 sr^-1, where base
//	is 100000 (CL) or 10000 (CT).
//
// Integrity:
//
//	The optional trailing checksum is CRC-16/GENIBUS over the message from
//	the byte after <SOH> through <ETX>, line terminators included.
package domain

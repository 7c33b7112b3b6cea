// Package pars reads and writes calcsfh parameter ("pars") files.
//
// A pars file has a fixed positional layout agreed with calcsfh:
//
//	lines 0-4   opaque header, copied verbatim
//	line  5     blue filter depths: <faint> <bright> [more fields...]
//	line  6     red filter depths:  <faint> <bright> [more fields...]
//	lines 7-8   opaque trailer, copied verbatim
//	...         time-resolution block
//
// The offsets are named in Layout and checked on Parse, so a template that
// drifts from the convention fails with a FormatError instead of being
// silently misread.
package pars

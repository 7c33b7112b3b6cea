package pars

import (
	"strconv"
	"strings"
)

// Depths is the depth quadruple carried by lines 5 and 6 of a pars file.
type Depths struct {
	BlueFaint  float64 `json:"blue_faint"`
	BlueBright float64 `json:"blue_bright"`
	RedFaint   float64 `json:"red_faint"`
	RedBright  float64 `json:"red_bright"`
}

// Array returns the depths in file order: blue faint, blue bright, red faint,
// red bright.
func (d Depths) Array() [4]float64 {
	return [4]float64{d.BlueFaint, d.BlueBright, d.RedFaint, d.RedBright}
}

// ReadBaseline returns the depths written in the pars file at path.
func ReadBaseline(path string) (Depths, error) {
	f, err := Open(path)
	if err != nil {
		return Depths{}, err
	}
	return f.Depths(), nil
}

// FormatDepth renders a depth with 12 significant digits and always keeps a
// decimal point, so 24 is written back as "24.0" like the templates have it.
func FormatDepth(v float64) string {
	s := strconv.FormatFloat(v, 'g', 12, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

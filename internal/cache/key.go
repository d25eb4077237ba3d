package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/stockpool/internal/indicator"
)

// Key identifies one cached derivation. ParamsFP is a canonical
// fingerprint of the parameter set, so the key survives as a struct and
// never gets parsed back out of a string.
type Key struct {
	Instrument string
	Indicator  string
	ParamsFP   string
}

// NewKey builds a key with the canonical parameter fingerprint
func NewKey(instrument, indicatorName string, params indicator.Params) Key {
	return Key{
		Instrument: instrument,
		Indicator:  indicatorName,
		ParamsFP:   Fingerprint(params),
	}
}

// String renders the key for logs and singleflight grouping
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Instrument, k.Indicator, k.ParamsFP)
}

// Fingerprint renders params as a sorted "k=v,k=v" string. Identical
// parameter sets always produce identical fingerprints.
func Fingerprint(params indicator.Params) string {
	if len(params) == 0 {
		return ""
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(params[name], 'g', -1, 64))
	}
	return b.String()
}

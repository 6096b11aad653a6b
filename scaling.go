package tdms

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// scaler converts a slice of raw decoded values into scaled float64
// values, applied after windowed decode and before the result reaches a
// caller (spec: scaling composes over raw reads, not before windowing).
type scaler interface {
	apply(raw []any) ([]float64, error)
}

// composedScaler chains scalers in ascending NI_Scale index order, each
// consuming the previous stage's output.
type composedScaler []scaler

func (c composedScaler) apply(raw []any) ([]float64, error) {
	if len(c) == 0 {
		return toFloat64Slice(raw)
	}
	vals, err := c[0].apply(raw)
	if err != nil {
		return nil, err
	}
	for _, s := range c[1:] {
		boxed := make([]any, len(vals))
		for i, v := range vals {
			boxed[i] = v
		}
		vals, err = s.apply(boxed)
		if err != nil {
			return nil, err
		}
	}
	return vals, nil
}

type linearScale struct {
	slope, intercept float64
}

func (s linearScale) apply(raw []any) ([]float64, error) {
	in, err := toFloat64Slice(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = v*s.slope + s.intercept
	}
	return out, nil
}

type polynomialScale struct {
	coefficients []float64 // coefficients[0] + coefficients[1]*x + ...
}

func (s polynomialScale) apply(raw []any) ([]float64, error) {
	in, err := toFloat64Slice(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	for i, x := range in {
		var v float64
		for j := len(s.coefficients) - 1; j >= 0; j-- {
			v = v*x + s.coefficients[j]
		}
		out[i] = v
	}
	return out, nil
}

// tableScale maps raw values to scaled values via linear interpolation
// over a sorted set of (pre, post) pairs, clamping to the table's ends.
type tableScale struct {
	pre, post []float64 // pre is sorted ascending
}

func (s tableScale) apply(raw []any) ([]float64, error) {
	in, err := toFloat64Slice(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = s.interpolate(x)
	}
	return out, nil
}

func (s tableScale) interpolate(x float64) float64 {
	n := len(s.pre)
	if n == 0 {
		return x
	}
	if n == 1 || x <= s.pre[0] {
		return s.post[0]
	}
	if x >= s.pre[n-1] {
		return s.post[n-1]
	}
	j := sort.SearchFloat64s(s.pre, x)
	if s.pre[j] == x {
		return s.post[j]
	}
	lo, hi := j-1, j
	frac := (x - s.pre[lo]) / (s.pre[hi] - s.pre[lo])
	return s.post[lo] + frac*(s.post[hi]-s.post[lo])
}

// unsupportedScale represents a recognized scale type with no available
// conversion formula (RTD, Thermistor, Thermocouple). Compilation
// succeeds so the channel's properties remain inspectable; applying the
// scale fails.
type unsupportedScale struct {
	kind string
}

func (s unsupportedScale) apply([]any) ([]float64, error) {
	return nil, fmt.Errorf("%w: %s scaling has no implemented conversion", ErrUnsupportedFeature, s.kind)
}

// toFloat64Slice widens every element of raw to float64, erroring on
// non-numeric values such as strings or booleans (spec: strings are never
// scaled).
func toFloat64Slice(raw []any) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case Float128:
		return t.Float64(), nil
	default:
		return 0, fmt.Errorf("%w: value of type %T cannot be scaled", ErrUnsupportedFeature, v)
	}
}

// compileScaling scans a channel's accumulated properties for NI_Scale[k]_*
// declarations and compiles a composedScaler applying them in ascending
// index order. Returns (nil, false, nil) if no scaling is declared.
func compileScaling(props []Property) (composedScaler, bool, error) {
	byName := make(map[string]Property, len(props))
	for _, p := range props {
		byName[p.Name] = p
	}

	groups := map[int]map[string]Property{}
	for name, p := range byName {
		idx, suffix, ok := parseScaleProperty(name)
		if !ok {
			continue
		}
		g, ok := groups[idx]
		if !ok {
			g = make(map[string]Property)
			groups[idx] = g
		}
		g[suffix] = p
	}

	if len(groups) == 0 {
		return nil, false, nil
	}

	indices := make([]int, 0, len(groups))
	for idx := range groups {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var chain composedScaler
	for _, idx := range indices {
		s, err := compileOneScale(groups[idx])
		if err != nil {
			return nil, true, err
		}
		chain = append(chain, s)
	}
	return chain, true, nil
}

func compileOneScale(fields map[string]Property) (scaler, error) {
	typeProp, ok := fields["Scale_Type"]
	if !ok {
		return nil, fmt.Errorf("%w: scale group missing Scale_Type", ErrMalformedFile)
	}
	kind, err := typeProp.AsString()
	if err != nil {
		return nil, err
	}

	switch kind {
	case "Linear":
		slope, err := floatField(fields, "Linear_Slope")
		if err != nil {
			return nil, err
		}
		intercept, err := floatField(fields, "Linear_Y_Intercept")
		if err != nil {
			return nil, err
		}
		return linearScale{slope: slope, intercept: intercept}, nil

	case "Polynomial":
		coeffs := indexedFloatArray(fields, "Polynomial_Coefficients")
		return polynomialScale{coefficients: coeffs}, nil

	case "Table":
		pre := indexedFloatArray(fields, "Table_Pre_Scaled_Values")
		post := indexedFloatArray(fields, "Table_Scaled_Values")
		return tableScale{pre: pre, post: post}, nil

	case "RTD", "Thermistor", "Thermocouple":
		return unsupportedScale{kind: kind}, nil

	default:
		return unsupportedScale{kind: kind}, nil
	}
}

func floatField(fields map[string]Property, name string) (float64, error) {
	p, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: scale missing property %s", ErrMalformedFile, name)
	}
	return p.AsFloat64()
}

// indexedFloatArray collects properties named base+"["+i+"]" for
// i = 0, 1, 2, ... until a gap is found.
func indexedFloatArray(fields map[string]Property, base string) []float64 {
	var out []float64
	for i := 0; ; i++ {
		p, ok := fields[fmt.Sprintf("%s[%d]", base, i)]
		if !ok {
			break
		}
		f, err := p.AsFloat64()
		if err != nil {
			break
		}
		out = append(out, f)
	}
	return out
}

// channelScalingProperties returns the properties that should be used to
// compile the scaler for the channel at path: the channel's own properties
// if it declares any NI_Scale[..] entries, otherwise its group's
// accumulated properties (scaling declared at group level applies to every
// channel in the group unless the channel overrides it).
func channelScalingProperties(objects *objectTable, path string) ([]Property, error) {
	props := objects.properties(path)
	if hasScaleProperty(props) {
		return props, nil
	}

	segments, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if len(segments) != 2 {
		return props, nil
	}

	groupProps := objects.properties(buildPath(segments[0], ""))
	if hasScaleProperty(groupProps) {
		return groupProps, nil
	}
	return props, nil
}

func hasScaleProperty(props []Property) bool {
	for _, p := range props {
		if _, _, ok := parseScaleProperty(p.Name); ok {
			return true
		}
	}
	return false
}

// parseScaleProperty splits a property name of the form
// "NI_Scale[<index>]_<suffix>" into its index and suffix.
func parseScaleProperty(name string) (idx int, suffix string, ok bool) {
	const prefix = "NI_Scale["
	if !strings.HasPrefix(name, prefix) {
		return 0, "", false
	}
	rest := name[len(prefix):]
	closeBracket := strings.IndexByte(rest, ']')
	if closeBracket < 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(rest[:closeBracket])
	if err != nil {
		return 0, "", false
	}
	rest = rest[closeBracket+1:]
	if !strings.HasPrefix(rest, "_") {
		return 0, "", false
	}
	return n, rest[1:], true
}

package tdms

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"
)

// DataType identifies one of the TDMS scalar type codes. The numeric values
// match the on-disk type IDs exactly (spec §6).
type DataType uint32

const (
	DataTypeVoid             DataType = 0x00
	DataTypeInt8             DataType = 0x01
	DataTypeInt16            DataType = 0x02
	DataTypeInt32            DataType = 0x03
	DataTypeInt64            DataType = 0x04
	DataTypeUint8            DataType = 0x05
	DataTypeUint16           DataType = 0x06
	DataTypeUint32           DataType = 0x07
	DataTypeUint64           DataType = 0x08
	DataTypeFloat32          DataType = 0x09
	DataTypeFloat64          DataType = 0x0A
	DataTypeFloat128         DataType = 0x0B
	DataTypeFloat32WithUnit  DataType = 0x19
	DataTypeFloat64WithUnit  DataType = 0x1A
	DataTypeFloat128WithUnit DataType = 0x1B
	DataTypeString           DataType = 0x20
	DataTypeBool             DataType = 0x21
	DataTypeTimestamp        DataType = 0x44
	DataTypeFixedPoint       DataType = 0x4F
	DataTypeComplex64        DataType = 0x08000c
	DataTypeComplex128       DataType = 0x10000d
	dataTypeDAQmxRawData     DataType = 0xFFFFFFFF
)

// Size returns the fixed byte width of dt, or 0 for variable-width types
// (currently only DataTypeString).
func (dt DataType) Size() int {
	switch dt {
	case DataTypeVoid, DataTypeString:
		return 0
	case DataTypeInt8, DataTypeUint8, DataTypeBool:
		return 1
	case DataTypeInt16, DataTypeUint16:
		return 2
	case DataTypeInt32, DataTypeUint32, DataTypeFloat32, DataTypeFloat32WithUnit:
		return 4
	case DataTypeInt64, DataTypeUint64, DataTypeFloat64, DataTypeFloat64WithUnit, DataTypeComplex64:
		return 8
	case DataTypeFloat128, DataTypeFloat128WithUnit, DataTypeComplex128, DataTypeTimestamp:
		return 16
	default:
		return 0
	}
}

// IsVariableWidth reports whether values of dt vary in byte length, which
// currently only applies to strings.
func (dt DataType) IsVariableWidth() bool {
	return dt == DataTypeString
}

// String implements fmt.Stringer.
func (dt DataType) String() string {
	switch dt {
	case DataTypeVoid:
		return "Void"
	case DataTypeInt8:
		return "Int8"
	case DataTypeInt16:
		return "Int16"
	case DataTypeInt32:
		return "Int32"
	case DataTypeInt64:
		return "Int64"
	case DataTypeUint8:
		return "Uint8"
	case DataTypeUint16:
		return "Uint16"
	case DataTypeUint32:
		return "Uint32"
	case DataTypeUint64:
		return "Uint64"
	case DataTypeFloat32, DataTypeFloat32WithUnit:
		return "Float32"
	case DataTypeFloat64, DataTypeFloat64WithUnit:
		return "Float64"
	case DataTypeFloat128, DataTypeFloat128WithUnit:
		return "Float128"
	case DataTypeString:
		return "String"
	case DataTypeBool:
		return "Boolean"
	case DataTypeTimestamp:
		return "Timestamp"
	case DataTypeFixedPoint:
		return "FixedPoint"
	case DataTypeComplex64:
		return "ComplexSingle"
	case DataTypeComplex128:
		return "ComplexDouble"
	case dataTypeDAQmxRawData:
		return "DAQmxRawData"
	default:
		return fmt.Sprintf("Unknown(0x%X)", uint32(dt))
	}
}

// ScaledType returns the Go-level data type that scaling produces for dt:
// f64 for any numeric type, and dt itself (unchanged) for strings and
// booleans, which are never scaled (spec §4.3).
func (dt DataType) ScaledType() DataType {
	switch dt {
	case DataTypeString, DataTypeBool, DataTypeTimestamp:
		return dt
	default:
		return DataTypeFloat64
	}
}

// tdmsEpoch is the TDMS timestamp epoch (1904-01-01 00:00:00 UTC) expressed
// as a Unix timestamp.
const tdmsEpoch int64 = -2_082_844_800

// Timestamp is a TDMS 128-bit timestamp: whole seconds since the TDMS epoch
// plus a fractional remainder in units of 2^-64 seconds. It retains far
// more precision than [time.Time]; use [Timestamp.AsTime] only when that
// precision isn't needed.
type Timestamp struct {
	Seconds    int64
	Fractional uint64
}

// AsTime converts t to a [time.Time], losing precision below the
// nanosecond.
func (t Timestamp) AsTime() time.Time {
	ns := new(big.Int).SetUint64(t.Fractional)
	ns.Mul(ns, big.NewInt(1e9))
	ns.Rsh(ns, 64)
	return time.Unix(t.Seconds+tdmsEpoch, ns.Int64()).UTC()
}

// Float128 holds a 128-bit IEEE-754 quad precision float as its raw 16
// little-endian bytes. Go has no native quad type; convert with
// [Float128.Float64] (lossy) or [Float128.BigFloat] (exact, up to
// big.Float's own precision).
type Float128 [16]byte

// Float64 converts f to a float64, losing precision.
func (f Float128) Float64() float64 {
	bf := f.BigFloat()
	if bf == nil {
		return math.NaN()
	}
	v, _ := bf.Float64()
	return v
}

// BigFloat converts f to a [big.Float] at 113 bits of precision (IEEE quad
// mantissa width). Returns nil if f encodes NaN.
func (f Float128) BigFloat() *big.Float {
	data := make([]byte, 16)
	copy(data, f[:])
	slices.Reverse(data) // work big-endian internally regardless of storage order

	sign := (data[0] >> 7) & 1
	exponent := uint16(data[0]&0x7F)<<8 | uint16(data[1])
	mantissa := make([]byte, 14)
	copy(mantissa, data[2:16])

	result := new(big.Float).SetPrec(113)

	if exponent == 0x7FFF {
		if isZeroBytes(mantissa) {
			result.SetInf(sign == 1)
			return result
		}
		return nil
	}

	mantissaInt := bytesToBigInt(mantissa)
	shift := new(big.Int).Lsh(big.NewInt(1), 112)

	if exponent == 0 {
		if isZeroBytes(mantissa) {
			return result.SetInt64(0)
		}
		mantissaFloat := new(big.Float).SetInt(mantissaInt)
		mantissaFloat.Quo(mantissaFloat, new(big.Float).SetInt(shift))
		power := new(big.Float).SetMantExp(big.NewFloat(1), -16382)
		result.Mul(mantissaFloat, power)
		if sign == 1 {
			result.Neg(result)
		}
		return result
	}

	exponentValue := int(exponent) - 16383
	mantissaFloat := new(big.Float).SetInt(mantissaInt)
	mantissaFloat.Quo(mantissaFloat, new(big.Float).SetInt(shift))
	mantissaFloat.Add(mantissaFloat, big.NewFloat(1))
	power := new(big.Float).SetMantExp(big.NewFloat(1), exponentValue)
	result.Mul(mantissaFloat, power)
	if sign == 1 {
		result.Neg(result)
	}
	return result
}

func isZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func bytesToBigInt(b []byte) *big.Int {
	result := new(big.Int)
	for _, v := range b {
		result.Lsh(result, 8)
		result.Or(result, big.NewInt(int64(v)))
	}
	return result
}

// The interpret function family below converts a raw byte slice (already
// sliced to the correct width) to a Go value. encoding/binary.Read is not
// used for this because it relies on reflection and is measurably slower
// in a tight decode loop.

func interpretInt8(b []byte, _ binary.ByteOrder) int8 { return int8(b[0]) }

func interpretInt16(b []byte, order binary.ByteOrder) int16 { return int16(order.Uint16(b)) }

func interpretInt32(b []byte, order binary.ByteOrder) int32 { return int32(order.Uint32(b)) }

func interpretInt64(b []byte, order binary.ByteOrder) int64 { return int64(order.Uint64(b)) }

func interpretUint8(b []byte, _ binary.ByteOrder) uint8 { return b[0] }

func interpretUint16(b []byte, order binary.ByteOrder) uint16 { return order.Uint16(b) }

func interpretUint32(b []byte, order binary.ByteOrder) uint32 { return order.Uint32(b) }

func interpretUint64(b []byte, order binary.ByteOrder) uint64 { return order.Uint64(b) }

func interpretFloat32(b []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(b))
}

func interpretFloat64(b []byte, order binary.ByteOrder) float64 {
	return math.Float64frombits(order.Uint64(b))
}

func interpretFloat128(b []byte, order binary.ByteOrder) Float128 {
	var f Float128
	copy(f[:], b)
	if order == binary.BigEndian {
		slices.Reverse(f[:])
	}
	return f
}

func interpretBool(b []byte, _ binary.ByteOrder) bool { return b[0] != 0 }

func interpretTimestamp(b []byte, order binary.ByteOrder) Timestamp {
	return Timestamp{
		Fractional: order.Uint64(b),
		Seconds:    int64(order.Uint64(b[8:])),
	}
}

func interpretComplex64(b []byte, order binary.ByteOrder) complex64 {
	re := math.Float32frombits(order.Uint32(b))
	im := math.Float32frombits(order.Uint32(b[4:]))
	return complex(re, im)
}

func interpretComplex128(b []byte, order binary.ByteOrder) complex128 {
	re := math.Float64frombits(order.Uint64(b))
	im := math.Float64frombits(order.Uint64(b[8:]))
	return complex(re, im)
}

// Property is a single named, typed value attached to a file, group, or
// channel object. Value holds the decoded Go representation: one of the
// int/uint/float families, bool, string, [Timestamp], [Float128],
// complex64, or complex128, matching Type.
type Property struct {
	Name  string
	Type  DataType
	Value any
}

// String renders the property's value for display.
func (p Property) String() string {
	return fmt.Sprintf("%v", p.Value)
}

// AsString returns the property's value as a string, or ErrIncorrectType
// if Type is not DataTypeString.
func (p Property) AsString() (string, error) {
	v, ok := p.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: property %q has type %s, not String", ErrIncorrectType, p.Name, p.Type)
	}
	return v, nil
}

// AsInt64 returns the property's value widened to int64, or
// ErrIncorrectType if Type is not one of the signed or unsigned integer
// types.
func (p Property) AsInt64() (int64, error) {
	switch v := p.Value.(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: property %q has type %s, not an integer type", ErrIncorrectType, p.Name, p.Type)
	}
}

// AsFloat64 returns the property's value widened to float64, or
// ErrIncorrectType if Type is not a floating-point type.
func (p Property) AsFloat64() (float64, error) {
	switch v := p.Value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case Float128:
		return v.Float64(), nil
	default:
		return 0, fmt.Errorf("%w: property %q has type %s, not a float type", ErrIncorrectType, p.Name, p.Type)
	}
}

// AsFloat128 returns the property's value as a [Float128], or
// ErrIncorrectType if Type is not DataTypeFloat128 or
// DataTypeFloat128WithUnit.
func (p Property) AsFloat128() (Float128, error) {
	v, ok := p.Value.(Float128)
	if !ok {
		return Float128{}, fmt.Errorf("%w: property %q has type %s, not Float128", ErrIncorrectType, p.Name, p.Type)
	}
	return v, nil
}

// AsBool returns the property's value as a bool, or ErrIncorrectType if
// Type is not DataTypeBool.
func (p Property) AsBool() (bool, error) {
	v, ok := p.Value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: property %q has type %s, not Boolean", ErrIncorrectType, p.Name, p.Type)
	}
	return v, nil
}

// AsTime returns the property's value as a [Timestamp], or
// ErrIncorrectType if Type is not DataTypeTimestamp.
func (p Property) AsTime() (Timestamp, error) {
	v, ok := p.Value.(Timestamp)
	if !ok {
		return Timestamp{}, fmt.Errorf("%w: property %q has type %s, not Timestamp", ErrIncorrectType, p.Name, p.Type)
	}
	return v, nil
}

// decodeScalar decodes a single raw value of dt at the front of b into an
// `any`, used for property values and for generic (non-generic-typed) data
// access paths. b must be at least dt.Size() bytes (or, for strings,
// exactly the string's byte length).
func decodeScalar(dt DataType, b []byte, order binary.ByteOrder) (any, error) {
	switch dt {
	case DataTypeVoid:
		return nil, nil
	case DataTypeInt8:
		return interpretInt8(b, order), nil
	case DataTypeInt16:
		return interpretInt16(b, order), nil
	case DataTypeInt32:
		return interpretInt32(b, order), nil
	case DataTypeInt64:
		return interpretInt64(b, order), nil
	case DataTypeUint8:
		return interpretUint8(b, order), nil
	case DataTypeUint16:
		return interpretUint16(b, order), nil
	case DataTypeUint32:
		return interpretUint32(b, order), nil
	case DataTypeUint64:
		return interpretUint64(b, order), nil
	case DataTypeFloat32, DataTypeFloat32WithUnit:
		return interpretFloat32(b, order), nil
	case DataTypeFloat64, DataTypeFloat64WithUnit:
		return interpretFloat64(b, order), nil
	case DataTypeFloat128, DataTypeFloat128WithUnit:
		return interpretFloat128(b, order), nil
	case DataTypeString:
		return string(b), nil
	case DataTypeBool:
		return interpretBool(b, order), nil
	case DataTypeTimestamp:
		return interpretTimestamp(b, order), nil
	case DataTypeComplex64:
		return interpretComplex64(b, order), nil
	case DataTypeComplex128:
		return interpretComplex128(b, order), nil
	default:
		return nil, fmt.Errorf("%w: data type %s", ErrUnsupportedFeature, dt)
	}
}

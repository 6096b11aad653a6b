package tdms

import "errors"

// Sentinel error kinds. Wrap one of these with additional detail via
// fmt.Errorf("%w: ...", ErrXxx) or errors.Join, and callers can recover the
// kind with errors.Is.
var (
	// ErrMalformedFile indicates the TDMS byte stream does not conform to
	// the format: a bad lead-in tag, a short read, an inconsistent size, or
	// a layout the spec forbids (e.g. interleaved string data).
	ErrMalformedFile = errors.New("tdms: malformed file")

	// ErrUnsupportedFeature indicates a recognized but unimplemented part
	// of the format, such as DAQmx raw data decoding or a scaling type
	// with no known conversion formula.
	ErrUnsupportedFeature = errors.New("tdms: unsupported feature")

	// ErrNotFound indicates a missing group, channel, or property lookup.
	ErrNotFound = errors.New("tdms: not found")

	// ErrInvalidArgument indicates a caller-supplied argument failed
	// validation (negative offset/length, zero slice step, wrong index
	// type).
	ErrInvalidArgument = errors.New("tdms: invalid argument")

	// ErrIndexOutOfRange indicates an integer index fell outside
	// [0, length) for the addressed channel.
	ErrIndexOutOfRange = errors.New("tdms: index out of range")

	// ErrStateError indicates an operation was attempted in a state that
	// forbids it: reading from a closed file, or accessing eager-only data
	// before a Read.
	ErrStateError = errors.New("tdms: invalid state")

	// ErrReadFailed indicates the underlying byte source failed to supply
	// requested bytes.
	ErrReadFailed = errors.New("tdms: read failed")

	// ErrIncorrectType indicates a Property.As* accessor was called for a
	// data type other than the property's actual Type.
	ErrIncorrectType = errors.New("tdms: incorrect property type")
)

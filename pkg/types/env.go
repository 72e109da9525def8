package types

import "errors"

// EnvKind selects how an EnvEntry produces its value.
type EnvKind int

// Env entry kinds.
const (
	EnvLiteral EnvKind = iota // Value is interpolated against the variables resolved so far.
	EnvCopy                   // Value names another variable whose current value is copied.
	EnvPath                   // Value is a path joined onto the directory of Frame.
	EnvFile                   // Value is an env file path; its entries apply as one batch.
)

func (k EnvKind) String() string {
	switch k {
	case EnvLiteral:
		return "literal"
	case EnvCopy:
		return "copy"
	case EnvPath:
		return "path"
	case EnvFile:
		return "envfile"
	default:
		return "unknown"
	}
}

// EnvEntry is one environment declaration.
type EnvEntry struct {
	Key   string  // Variable name; empty for EnvFile entries.
	Value string  // Literal text, copied name, relative path, or env file path.
	Kind  EnvKind // How Value is interpreted.
	Frame Frame   // Reference frame for EnvPath and EnvFile entries.
}

// Literal returns a literal entry.
func Literal(key, value string) EnvEntry {
	return EnvEntry{Key: key, Value: value, Kind: EnvLiteral}
}

// CopyOf returns an entry copying the current value of another variable.
func CopyOf(key, source string) EnvEntry {
	return EnvEntry{Key: key, Value: source, Kind: EnvCopy}
}

// PathIn returns an entry resolving rel against the given frame.
func PathIn(key string, frame Frame, rel string) EnvEntry {
	return EnvEntry{Key: key, Value: rel, Kind: EnvPath, Frame: frame}
}

// EnvFileIn returns an entry loading an env file resolved against frame.
func EnvFileIn(frame Frame, path string) EnvEntry {
	return EnvEntry{Value: path, Kind: EnvFile, Frame: frame}
}

// Validate checks that the entry is well-formed.
func (e EnvEntry) Validate() error {
	switch e.Kind {
	case EnvLiteral:
		if e.Key == "" {
			return ErrInvalidEnvEntry
		}
	case EnvCopy:
		if e.Key == "" || e.Value == "" {
			return ErrInvalidEnvEntry
		}
	case EnvPath:
		if e.Key == "" || !e.Frame.Valid() {
			return ErrInvalidEnvEntry
		}
	case EnvFile:
		if e.Value == "" || !e.Frame.Valid() {
			return ErrInvalidEnvEntry
		}
	default:
		return ErrInvalidEnvEntry
	}
	return nil
}

// Environment errors.
var (
	ErrUndefinedVariable = errors.New("undefined variable reference")
	ErrInvalidEnvFile    = errors.New("invalid env file")
	ErrInvalidEnvEntry   = errors.New("invalid env entry")
)

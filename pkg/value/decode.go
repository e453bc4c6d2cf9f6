package value

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidBool is returned for a boolean literal outside {0,1,true,false,True,False}.
	ErrInvalidBool = errors.New("invalid boolean literal")
	// ErrInvalidInt is returned for an unparsable integer literal.
	ErrInvalidInt = errors.New("invalid integer literal")
	// ErrInvalidReal is returned for an unparsable real literal.
	ErrInvalidReal = errors.New("invalid real literal")
	// ErrInvalidEnum is returned when an enum tag does not start with a letter.
	ErrInvalidEnum = errors.New("invalid enum tag")
	// ErrArrayIndex is returned when array items are not indexed 0, 1, 2, ...
	ErrArrayIndex = errors.New("array item index out of order")
	// ErrShape is returned when a composite element does not match its declared type.
	ErrShape = errors.New("value shape does not match type")
)

// Scalar type names understood by Decode.
const (
	TypeBool = "bool"
	TypeInt  = "int"
	TypeReal = "real"
)

// NormalizeType maps declared scalar types onto the names Decode understands.
// Subranges, machine integers and the keyword form of enumerations decode as
// plain integers; any other name is returned trimmed and treated as an
// enumeration type.
func NormalizeType(declared string) string {
	t := strings.TrimSpace(declared)
	switch {
	case strings.HasPrefix(t, "subrange"):
		return TypeInt
	case t == "enum" || strings.HasPrefix(t, "enum ") || strings.HasPrefix(t, "enum{"):
		return TypeInt
	case isMachineInt(t):
		return TypeInt
	}
	return t
}

func isMachineInt(t string) bool {
	for _, p := range []string{"uint", "int"} {
		if rest, ok := strings.CutPrefix(t, p); ok && rest != "" {
			if _, err := strconv.Atoi(rest); err == nil {
				return true
			}
		}
	}
	return false
}

// Decode decodes text as a scalar of the given (normalized) type. Unknown type
// names decode as enumeration tags. An empty type infers the kind from the
// literal's shape.
func Decode(typ, text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch typ {
	case TypeBool:
		return decodeBool(text)
	case TypeInt:
		return decodeInt(text)
	case TypeReal:
		return decodeReal(text)
	case "":
		return infer(text)
	default:
		return decodeEnum(text)
	}
}

func decodeBool(text string) (Value, error) {
	switch text {
	case "0", "false", "False":
		return Bool(false), nil
	case "1", "true", "True":
		return Bool(true), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidBool, text)
}

func decodeInt(text string) (Value, error) {
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInt, text)
	}
	return Int{n: n}, nil
}

// decodeReal accepts num[/denom] exactly and decimal literals through float64.
func decodeReal(text string) (Value, error) {
	if num, denom, ok := strings.Cut(text, "/"); ok {
		n, okN := new(big.Int).SetString(strings.TrimSpace(num), 10)
		d, okD := new(big.Int).SetString(strings.TrimSpace(denom), 10)
		if !okN || !okD || d.Sign() == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReal, text)
		}
		return Real{r: new(big.Rat).SetFrac(n, d)}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReal, text)
	}
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReal, text)
	}
	return Real{r: r}, nil
}

func decodeEnum(text string) (Value, error) {
	if text == "" {
		return Enum(""), nil
	}
	r, _ := utf8.DecodeRuneInString(text)
	if !unicode.IsLetter(r) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEnum, text)
	}
	return Enum(text), nil
}

func infer(text string) (Value, error) {
	switch text {
	case "true", "True":
		return Bool(true), nil
	case "false", "False":
		return Bool(false), nil
	}
	if v, err := decodeInt(text); err == nil {
		return v, nil
	}
	if v, err := decodeReal(text); err == nil {
		return v, nil
	}
	return decodeEnum(text)
}

package util

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/nolandb/nanocol/errors"
	"github.com/spf13/cast"
)

var validate = validator.New()

// ValidateStruct runs struct-tag validation over val, used against the constructor's collectionSpec
func ValidateStruct(val any) error {
	return errors.Wrap(validate.Struct(val), errors.Validation, "")
}

// Decode decodes the input into the output based on json tags - used to inflate documents into typed records
func Decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		WeaklyTypedInput:     true,
		DecodeHook:           mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:               output,
		TagName:              "json",
		IgnoreUntaggedFields: true,
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// JSONString returns a json string of the input
func JSONString(input any) string {
	bits, _ := json.Marshal(input)
	return string(bits)
}

// EncodeIndexValue produces the byte key the unique index stores value under. Numbers encode
// as 8 bytes whose byte order agrees with numeric order (negatives and fractions included);
// strings encode as their raw bytes; nil encodes as an empty key; bools and any other value
// encode as their string or JSON text, so they share the string key space. time.Time values
// are normalized to epoch milliseconds first. Byte order across different types is not defined.
func EncodeIndexValue(value any) []byte {
	if value == nil {
		return []byte("")
	}
	switch value := value.(type) {
	case bool:
		return EncodeIndexValue(cast.ToString(value))
	case string:
		return []byte(value)
	case int, int64, int32, float64, float32, uint64, uint32, uint16:
		f := cast.ToFloat64(value)
		bits := math.Float64bits(f)
		if f < 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf
	case time.Time:
		return EncodeIndexValue(ToEpochMillis(value))
	case time.Duration:
		return EncodeIndexValue(int(value))
	default:
		return EncodeIndexValue(JSONString(value))
	}
}

// ToEpochMillis converts t to epoch milliseconds, the wire form binary indices store timestamps as
func ToEpochMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// YAMLToJSON converts yamlContent to json, passing already-valid json through unchanged
func YAMLToJSON(yamlContent []byte) ([]byte, error) {
	if isJSON(string(yamlContent)) {
		return yamlContent, nil
	}
	return yaml.YAMLToJSON(yamlContent)
}

// JSONToYAML converts json content to yaml
func JSONToYAML(jsonContent []byte) ([]byte, error) {
	return yaml.JSONToYAML(jsonContent)
}

func isJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}

// RemoveElement removes the element at index from results, preserving order
func RemoveElement[T any](index int, results []T) []T {
	return append(results[:index], results[index+1:]...)
}

package jsonhelper

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode[T any](t T) ([]byte, error) {
	return json.Marshal(t)
}

func Decode[T any](b []byte) (T, error) {
	var t T
	err := json.Unmarshal(b, &t)
	return t, err
}

// DecodeInto decodes over an existing value, so fields absent from b keep
// whatever dst already holds.
func DecodeInto[T any](b []byte, dst *T) error {
	return json.Unmarshal(b, dst)
}

func EncodeIndent[T any](t T) ([]byte, error) {
	return json.MarshalIndent(t, "", "    ")
}

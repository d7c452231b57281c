package util_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/nolandb/nanocol/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestUtil(t *testing.T) {
	t.Run("yaml / json conversions", func(t *testing.T) {
		jsonIn := `{"name":"ada","age":30}`
		yml, err := util.JSONToYAML([]byte(jsonIn))
		assert.Nil(t, err)
		jsonOut, err := util.YAMLToJSON(yml)
		assert.Nil(t, err)
		assert.JSONEq(t, jsonIn, string(jsonOut))
	})
	t.Run("json string", func(t *testing.T) {
		assert.JSONEq(t, `{"a":1}`, util.JSONString(map[string]any{"a": 1}))
	})
	t.Run("decode", func(t *testing.T) {
		type person struct {
			Name string `json:"name"`
			Age  int    `json:"age"`
		}
		var p person
		assert.Nil(t, util.Decode(map[string]any{"name": "ada", "age": "30"}, &p))
		assert.Equal(t, "ada", p.Name)
		assert.Equal(t, 30, p.Age)
	})
	t.Run("validate", func(t *testing.T) {
		type usr struct {
			Name string `validate:"required"`
		}
		var u = usr{}
		assert.NotNil(t, util.ValidateStruct(&u))
		u.Name = "a name"
		assert.Nil(t, util.ValidateStruct(&u))
	})
	t.Run("encode value (float)", func(t *testing.T) {
		val1 := util.EncodeIndexValue(1.0)
		val2 := util.EncodeIndexValue(2.0)
		assert.Equal(t, -1, bytes.Compare(val1, val2))
	})
	t.Run("encode value (string)", func(t *testing.T) {
		val1 := util.EncodeIndexValue("hello")
		val2 := util.EncodeIndexValue("hellz")
		assert.Equal(t, -1, bytes.Compare(val1, val2))
	})
	t.Run("encode value (bool)", func(t *testing.T) {
		val1 := util.EncodeIndexValue(false)
		val2 := util.EncodeIndexValue(true)
		assert.Equal(t, -1, bytes.Compare(val1, val2))
	})
	t.Run("encode value (json)", func(t *testing.T) {
		val1 := util.EncodeIndexValue(map[string]any{"message": "hello"})
		val2 := util.EncodeIndexValue(map[string]any{"message": "hellz"})
		assert.Equal(t, -1, bytes.Compare(val1, val2))
	})
	t.Run("encode value (empty)", func(t *testing.T) {
		val1 := util.EncodeIndexValue(nil)
		val2 := util.EncodeIndexValue(nil)
		assert.Equal(t, 0, bytes.Compare(val1, val2))
	})
	t.Run("encode value (time preserves order)", func(t *testing.T) {
		t1 := time.Now()
		t2 := t1.Add(time.Hour)
		assert.Equal(t, -1, bytes.Compare(util.EncodeIndexValue(t1), util.EncodeIndexValue(t2)))
	})
}

package model_test

import (
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/harrier/pkg/model"
)

func TestValueOf(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		v := model.ValueOf("hello")
		gt.V(t, v.Kind()).Equal(model.KindString)
		gt.V(t, v.String()).Equal("hello")
	})

	t.Run("number", func(t *testing.T) {
		v := model.ValueOf(float64(42))
		gt.V(t, v.Kind()).Equal(model.KindNumber)
		gt.V(t, v.String()).Equal("42")
		n, ok := v.AsNumber()
		gt.True(t, ok)
		gt.V(t, n).Equal(42.0)
	})

	t.Run("bool", func(t *testing.T) {
		v := model.ValueOf(true)
		gt.V(t, v.Kind()).Equal(model.KindBool)
		gt.V(t, v.String()).Equal("true")
	})

	t.Run("nested map and list", func(t *testing.T) {
		v := model.ValueOf(map[string]any{
			"items": []any{"a", float64(1)},
		})
		gt.V(t, v.Kind()).Equal(model.KindMap)

		obj, ok := v.AsMap()
		gt.True(t, ok)
		items, ok := obj["items"].AsList()
		gt.True(t, ok)
		gt.V(t, len(items)).Equal(2)
		gt.V(t, items[0].String()).Equal("a")
	})

	t.Run("nil", func(t *testing.T) {
		v := model.ValueOf(nil)
		gt.V(t, v.Kind()).Equal(model.KindNull)
		gt.V(t, v.String()).Equal("")
	})
}

func TestValueJSONRoundTrip(t *testing.T) {
	var v model.Value
	gt.NoError(t, json.Unmarshal([]byte(`{"url":"https://example.com","depth":2}`), &v))

	obj, ok := v.AsMap()
	gt.True(t, ok)
	gt.V(t, obj["url"].String()).Equal("https://example.com")
	gt.V(t, obj["depth"].String()).Equal("2")

	data, err := json.Marshal(v)
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains(`"url":"https://example.com"`)
}

func TestArgs(t *testing.T) {
	args := model.ArgsFrom(map[string]any{
		"file": "notes.txt",
		"text": "hello",
	})

	t.Run("get string", func(t *testing.T) {
		file, ok := args.GetString("file")
		gt.True(t, ok)
		gt.V(t, file).Equal("notes.txt")

		_, ok = args.GetString("missing")
		gt.False(t, ok)
	})

	t.Run("keys are sorted", func(t *testing.T) {
		gt.A(t, args.Keys()).Equal([]string{"file", "text"})
	})

	t.Run("summary", func(t *testing.T) {
		gt.V(t, args.Summary()).Equal("file=notes.txt, text=hello")
	})

	t.Run("empty args render as object", func(t *testing.T) {
		gt.V(t, model.Args{}.JSON()).Equal("{}")
	})
}

package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBlockDefaults(t *testing.T) {
	doc := NewDocument()
	b := doc.AddBlock(KindText, 10, 20, "hello")

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, KindText, b.Kind)
	assert.Equal(t, "hello", b.Value)
	assert.Equal(t, float64(DefaultBlockWidth), b.Width)
	assert.Nil(t, b.Height, "new blocks start with auto height")
}

func TestAddBlockUniqueIDs(t *testing.T) {
	doc := NewDocument()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		b := doc.AddBlock(KindText, 0, 0, "")
		require.False(t, seen[b.ID], "duplicate block id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestApplyUnknownBlockIsNoOp(t *testing.T) {
	doc := NewDocument()
	doc.AddBlock(KindText, 0, 0, "keep")
	before := string(doc.Serialize())

	v := "ignored"
	doc.Apply(Mutation{Action: ActionUpdate, BlockID: "missing", Value: &v})
	doc.Apply(Mutation{Action: ActionMove, BlockID: "missing", X: 9, Y: 9})
	doc.Apply(Mutation{Action: ActionResize, BlockID: "missing", Width: 300})
	doc.Apply(Mutation{Action: ActionDelete, BlockID: "missing"})

	assert.JSONEq(t, before, string(doc.Serialize()))
}

func TestApplyAddDedupesExistingID(t *testing.T) {
	doc := NewDocument()
	b := doc.AddBlock(KindText, 0, 0, "first")

	v := "second"
	doc.Apply(Mutation{Action: ActionAdd, BlockID: b.ID, Kind: KindText, Value: &v})

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "first", doc.Blocks[0].Value)
}

func TestApplyAddDefaultsWidth(t *testing.T) {
	doc := NewDocument()
	doc.Apply(Mutation{Action: ActionAdd, BlockID: "b1", Kind: KindImage})

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, float64(DefaultBlockWidth), doc.Blocks[0].Width)
}

func TestMoveResizeDelete(t *testing.T) {
	doc := NewDocument()
	b := doc.AddBlock(KindText, 0, 0, "x")

	doc.Move(b.ID, 100, 200)
	assert.Equal(t, float64(100), doc.Blocks[0].X)
	assert.Equal(t, float64(200), doc.Blocks[0].Y)

	h := 80.0
	doc.Resize(b.ID, 320, &h)
	assert.Equal(t, float64(320), doc.Blocks[0].Width)
	require.NotNil(t, doc.Blocks[0].Height)
	assert.Equal(t, 80.0, *doc.Blocks[0].Height)

	// nil height switches back to auto
	doc.Resize(b.ID, 320, nil)
	assert.Nil(t, doc.Blocks[0].Height)

	doc.Remove(b.ID)
	assert.Empty(t, doc.Blocks)
}

func TestConvergenceByReplay(t *testing.T) {
	// Two replicas fed the same mutation stream end up identical.
	a := NewDocument()
	b := NewDocument()

	v1, v2 := "note", "edited"
	stream := []Mutation{
		{Action: ActionAdd, BlockID: "1700000000000", Kind: KindText, Value: &v1, X: 10, Y: 10},
		{Action: ActionAdd, BlockID: "1700000000001", Kind: KindImage, X: 50, Y: 50, Width: 400},
		{Action: ActionUpdate, BlockID: "1700000000000", Value: &v2},
		{Action: ActionMove, BlockID: "1700000000001", X: 70, Y: 90},
		{Action: ActionDelete, BlockID: "1700000000000"},
	}
	for _, m := range stream {
		a.Apply(m)
		b.Apply(m)
	}

	assert.Equal(t, string(a.Serialize()), string(b.Serialize()))
	require.Len(t, a.Blocks, 1)
	assert.Equal(t, float64(400), a.Blocks[0].Width)
}

func TestSerializeRoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.AddBlock(KindText, 1, 2, "hi")
	doc.AddStroke(Stroke{
		Points:   []Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
		Color:    "#ff0000",
		Width:    3,
		DrawMode: true,
	})

	restored := Deserialize(doc.Serialize())
	assert.Equal(t, string(doc.Serialize()), string(restored.Serialize()))
}

func TestSerializeEmptyDocument(t *testing.T) {
	doc := NewDocument()
	assert.JSONEq(t, `{"blocks":[],"strokes":[]}`, string(doc.Serialize()))
}

func TestDeserializeTolerant(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"empty object", "{}"},
		{"garbage", "not json"},
		{"unknown fields", `{"blocks":[],"strokes":[],"future":"field"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Deserialize([]byte(tc.raw))
			require.NotNil(t, doc)
			assert.Empty(t, doc.Blocks)
			assert.Empty(t, doc.Strokes)
		})
	}
}

func TestDeserializeLegacyDrawingKey(t *testing.T) {
	raw := `{"blocks":[],"drawing":[{"paths":[{"x":1,"y":2}],"strokeColor":"#000","strokeWidth":2,"drawMode":true}]}`
	doc := Deserialize([]byte(raw))
	require.Len(t, doc.Strokes, 1)
	assert.Equal(t, "#000", doc.Strokes[0].Color)
}

func TestCloneIsDeep(t *testing.T) {
	doc := NewDocument()
	b := doc.AddBlock(KindText, 0, 0, "orig")
	h := 40.0
	doc.Resize(b.ID, 200, &h)
	doc.AddStroke(Stroke{Points: []Point{{X: 1, Y: 1}}})

	clone := doc.Clone()
	clone.UpdateValue(b.ID, "changed")
	*clone.Blocks[0].Height = 99
	clone.Strokes[0].Points[0].X = 42

	assert.Equal(t, "orig", doc.Blocks[0].Value)
	assert.Equal(t, 40.0, *doc.Blocks[0].Height)
	assert.Equal(t, 1.0, doc.Strokes[0].Points[0].X)
}

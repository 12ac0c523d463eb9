package board

import (
	"encoding/json"
	"strconv"
	"time"
)

// Block kinds
const (
	KindText  = "text"
	KindImage = "image"
)

// DefaultBlockWidth is assigned when a block is created without an explicit width.
const DefaultBlockWidth = 200

// Mutation actions
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionMove   = "move"
	ActionResize = "resize"
	ActionDelete = "delete"
)

// Block is one positioned content unit on a board. Text blocks carry their
// text in Value; image blocks carry an encoded image or URL. A nil Height
// means auto height (the renderer sizes the block to its content).
type Block struct {
	ID     string   `json:"id"`
	Kind   string   `json:"type"`
	Value  string   `json:"value"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height *float64 `json:"height,omitempty"`
}

// Point is one sample of a freehand stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one freehand ink gesture: an ordered point list plus style.
// The relay passes strokes through without looking inside.
type Stroke struct {
	Points   []Point `json:"paths"`
	Color    string  `json:"strokeColor"`
	Width    float64 `json:"strokeWidth"`
	DrawMode bool    `json:"drawMode"` // false = eraser stroke
}

// Document is the in-memory board content. It has no concurrency of its own;
// callers serialize access.
type Document struct {
	Blocks  []Block
	Strokes []Stroke
}

// Data is the wire/storage shape of a document snapshot.
type Data struct {
	Blocks  []Block  `json:"blocks"`
	Strokes []Stroke `json:"strokes"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Blocks: []Block{}, Strokes: []Stroke{}}
}

// Mutation is one deterministic block edit. The same mutation applied to equal
// documents yields equal documents, which is what makes broadcast-and-replay
// synchronization work.
type Mutation struct {
	Action  string   `json:"action"`
	BlockID string   `json:"blockId"`
	Kind    string   `json:"type,omitempty"`
	Value   *string  `json:"value,omitempty"`
	X       float64  `json:"x,omitempty"`
	Y       float64  `json:"y,omitempty"`
	Width   float64  `json:"width,omitempty"`
	Height  *float64 `json:"height,omitempty"`
}

// Apply applies one mutation. An unknown BlockID is a silent no-op: a delete
// racing against a concurrent update of the same block must not break either
// side.
func (d *Document) Apply(m Mutation) {
	switch m.Action {
	case ActionAdd:
		if d.find(m.BlockID) != nil {
			return // ids are unique within a document
		}
		width := m.Width
		if width <= 0 {
			width = DefaultBlockWidth
		}
		b := Block{
			ID:     m.BlockID,
			Kind:   m.Kind,
			X:      m.X,
			Y:      m.Y,
			Width:  width,
			Height: m.Height,
		}
		if m.Value != nil {
			b.Value = *m.Value
		}
		d.Blocks = append(d.Blocks, b)

	case ActionUpdate:
		if b := d.find(m.BlockID); b != nil && m.Value != nil {
			b.Value = *m.Value
		}

	case ActionMove:
		if b := d.find(m.BlockID); b != nil {
			b.X = m.X
			b.Y = m.Y
		}

	case ActionResize:
		if b := d.find(m.BlockID); b != nil {
			if m.Width > 0 {
				b.Width = m.Width
			}
			b.Height = m.Height
		}

	case ActionDelete:
		for i := range d.Blocks {
			if d.Blocks[i].ID == m.BlockID {
				d.Blocks = append(d.Blocks[:i], d.Blocks[i+1:]...)
				return
			}
		}
	}
}

// AddBlock creates a block with a fresh id and appends it. Width defaults to
// DefaultBlockWidth; height starts as auto.
func (d *Document) AddBlock(kind string, x, y float64, value string) Block {
	m := Mutation{
		Action:  ActionAdd,
		BlockID: d.newBlockID(),
		Kind:    kind,
		Value:   &value,
		X:       x,
		Y:       y,
	}
	d.Apply(m)
	return *d.find(m.BlockID)
}

// UpdateValue replaces a block's value. No-op on unknown id.
func (d *Document) UpdateValue(blockID, value string) {
	d.Apply(Mutation{Action: ActionUpdate, BlockID: blockID, Value: &value})
}

// Move repositions a block. No-op on unknown id.
func (d *Document) Move(blockID string, x, y float64) {
	d.Apply(Mutation{Action: ActionMove, BlockID: blockID, X: x, Y: y})
}

// Resize changes a block's size. A nil height switches the block back to auto
// height. No-op on unknown id.
func (d *Document) Resize(blockID string, width float64, height *float64) {
	d.Apply(Mutation{Action: ActionResize, BlockID: blockID, Width: width, Height: height})
}

// Remove deletes a block. No-op on unknown id.
func (d *Document) Remove(blockID string) {
	d.Apply(Mutation{Action: ActionDelete, BlockID: blockID})
}

// AddStroke appends one completed ink gesture.
func (d *Document) AddStroke(s Stroke) {
	d.Strokes = append(d.Strokes, s)
}

// Serialize returns the snapshot JSON exchanged on load/save.
func (d *Document) Serialize() []byte {
	data := Data{Blocks: d.Blocks, Strokes: d.Strokes}
	if data.Blocks == nil {
		data.Blocks = []Block{}
	}
	if data.Strokes == nil {
		data.Strokes = []Stroke{}
	}
	raw, _ := json.Marshal(data)
	return raw
}

// Deserialize parses a snapshot. It never fails: unknown fields are ignored,
// missing fields default to empty collections, and unparseable input yields an
// empty document. Boards saved by old clients stored strokes under "drawing";
// that key is still accepted.
func Deserialize(raw []byte) *Document {
	doc := NewDocument()
	if len(raw) == 0 {
		return doc
	}

	var data struct {
		Blocks  []Block  `json:"blocks"`
		Strokes []Stroke `json:"strokes"`
		Drawing []Stroke `json:"drawing"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return doc
	}

	if data.Blocks != nil {
		doc.Blocks = data.Blocks
	}
	switch {
	case data.Strokes != nil:
		doc.Strokes = data.Strokes
	case data.Drawing != nil:
		doc.Strokes = data.Drawing
	}
	return doc
}

// Clone returns a deep copy, used to hand the render layer a stable snapshot.
func (d *Document) Clone() *Document {
	c := NewDocument()
	c.Blocks = append(c.Blocks, d.Blocks...)
	for i, b := range c.Blocks {
		if b.Height != nil {
			h := *b.Height
			c.Blocks[i].Height = &h
		}
	}
	for _, s := range d.Strokes {
		cs := s
		cs.Points = append([]Point{}, s.Points...)
		c.Strokes = append(c.Strokes, cs)
	}
	return c
}

func (d *Document) find(blockID string) *Block {
	for i := range d.Blocks {
		if d.Blocks[i].ID == blockID {
			return &d.Blocks[i]
		}
	}
	return nil
}

// newBlockID derives a fresh id from the current wall clock, bumping it while
// it collides with an existing block. Ids only need to be unique within one
// document.
func (d *Document) newBlockID() string {
	n := time.Now().UnixMilli()
	for d.find(strconv.FormatInt(n, 10)) != nil {
		n++
	}
	return strconv.FormatInt(n, 10)
}

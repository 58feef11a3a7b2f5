package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasteup/internal/event"
)

func TestInstanceDispatch(t *testing.T) {
	inst := NewInstance("ed-1", NewBuffer(""))

	var gotPaste, gotDrop []event.Event
	inst.SetHandlers(Handlers{
		Paste: func(in *Instance, ev event.Event) {
			require.Same(t, inst, in)
			gotPaste = append(gotPaste, ev)
		},
		Drop: func(in *Instance, ev event.Event) {
			require.Same(t, inst, in)
			gotDrop = append(gotDrop, ev)
		},
	})

	pasteEv := event.NewEvent(event.KindPaste, event.Position{}, event.Transfer{})
	dropEv := event.NewEvent(event.KindDrop, event.Position{X: 3, Y: 4}, event.Transfer{})

	inst.DispatchPaste(pasteEv)
	inst.DispatchDrop(dropEv)

	require.Len(t, gotPaste, 1)
	require.Len(t, gotDrop, 1)
	assert.Equal(t, pasteEv.ID, gotPaste[0].ID)
	assert.Equal(t, dropEv.ID, gotDrop[0].ID)
}

func TestInstanceDispatchNilHandlers(t *testing.T) {
	inst := NewInstance("ed-2", NewBuffer("text"))

	inst.DispatchPaste(event.NewEvent(event.KindPaste, event.Position{}, event.Transfer{}))
	inst.DispatchDrop(event.NewEvent(event.KindDrop, event.Position{}, event.Transfer{}))
}

func TestInstanceSwapHandlers(t *testing.T) {
	inst := NewInstance("ed-3", NewBuffer(""))

	var order []string
	first := Handlers{Paste: func(*Instance, event.Event) { order = append(order, "first") }}
	second := Handlers{Paste: func(*Instance, event.Event) { order = append(order, "second") }}

	inst.SetHandlers(first)
	inst.DispatchPaste(event.NewEvent(event.KindPaste, event.Position{}, event.Transfer{}))

	inst.SetHandlers(second)
	inst.DispatchPaste(event.NewEvent(event.KindPaste, event.Position{}, event.Transfer{}))

	assert.Equal(t, []string{"first", "second"}, order)
}

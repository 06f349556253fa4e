package progress

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelAdvanceAccumulates(t *testing.T) {
	m := New("image.bin", 100)
	updated, cmd := m.Update(AdvanceMsg{Label: "image.bin", N: 40})
	assert.Nil(t, cmd)

	mm, ok := updated.(Model)
	require.True(t, ok)
	assert.EqualValues(t, 40, mm.Transferred)

	updated2, _ := mm.Update(AdvanceMsg{Label: "image.bin", N: 60})
	mm2 := updated2.(Model)
	assert.EqualValues(t, 100, mm2.Transferred)
}

func TestModelDoneQuits(t *testing.T) {
	m := New("image.bin", 100)
	_, cmd := m.Update(DoneMsg{Err: nil})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelViewShowsProgress(t *testing.T) {
	m := New("image.bin", 100)
	updated, _ := m.Update(AdvanceMsg{Label: "image.bin", N: 50})
	mm := updated.(Model)

	view := mm.View()
	assert.Contains(t, view, "image.bin")
	assert.Contains(t, view, "50/100 bytes")
}

func TestModelViewClampsOverflowPercent(t *testing.T) {
	m := New("image.bin", 10)
	updated, _ := m.Update(AdvanceMsg{Label: "image.bin", N: 999})
	mm := updated.(Model)
	assert.Contains(t, mm.View(), "(100%)")
}

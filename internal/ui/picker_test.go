package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func networkItems() []PickerItem {
	return []PickerItem{
		{Label: "harmony", SubLabel: "chain 1666600000", Value: "harmony"},
		{Label: "harmony-testnet", SubLabel: "chain 1666700000", Value: "harmony-testnet"},
	}
}

func press(m tea.Model, keys ...tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m, cmd
}

func TestPickerSelectsWithEnter(t *testing.T) {
	m, cmd := press(pickerModel{title: "Select network", items: networkItems()},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	fm := m.(pickerModel)
	require.NotNil(t, fm.selected)
	assert.Equal(t, "harmony-testnet", fm.selected.Value)
	assert.NotNil(t, cmd)
}

func TestPickerCursorStaysInRange(t *testing.T) {
	m, _ := press(pickerModel{items: networkItems()},
		tea.KeyMsg{Type: tea.KeyUp},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyDown},
	)
	assert.Equal(t, 1, m.(pickerModel).cursor)
}

func TestPickerQuit(t *testing.T) {
	m, _ := press(pickerModel{items: networkItems()}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	fm := m.(pickerModel)
	assert.True(t, fm.quitting)
	assert.Nil(t, fm.selected)
	assert.Empty(t, fm.View())
}

func TestPickerViewListsItems(t *testing.T) {
	v := pickerModel{title: "Select network", items: networkItems()}.View()
	assert.Contains(t, v, "Select network")
	assert.Contains(t, v, "harmony-testnet")
	assert.Contains(t, v, "chain 1666700000")
}

func TestPickItemNoItems(t *testing.T) {
	_, err := PickItem(nil, nil, "Select network", nil)
	assert.Error(t, err)
}

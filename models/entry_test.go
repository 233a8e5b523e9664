package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() Entries {
	return Entries{
		{
			EntryID:    "e1",
			Name:       "Gate",
			Type:       EntryTypeFirewall,
			AccessCode: "GATE",
			SubEntries: Entries{
				{EntryID: "e1a", Name: "Inner", Type: EntryTypeEnigma, AccessCode: "inner", Solution: "Riven"},
				{
					EntryID:    "e1b",
					Name:       "Deep",
					Type:       EntryTypeDataNode,
					AccessCode: "SHARED",
					SubEntries: Entries{
						{EntryID: "e1b1", Name: "Deeper", Type: EntryTypeEnigma, AccessCode: "abyss"},
					},
				},
			},
		},
		{EntryID: "e2", Name: "Second", Type: EntryTypeEnigma, AccessCode: "shared"},
	}
}

func TestFindByAccessCode(t *testing.T) {
	es := sampleEntries()

	tests := []struct {
		code string
		want string
	}{
		{"GATE", "e1"},
		{"  gate ", "e1"},
		{"INNER", "e1a"},
		{"Abyss", "e1b1"},
		{"shared", "e1b"}, // pre-order: nested match under e1 wins over e2
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := es.FindByAccessCode(tt.code)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.EntryID)
		})
	}

	assert.Nil(t, es.FindByAccessCode("nope"))
	assert.Nil(t, es.FindByAccessCode("   "))
}

func TestFindByID(t *testing.T) {
	es := sampleEntries()

	got := es.FindByID("e1b1")
	require.NotNil(t, got)
	assert.Equal(t, "Deeper", got.Name)

	assert.Nil(t, es.FindByID("E1B1"))
	assert.Nil(t, es.FindByID(""))
}

func TestFindReturnsPointerIntoTree(t *testing.T) {
	es := sampleEntries()
	es.FindByID("e1a").Status = EntryStatusSolved
	assert.Equal(t, EntryStatusSolved, es[0].SubEntries[0].Status)
}

func TestWalkAndCount(t *testing.T) {
	es := sampleEntries()

	var order []string
	var depths []int
	es.Walk(func(e *Entry, depth int) bool {
		order = append(order, e.EntryID)
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"e1", "e1a", "e1b", "e1b1", "e2"}, order)
	assert.Equal(t, []int{0, 1, 1, 2, 0}, depths)
	assert.Equal(t, 5, es.Count())

	var visited int
	es.Walk(func(*Entry, int) bool { visited++; return visited < 2 })
	assert.Equal(t, 2, visited)
}

func TestValidate(t *testing.T) {
	es := Entries{{EntryID: "a", Type: "enigma"}, {EntryID: "b", Type: "data_node", Status: "locked"}}
	require.NoError(t, es.Validate())
	assert.Equal(t, EntryTypeEnigma, es[0].Type)
	assert.Equal(t, EntryStatusActive, es[0].Status)
	assert.Equal(t, EntryStatusLocked, es[1].Status)

	dup := Entries{{EntryID: "a", Type: EntryTypeEnigma, SubEntries: Entries{{EntryID: "a", Type: EntryTypeEnigma}}}}
	assert.ErrorContains(t, dup.Validate(), "duplicate entryId")

	badType := Entries{{EntryID: "a", Type: "PUZZLE"}}
	assert.ErrorContains(t, badType.Validate(), "invalid entry type")

	noID := Entries{{Name: "x", Type: EntryTypeEnigma}}
	assert.ErrorContains(t, noID.Validate(), "no entryId")
}

func TestCheckSolution(t *testing.T) {
	e := Entry{Solution: "Riven"}
	assert.True(t, e.RequiresSolution())
	assert.True(t, e.CheckSolution("  riven "))
	assert.False(t, e.CheckSolution("rivet"))

	open := Entry{Solution: "   "}
	assert.False(t, open.RequiresSolution())
	assert.True(t, open.CheckSolution("anything"))
}

package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uart-assist/internal/model"
)

const validScript = `{
	"GroupName": "power-on",
	"CycleCount": 2,
	"SendList": [
		{"Number": 1, "HexData": "AA55", "Delay": 100, "Enable": 1},
		{"Number": 2, "HexData": "0102ff", "Delay": 1000, "Enable": 0},
		{"Number": 3, "HexData": "7E", "Delay": 1, "Enable": 2}
	]
}`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader(zap.NewNop())

	group, err := loader.Load(writeScript(t, validScript))
	require.NoError(t, err)

	assert.Equal(t, "power-on", group.GroupName)
	assert.Equal(t, 2, group.CycleCount)
	require.Len(t, group.SendList, 3)
	assert.Equal(t, 2, group.EnabledCount())

	assert.Equal(t, 1, group.SendList[0].Number)
	assert.Equal(t, []byte{0xAA, 0x55}, group.SendList[0].Payload)
	assert.True(t, group.SendList[0].Enable)
	assert.False(t, group.SendList[1].Enable)
	assert.Equal(t, []byte{0x01, 0x02, 0xFF}, group.SendList[1].Payload)
	assert.True(t, group.SendList[2].Enable)
	assert.Equal(t, 1, group.SendList[2].Delay)
}

func TestLoader_LoadFileErrors(t *testing.T) {
	loader := NewLoader(zap.NewNop())

	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, model.ErrScriptValidation)

	_, err = loader.Load(writeScript(t, ""))
	assert.ErrorIs(t, err, model.ErrScriptValidation)
	assert.Contains(t, err.Error(), "JSON file is empty")
}

func TestLoader_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		message string
	}{
		{"malformed", `{"GroupName": `, "JSON parse error"},
		{"root not object", `null`, "script root is not an object"},
		{"group name type", `{"GroupName": 5, "CycleCount": 1, "SendList": []}`, "GroupName is missing or invalid"},
		{"cycle count missing", `{"GroupName": "g", "SendList": []}`, "CycleCount is missing or invalid"},
		{"send list not array", `{"GroupName": "g", "CycleCount": 1, "SendList": {}}`, "SendList is missing or not an array"},
		{"send list empty", `{"GroupName": "g", "CycleCount": 1, "SendList": []}`, "SendList is empty"},
		{"item not object", `{"GroupName": "g", "CycleCount": 1, "SendList": [1]}`, "SendList[0] is not an object"},
		{"number missing", `{"GroupName": "g", "CycleCount": 1, "SendList": [{"HexData": "AA", "Delay": 1, "Enable": 1}]}`, "SendList[0].Number is missing or invalid"},
		{"hex data type", `{"GroupName": "g", "CycleCount": 1, "SendList": [{"Number": 1, "HexData": 170, "Delay": 1, "Enable": 1}]}`, "SendList[0].HexData is missing or invalid"},
		{"delay type", `{"GroupName": "g", "CycleCount": 1, "SendList": [{"Number": 1, "HexData": "AA", "Delay": "1", "Enable": 1}]}`, "SendList[0].Delay is missing or invalid"},
		{"enable bool", `{"GroupName": "g", "CycleCount": 1, "SendList": [{"Number": 1, "HexData": "AA", "Delay": 1, "Enable": true}]}`, "SendList[0].Enable is missing or invalid"},
	}

	loader := NewLoader(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, err := loader.Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Nil(t, group)
			assert.ErrorIs(t, err, model.ErrScriptValidation)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoader_ValidationErrors(t *testing.T) {
	item := func(hex string, delay int) model.ScriptItem {
		return model.ScriptItem{Number: 1, HexData: hex, Delay: delay, Enable: true}
	}

	tests := []struct {
		name    string
		group   model.ScriptGroup
		message string
	}{
		{"cycle count zero", model.ScriptGroup{GroupName: "g", CycleCount: 0, SendList: []model.ScriptItem{item("AA", 1)}}, "CycleCount must be >= 1"},
		{"empty group name", model.ScriptGroup{GroupName: "", CycleCount: 1, SendList: []model.ScriptItem{item("AA", 1)}}, "GroupName is empty"},
		{"no items", model.ScriptGroup{GroupName: "g", CycleCount: 1}, "SendList is empty"},
		{"delay too small", model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{item("AA", 0)}}, "SendList[0].Delay must be 1-1000, got 0"},
		{"delay too large", model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{item("AA", 1), item("BB", 1001)}}, "SendList[1].Delay must be 1-1000, got 1001"},
		{"empty hex", model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{item("", 1)}}, "SendList[0].HexData is empty"},
		{"odd hex", model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{item("ABC", 1)}}, "SendList[0].HexData length must be even, got 3"},
		{"non hex", model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{item("AA", 1), item("GG", 1)}}, "SendList[1].HexData"},
	}

	loader := NewLoader(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := tt.group
			err := loader.Validate(&group)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrScriptValidation)
			assert.Contains(t, err.Error(), tt.message)
			for _, it := range group.SendList {
				assert.Nil(t, it.Payload)
			}
		})
	}
}

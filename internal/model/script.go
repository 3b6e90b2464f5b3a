// internal/model/script.go
package model

// ScriptItem is one entry of a send script
type ScriptItem struct {
	Number  int    `json:"Number"`
	HexData string `json:"HexData" validate:"required,hexpairs"`
	Delay   int    `json:"Delay" validate:"min=1,max=1000"`
	Enable  bool   `json:"Enable"`

	// Payload holds HexData decoded once validation has passed
	Payload []byte `json:"-"`
}

// ScriptGroup is a named, repeatable list of send items
type ScriptGroup struct {
	GroupName  string       `json:"GroupName" validate:"required"`
	CycleCount int          `json:"CycleCount" validate:"min=1"`
	SendList   []ScriptItem `json:"SendList" validate:"required,min=1,dive"`
}

// EnabledCount returns how many items are sent per cycle
func (g *ScriptGroup) EnabledCount() int {
	n := 0
	for _, item := range g.SendList {
		if item.Enable {
			n++
		}
	}
	return n
}

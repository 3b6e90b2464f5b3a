// internal/script/loader.go
package script

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"uart-assist/internal/codec"
	"uart-assist/internal/model"
)

// Loader reads send scripts from disk and checks them as a unit
type Loader struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewLoader creates a script loader
func NewLoader(logger *zap.Logger) *Loader {
	v := validator.New()
	v.RegisterValidation("hexpairs", func(fl validator.FieldLevel) bool {
		return fl.Field().Len()%2 == 0
	})

	return &Loader{
		validate: v,
		logger:   logger,
	}
}

// Load reads, parses and validates the script at path. Nothing partially
// parsed is ever returned.
func (l *Loader) Load(path string) (*model.ScriptGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", model.ErrScriptValidation, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: JSON file is empty: %s", model.ErrScriptValidation, path)
	}

	group, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(group); err != nil {
		return nil, err
	}

	l.logger.Info("Script loaded",
		zap.String("path", path),
		zap.String("group", group.GroupName),
		zap.Int("cycles", group.CycleCount),
		zap.Int("items", len(group.SendList)),
		zap.Int("enabled", group.EnabledCount()),
	)
	return group, nil
}

// Parse decodes script JSON, checking that every field is present and has
// the expected JSON type
func (l *Loader) Parse(data []byte) (*model.ScriptGroup, error) {
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: JSON parse error: %v", model.ErrScriptValidation, err)
	}
	if root == nil {
		return nil, schemaError("script root is not an object")
	}

	group := &model.ScriptGroup{}

	name, ok := root["GroupName"].(string)
	if !ok {
		return nil, schemaError("GroupName is missing or invalid")
	}
	group.GroupName = name

	cycles, ok := root["CycleCount"].(float64)
	if !ok {
		return nil, schemaError("CycleCount is missing or invalid")
	}
	group.CycleCount = int(cycles)

	list, ok := root["SendList"].([]interface{})
	if !ok {
		return nil, schemaError("SendList is missing or not an array")
	}
	if len(list) == 0 {
		return nil, schemaError("SendList is empty")
	}

	group.SendList = make([]model.ScriptItem, len(list))
	for i, raw := range list {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, schemaError("SendList[%d] is not an object", i)
		}

		item := &group.SendList[i]

		number, ok := obj["Number"].(float64)
		if !ok {
			return nil, schemaError("SendList[%d].Number is missing or invalid", i)
		}
		item.Number = int(number)

		hexData, ok := obj["HexData"].(string)
		if !ok {
			return nil, schemaError("SendList[%d].HexData is missing or invalid", i)
		}
		item.HexData = hexData

		delay, ok := obj["Delay"].(float64)
		if !ok {
			return nil, schemaError("SendList[%d].Delay is missing or invalid", i)
		}
		item.Delay = int(delay)

		enable, ok := obj["Enable"].(float64)
		if !ok {
			return nil, schemaError("SendList[%d].Enable is missing or invalid", i)
		}
		item.Enable = int(enable) != 0
	}

	return group, nil
}

// Validate checks ranges on the whole group, then decodes every payload.
// The group is only modified when every check passes.
func (l *Loader) Validate(group *model.ScriptGroup) error {
	if group == nil {
		return fmt.Errorf("%w: no script", model.ErrScriptValidation)
	}

	if err := l.validate.Struct(group); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			return fmt.Errorf("%w: %s", model.ErrScriptValidation, describe(fieldErrors[0]))
		}
		return fmt.Errorf("%w: %v", model.ErrScriptValidation, err)
	}

	payloads := make([][]byte, len(group.SendList))
	for i, item := range group.SendList {
		payload, err := codec.HexDecode(item.HexData, codec.SendBufferSize)
		if err != nil {
			return fmt.Errorf("%w: SendList[%d].HexData: %v", model.ErrScriptValidation, i, err)
		}
		payloads[i] = payload
	}

	for i := range group.SendList {
		group.SendList[i].Payload = payloads[i]
	}
	return nil
}

// describe turns a validator failure into the message an operator sees
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "ScriptGroup.")

	switch fe.Tag() {
	case "required":
		if fe.Field() == "SendList" {
			return "SendList is empty"
		}
		return fmt.Sprintf("%s is empty", field)
	case "hexpairs":
		return fmt.Sprintf("%s length must be even, got %d", field, len(fmt.Sprint(fe.Value())))
	case "min", "max":
		switch fe.Field() {
		case "Delay":
			return fmt.Sprintf("%s must be 1-1000, got %v", field, fe.Value())
		case "SendList":
			return "SendList is empty"
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %q check", field, fe.Tag())
}

func schemaError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrScriptValidation, fmt.Sprintf(format, args...))
}

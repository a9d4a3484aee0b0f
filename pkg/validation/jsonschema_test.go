package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMap(t *testing.T) {
	sch := MustCompileSchema(`{
		"type": "object",
		"properties": {
			"workflow_type": {"type": "string", "enum": ["serial", "parallel"]},
			"tasks": {"type": "array", "minItems": 1}
		},
		"required": ["workflow_type", "tasks"]
	}`)

	ok := map[string]interface{}{
		"workflow_type": "serial",
		"tasks":         []interface{}{map[string]interface{}{"task_id": 1}},
	}
	assert.NoError(t, ValidateMap(sch, ok))

	// Go ints must normalize through the JSON round trip.
	okInts := map[string]interface{}{
		"workflow_type": "parallel",
		"tasks":         []interface{}{map[string]interface{}{"task_id": int(7)}},
	}
	assert.NoError(t, ValidateMap(sch, okInts))

	badEnum := map[string]interface{}{
		"workflow_type": "circular",
		"tasks":         []interface{}{map[string]interface{}{}},
	}
	err := ValidateMap(sch, badEnum)
	assert.Error(t, err)

	empty := map[string]interface{}{"workflow_type": "serial", "tasks": []interface{}{}}
	assert.Error(t, ValidateMap(sch, empty))
}

func TestMustCompileSchema_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() {
		MustCompileSchema(`{"type": "object", "properties": {"x": {"type": "str"}}}`)
	})
}

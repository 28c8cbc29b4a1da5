package uisync

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestId(t *testing.T) {
	id := NewId()
	assert.NotEqual(t, NewId(), id)

	parsedId, err := ParseId(id.String())
	assert.Equal(t, nil, err)
	assert.Equal(t, id, parsedId)

	idJson, err := json.Marshal(&id)
	assert.Equal(t, nil, err)
	var unmarshaledId Id
	err = json.Unmarshal(idJson, &unmarshaledId)
	assert.Equal(t, nil, err)
	assert.Equal(t, id, unmarshaledId)

	_, err = ParseId("not a uuid")
	assert.NotEqual(t, nil, err)
}

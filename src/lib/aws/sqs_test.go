package aws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapSNS(t *testing.T) {
	envelope := `{"Type":"Notification","MessageId":"m-1","Message":"{\"name\":\"SessionCreated\",\"id\":\"abc\"}"}`
	assert.Equal(t, `{"name":"SessionCreated","id":"abc"}`, UnwrapSNS(envelope))

	raw := `{"name":"SessionCreated","id":"abc"}`
	assert.Equal(t, raw, UnwrapSNS(raw))

	assert.Equal(t, "not json", UnwrapSNS("not json"))
}

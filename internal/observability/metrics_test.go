package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLVerb(t *testing.T) {
	assert.Equal(t, "select", sqlVerb(`SELECT * FROM "posts"`))
	assert.Equal(t, "insert", sqlVerb("  INSERT INTO reactions"))
	assert.Equal(t, "update", sqlVerb("update\nposts set likes_count = likes_count + 1"))
	assert.Equal(t, "other", sqlVerb("CREATE INDEX idx"))
	assert.Equal(t, "other", sqlVerb(""))
}

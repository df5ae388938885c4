package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexListUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"array", `{"tags":["sf","classic"]}`, []string{"sf", "classic"}},
		{"single", `{"tags":"sf"}`, []string{"sf"}},
		{"null", `{"tags":null}`, nil},
		{"missing", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Tags FlexList[string] `json:"tags"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))
			assert.Equal(t, tt.want, body.Tags.Slice())
		})
	}

	var bad struct {
		Tags FlexList[string] `json:"tags"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"tags":42}`), &bad))
}

func TestFormList(t *testing.T) {
	assert.Nil(t, FormList(nil).Slice())
	assert.Equal(t, []string{"author", "year"}, FormList([]string{"author", "year"}).Slice())
	assert.Equal(t, []string{"author", "year", "isbn"}, FormList([]string{`["author","year"]`, "isbn"}).Slice())
	assert.Equal(t, []string{"[not json"}, FormList([]string{"[not json"}).Slice())
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("deleteItem: %w", Upstream("deleteItem", cause))

	assert.Equal(t, KindUpstream, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindUpstream))
	assert.False(t, Is(wrapped, KindNotFound))
	assert.ErrorIs(t, wrapped, cause)

	// untyped errors are treated as upstream failures
	assert.Equal(t, KindUpstream, KindOf(cause))
	assert.False(t, Is(cause, KindUpstream))

	partial := PartialFailure("deleteUsers", []string{"u1", "u2"}, cause)
	assert.Equal(t, []string{"u1", "u2"}, FailedIDs(partial))
	assert.Nil(t, FailedIDs(Conflict("deleteUsers", cause, "u1")))

	msg := Conflict("deleteItem", cause, "i1", "i2").Error()
	assert.Contains(t, msg, "CONFLICT [deleteItem]")
	assert.Contains(t, msg, "(ids=i1,i2)")
	assert.Contains(t, msg, "disk full")

	assert.Equal(t, "NOT_FOUND [getItem]: item x not found", NotFound("getItem", "item %s not found", "x").Error())
}

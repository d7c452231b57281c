package nanocol

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument(t *testing.T) {
	type contact struct {
		Email string `json:"email"`
		Phone string `json:"phone,omitempty"`
	}
	type user struct {
		Contact contact `json:"contact"`
		Name    string  `json:"name"`
	}
	const email = "john.smith@yahoo.com"
	usr := user{Contact: contact{Email: email, Phone: gofakeit.Phone()}, Name: "john smith"}
	r, err := NewDocumentFrom(&usr)
	require.NoError(t, err)
	require.NoError(t, r.SetID(42))

	t.Run("get id", func(t *testing.T) {
		id, ok := r.ID()
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})
	t.Run("get email", func(t *testing.T) {
		assert.Equal(t, usr.Contact.Email, r.Get("contact.email"))
	})
	t.Run("get phone", func(t *testing.T) {
		assert.Equal(t, usr.Contact.Phone, r.Get("contact.phone"))
	})
	t.Run("missing id", func(t *testing.T) {
		fresh := NewDocument()
		_, ok := fresh.ID()
		assert.False(t, ok)
	})

	t.Run("merge", func(t *testing.T) {
		usr2 := user{Contact: contact{Email: gofakeit.Email()}, Name: "john smith"}
		r2, err := NewDocumentFrom(&usr2)
		require.NoError(t, err)
		require.NoError(t, r.Merge(r2))
		assert.Equal(t, usr2.Contact.Email, r.GetString("contact.email"))
		assert.Equal(t, usr.Contact.Phone, r.GetString("contact.phone"))
	})

	t.Run("clone strategies produce independent copies", func(t *testing.T) {
		for _, method := range []CloneMethod{CloneDeep, CloneParseStringify, CloneShallow, CloneShallowAssign} {
			clone := r.Clone(method)
			require.NoError(t, clone.Set("name", "changed"))
			assert.NotEqual(t, r.GetString("name"), clone.GetString("name"), "method=%s", method)
		}
	})

	t.Run("strip reserved", func(t *testing.T) {
		clone := r.Clone(CloneDeep)
		require.NoError(t, clone.SetMeta(newMetadata(time.Now())))
		require.NoError(t, clone.StripReserved())
		_, ok := clone.ID()
		assert.False(t, ok)
		_, ok = clone.Meta()
		assert.False(t, ok)
	})

	t.Run("diff reports add/replace/remove", func(t *testing.T) {
		before, err := NewDocumentFrom(map[string]any{"a": 1, "b": 2})
		require.NoError(t, err)
		after, err := NewDocumentFrom(map[string]any{"a": 1, "c": 3})
		require.NoError(t, err)
		ops := after.Diff(before)
		var sawAdd, sawRemove bool
		for _, op := range ops {
			switch op.Path {
			case "c":
				sawAdd = op.Op == JSONOpAdd
			case "b":
				sawRemove = op.Op == JSONOpRemove
			}
		}
		assert.True(t, sawAdd)
		assert.True(t, sawRemove)
	})
}

package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehub/internal/app/ds"
)

func newTestClient(class ds.ClientClass, riderID string) *ds.Client {
	c := ds.NewClient(nil, class)
	c.RiderID = riderID
	return c
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	rider := newTestClient(ds.ClassRider, "u1")
	agent := newTestClient(ds.ClassAgent, "")

	r.Register(rider)
	r.Register(agent)
	r.BindRider("u1", rider)

	assert.Equal(t, 1, r.Count(ds.ClassRider))
	assert.Equal(t, 1, r.Count(ds.ClassAgent))
	assert.Equal(t, 0, r.Count(ds.ClassOperator))

	got, ok := r.LookupRider("u1")
	require.True(t, ok)
	assert.Same(t, rider, got)
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(ds.ClassOperator, "")

	r.Register(c)
	r.Register(c)

	assert.Equal(t, 1, r.Count(ds.ClassOperator))
}

func TestRegistryUnregisterRemovesEverywhere(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(ds.ClassRider, "u1")
	r.Register(c)
	r.BindRider("u1", c)

	require.True(t, r.Unregister(c))

	assert.Equal(t, 0, r.Count(ds.ClassRider))
	_, ok := r.LookupRider("u1")
	assert.False(t, ok)

	// second unregister is a no-op
	assert.False(t, r.Unregister(c))
}

func TestRegistryBindRiderDisplacesPrevious(t *testing.T) {
	r := NewRegistry()
	old := newTestClient(ds.ClassRider, "u1")
	fresh := newTestClient(ds.ClassRider, "u1")
	r.Register(old)
	r.Register(fresh)

	assert.Nil(t, r.BindRider("u1", old))
	displaced := r.BindRider("u1", fresh)
	require.NotNil(t, displaced)
	assert.Same(t, old, displaced)

	got, ok := r.LookupRider("u1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

// A connection present in the identity map must always be in its class
// set; unregistering a superseded connection must not evict the newer
// one from the index.
func TestRegistryIdentityMapInvariant(t *testing.T) {
	r := NewRegistry()
	old := newTestClient(ds.ClassRider, "u1")
	fresh := newTestClient(ds.ClassRider, "u1")
	r.Register(old)
	r.BindRider("u1", old)
	r.Register(fresh)
	r.BindRider("u1", fresh)

	require.True(t, r.Unregister(old))

	got, ok := r.LookupRider("u1")
	require.True(t, ok, "newer connection must survive the old one's teardown")
	assert.Same(t, fresh, got)

	found := false
	for _, c := range r.Clients(ds.ClassRider) {
		if c == got {
			found = true
		}
	}
	assert.True(t, found, "identity-mapped connection must be in its class set")
}

func TestRegistryClientsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestClient(ds.ClassRider, "u1"))
	r.Register(newTestClient(ds.ClassAgent, ""))
	r.Register(newTestClient(ds.ClassOperator, ""))

	assert.Len(t, r.Clients(ds.ClassAgent), 1)
	assert.Len(t, r.Clients(), 3)
}

package connbinding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefCount_OnZeroFiresExactlyOnce(t *testing.T) {
	var fired int
	var r refCount
	r.init(func() { fired++ })

	r.acquire()
	r.acquire()
	assert.Equal(t, int64(3), r.count())

	r.release()
	r.release()
	assert.Equal(t, 0, fired)

	r.release()
	assert.Equal(t, 1, fired)
	assert.Equal(t, int64(0), r.count())
}

func TestRefCount_ReleaseBelowZeroPanics(t *testing.T) {
	var r refCount
	r.init(nil)
	r.release()
	assert.Panics(t, func() { r.release() })
}

func TestRefCount_AcquireAfterZeroPanics(t *testing.T) {
	var r refCount
	r.init(nil)
	r.release()
	assert.Panics(t, func() { r.acquire() })
}

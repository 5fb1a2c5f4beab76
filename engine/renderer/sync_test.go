package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
)

func newSync(imageCount int) (*renderer.FrameSync, []*rendertest.Fence) {
	fences := []*rendertest.Fence{{Signaled: true}, {Signaled: true}}
	return renderer.NewFrameSync([]renderer.Fence{fences[0], fences[1]}, imageCount), fences
}

func TestClaimImageWaitsOnPreviousOwner(t *testing.T) {
	sync, fences := newSync(3)
	assert.Equal(t, 2, sync.Slots())

	f, err := sync.ClaimImage(1, 0)
	require.NoError(t, err)
	assert.Same(t, fences[0], f)
	assert.Equal(t, 1, fences[0].Resets)
	assert.Same(t, fences[0], sync.ImageFence(1))
	assert.Nil(t, sync.ImageFence(0))
	fences[0].Signaled = true

	// slot 1 gets the same image: it must wait on slot 0's fence first
	_, err = sync.ClaimImage(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fences[0].Waits)
	assert.Same(t, fences[1], sync.ImageFence(1))
}

func TestClaimImageSameSlotDoesNotWait(t *testing.T) {
	sync, fences := newSync(2)
	_, err := sync.ClaimImage(0, 0)
	require.NoError(t, err)
	fences[0].Signaled = true
	_, err = sync.ClaimImage(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, fences[0].Waits)
}

func TestClaimImageBlocksOnUnfinishedWork(t *testing.T) {
	sync, _ := newSync(2)
	_, err := sync.ClaimImage(0, 0)
	require.NoError(t, err)

	// slot 0 never completed, the fake reports the would-be deadlock
	_, err = sync.ClaimImage(0, 1)
	assert.ErrorIs(t, err, rendertest.ErrDeadlock)
}

func TestFrameSyncBounds(t *testing.T) {
	sync, fences := newSync(2)
	require.NoError(t, sync.WaitForSlot(1))
	assert.Equal(t, 1, fences[1].Waits)
	assert.Error(t, sync.WaitForSlot(2))
	_, err := sync.ClaimImage(5, 0)
	assert.Error(t, err)
	assert.Nil(t, sync.ImageFence(5))

	sync.Destroy()
	assert.True(t, fences[0].Destroyed)
	assert.True(t, fences[1].Destroyed)
}

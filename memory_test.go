package opencl

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/opencl/driver"
)

func TestBuffer_RoundTrip(t *testing.T) {
	ctx := hostContext(t)
	q, err := ctx.CreateCommandQueue(ctx.Devices()[0], 0)
	require.NoError(t, err)
	defer q.Release()

	data := make([]byte, 255)
	for i := range data {
		data[i] = byte(i)
	}

	buf, err := ctx.CreateBuffer(driver.MemReadWrite, len(data), "round-trip")
	require.NoError(t, err)
	defer buf.Release()

	require.NoError(t, q.WriteBuffer(buf, 0, data))
	got := make([]byte, len(data))
	require.NoError(t, q.ReadBuffer(buf, 0, got))
	assert.Equal(t, data, got)

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 255, size)
	assert.Equal(t, "round-trip", buf.ID())
	assert.Same(t, ctx, buf.Context())
}

func TestCreateBufferFrom(t *testing.T) {
	ctx := hostContext(t)
	q, err := ctx.CreateCommandQueue(ctx.Devices()[0], 0)
	require.NoError(t, err)
	defer q.Release()

	buf, err := CreateBufferFrom(ctx, driver.MemReadOnly, []float32{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	defer buf.Release()

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 16, size)
	flags, err := buf.Flags()
	require.NoError(t, err)
	assert.True(t, flags.Has(driver.MemCopyHostPtr))
	assert.True(t, flags.Has(driver.MemReadOnly))

	_, err = CreateBufferFrom[int32](ctx, driver.MemReadOnly, nil, nil)
	assert.True(t, IsStatus(err, driver.InvalidBufferSize))
}

func TestCreateBufferFrom_NotFixedSize(t *testing.T) {
	live := NewLiveSet()
	ctx := hostContext(t, WithTracker(live))

	_, err := CreateBufferFrom(ctx, driver.MemReadOnly, []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, ErrNotFixedSize)
	_, err = CreateBufferFrom(ctx, driver.MemReadOnly, []int{1, 2}, nil)
	assert.ErrorIs(t, err, ErrNotFixedSize)
	_, err = CreateBufferFrom(ctx, driver.MemReadOnly, []struct{ P *int }{{}}, nil)
	assert.ErrorIs(t, err, ErrNotFixedSize)
	_, err = CreateBufferFrom(ctx, driver.MemReadOnly, [][]byte{{1}}, nil)
	assert.ErrorIs(t, err, ErrNotFixedSize)
	assert.Zero(t, live.Stats()[KindBuffer].Created)

	buf, err := CreateBufferFrom(ctx, driver.MemReadOnly, [][2]float32{{1, 2}, {3, 4}}, nil)
	require.NoError(t, err)
	defer buf.Release()
	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 16, size)
}

func TestBuffer_Errors(t *testing.T) {
	ctx := hostContext(t)
	q, err := ctx.CreateCommandQueue(ctx.Devices()[0], 0)
	require.NoError(t, err)
	defer q.Release()

	_, err = ctx.CreateBuffer(driver.MemReadWrite, 0, nil)
	assert.True(t, IsStatus(err, driver.InvalidBufferSize))

	buf, err := ctx.CreateBuffer(driver.MemReadWrite|driver.MemHostReadOnly, 16, nil)
	require.NoError(t, err)

	assert.True(t, IsStatus(q.WriteBuffer(buf, 0, make([]byte, 4)), driver.InvalidOperation))
	assert.True(t, IsStatus(q.ReadBuffer(buf, 8, make([]byte, 16)), driver.InvalidValue))
	assert.True(t, IsStatus(q.ReadBuffer(buf, -1, make([]byte, 1)), driver.InvalidValue))

	buf.Release()
	assert.ErrorIs(t, q.ReadBuffer(buf, 0, make([]byte, 1)), ErrReleased)
	_, err = buf.Size()
	assert.ErrorIs(t, err, ErrReleased)

	q.Release()
	assert.ErrorIs(t, q.Finish(), ErrReleased)
}

func TestCreateImage2D(t *testing.T) {
	ctx := hostContext(t)

	src := image.NewNRGBA(image.Rect(2, 2, 6, 5))
	src.Set(2, 2, color.NRGBA{R: 255, A: 255})

	img, err := ctx.CreateImage2D(driver.MemReadOnly, src, nil)
	require.NoError(t, err)
	defer img.Release()

	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	assert.Equal(t, driver.ImageFormat{Order: driver.ChannelRGBA, Type: driver.ChannelUnormInt8}, img.Format())
	size, err := img.Size()
	require.NoError(t, err)
	assert.Equal(t, 4*3*4, size)

	gray := image.NewGray(image.Rect(0, 0, 8, 1))
	img2, err := ctx.CreateImage2D(driver.MemReadOnly, gray, nil)
	require.NoError(t, err)
	img2.Release()
}

func TestCreatePipe(t *testing.T) {
	live := NewLiveSet()
	ctx := hostContext(t, WithTracker(live))

	p, err := ctx.CreatePipe(driver.MemReadWrite, 16, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, p.PacketSize())
	assert.Equal(t, 4, p.MaxPackets())
	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, 64, size)
	assert.Equal(t, 1, live.Stats()[KindPipe].Live())
	p.Release()

	_, err = ctx.CreatePipe(driver.MemReadWrite, 0, 4, nil)
	assert.True(t, IsStatus(err, driver.InvalidPipeSize))
}

func TestCreatePipe_SizeOverflow(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int cannot exceed uint32 on this platform")
	}
	live := NewLiveSet()
	ctx := hostContext(t, WithTracker(live))

	huge := uint64(math.MaxUint32) + 1
	_, err := ctx.CreatePipe(driver.MemReadWrite, int(huge), 1, nil)
	assert.True(t, IsStatus(err, driver.InvalidPipeSize), "got %v", err)
	_, err = ctx.CreatePipe(driver.MemReadWrite, 1, int(huge+16), nil)
	assert.True(t, IsStatus(err, driver.InvalidPipeSize), "got %v", err)
	assert.Zero(t, live.Stats()[KindPipe].Created)
}

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

type evtA struct{ N int }
type evtB struct{ S string }

func recv(t *testing.T, sub *Subscription) interface{} {
	t.Helper()
	select {
	case e, ok := <-sub.Out():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

// TestBus_TypedRouting 事件按类型路由
func TestBus_TypedRouting(t *testing.T) {
	bus := NewBus()

	subA, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)
	subB, err := bus.Subscribe(new(evtB))
	require.NoError(t, err)

	emA, err := bus.Emitter(new(evtA))
	require.NoError(t, err)
	emB, err := bus.Emitter(new(evtB))
	require.NoError(t, err)

	require.NoError(t, emA.Emit(evtA{N: 1}))
	require.NoError(t, emB.Emit(evtB{S: "x"}))

	assert.Equal(t, evtA{N: 1}, recv(t, subA))
	assert.Equal(t, evtB{S: "x"}, recv(t, subB))

	assert.ErrorIs(t, emA.Emit(evtB{}), ErrInvalidEventType)
	t.Log("✅ 类型路由正确")
}

// TestBus_InvalidSubscribe 非指针类型
func TestBus_InvalidSubscribe(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(evtA{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Emitter(evtA{})
	assert.ErrorIs(t, err, ErrNonPointerType)
}

// TestBus_DropOnFullBuffer 缓冲区满时丢弃而不阻塞
func TestBus_DropOnFullBuffer(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA), BufSize(2))
	require.NoError(t, err)
	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, em.Emit(evtA{N: i}))
	}

	assert.Equal(t, int64(3), bus.Dropped())
	assert.Equal(t, evtA{N: 0}, recv(t, sub))
	assert.Equal(t, evtA{N: 1}, recv(t, sub))
}

// TestBus_Stateful 有状态发射器向新订阅者补发最后事件
func TestBus_Stateful(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(evtA), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(evtA{N: 7}))

	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)
	assert.Equal(t, evtA{N: 7}, recv(t, sub))
}

// TestSubscription_Close 关闭订阅与发射器
func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)
	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	// 无订阅者时发射不报错
	assert.NoError(t, em.Emit(evtA{}))

	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(evtA{}), ErrEmitterClosed)
}

// TestModule_Lifecycle 测试 Fx 模块
func TestModule_Lifecycle(t *testing.T) {
	var bus *Bus
	app := fxtest.New(t, Module(), fx.Populate(&bus))
	app.RequireStart()
	require.NotNil(t, bus)

	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)

	app.RequireStop()

	_, ok := <-sub.Out()
	assert.False(t, ok)

	_, err = bus.Subscribe(new(evtA))
	assert.ErrorIs(t, err, ErrClosed)
}

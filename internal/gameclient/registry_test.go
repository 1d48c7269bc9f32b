package gameclient

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNextMonotonic(t *testing.T) {
	reg := newRegistry(zerolog.Nop())

	prev := reg.next()
	for i := 0; i < 100; i++ {
		id := reg.next()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestRegistryNextUniqueUnderConcurrency(t *testing.T) {
	reg := newRegistry(zerolog.Nop())

	const workers, perWorker = 50, 200
	ids := make(chan uint32, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- reg.next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool, workers*perWorker)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestRegistrySettleResolvesOnce(t *testing.T) {
	reg := newRegistry(zerolog.Nop())

	id := reg.next()
	p := reg.register(id, "getScenes")
	reg.settle(id, json.RawMessage(`{"scenes":[]}`), nil)
	// повторный reply с тем же id — поздний дубликат, молча игнорируется
	reg.settle(id, json.RawMessage(`{"scenes":["dup"]}`), nil)

	res := <-p.ch
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"scenes":[]}`, string(res.raw))

	select {
	case <-p.ch:
		t.Fatal("call resolved twice")
	default:
	}
	assert.Zero(t, reg.size())
}

func TestRegistrySettleDropRace(t *testing.T) {
	reg := newRegistry(zerolog.Nop())

	// у гонки settle/drop всегда ровно один победитель
	for i := 0; i < 500; i++ {
		id := reg.next()
		p := reg.register(id, "ready")

		var wg sync.WaitGroup
		dropped := false
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.settle(id, json.RawMessage(`{}`), nil)
		}()
		go func() {
			defer wg.Done()
			dropped = reg.drop(id)
		}()
		wg.Wait()

		if dropped {
			select {
			case <-p.ch:
				t.Fatal("dropped call still resolved")
			default:
			}
		} else {
			select {
			case res := <-p.ch:
				require.NoError(t, res.err)
			default:
				t.Fatal("call neither dropped nor resolved")
			}
		}
		assert.Zero(t, reg.size())
	}
}

func TestRegistryCancelAll(t *testing.T) {
	reg := newRegistry(zerolog.Nop())

	var pend []*pendingCall
	for i := 0; i < 10; i++ {
		id := reg.next()
		pend = append(pend, reg.register(id, "giveInput"))
	}
	reg.cancelAll(ErrConnectionLost)

	for _, p := range pend {
		res := <-p.ch
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, ErrNoReply)
		assert.ErrorIs(t, res.err, ErrConnectionLost)

		var nre *NoReplyError
		require.ErrorAs(t, res.err, &nre)
		assert.Equal(t, "giveInput", nre.Method)
	}
	assert.Zero(t, reg.size())

	// повторный cancelAll по пустому реестру — no-op
	reg.cancelAll(ErrSessionClosed)
	assert.Zero(t, reg.size())
}

func TestRegistrySettleUnknownID(t *testing.T) {
	reg := newRegistry(zerolog.Nop())
	// ответ на никогда не регистрировавшийся вызов не должен паниковать
	reg.settle(42, json.RawMessage(`{}`), nil)
	assert.Zero(t, reg.size())
}

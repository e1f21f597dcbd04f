package util

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTemplate(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name":  "Maria",
			"phone": "5511999990000",
		},
		"attempts": 3,
	}
	for template, want := range map[string]string{
		"Olá {$.user.name}!":             "Olá Maria!",
		"{$.user.name} ({$.user.phone})": "Maria (5511999990000)",
		"tentativas: {$.attempts}":       "tentativas: 3",
		"sem tokens":                     "sem tokens",
		"{$.user.missing} fica":          "{$.user.missing} fica",
		"{literal} não é jsonpath":       "{literal} não é jsonpath",
		"{$.user.name} e {$.user.name}":  "Maria e Maria",
	} {
		assert.Equal(t, want, ResolveTemplate(data, template), template)
	}
}

func TestPartition(t *testing.T) {
	first := Partition(16, "google_integration", "user-1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Partition(16, "google_integration", "user-1"))
	}
	for _, key := range []string{"a", "b", "c", "user-2", "user-3"} {
		p := Partition(4, key)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 4)
	}
}

func TestKeyLock(t *testing.T) {
	locks := NewKeyLock(0)
	require.Len(t, locks.stripes, DefaultLockStripes)

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("kind", "subject")
			defer unlock()
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestWorker(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
		done = make(chan struct{})
	)
	wg := &sync.WaitGroup{}
	w := NewWorker("test", wg, func(task Task) error {
		mu.Lock()
		defer mu.Unlock()
		n := task.(int)
		seen = append(seen, n)
		if n == 4 {
			close(done)
		}
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	}, 8)
	w.Start()
	for i := 0; i < 5; i++ {
		w.Sender() <- i
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not drain its queue")
	}
	w.Stop()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

type sample struct {
	Name  string         `json:"name"`
	Steps int            `json:"steps"`
	Data  map[string]any `json:"data"`
}

func TestJsonEncDec(t *testing.T) {
	encdec := NewJsonEncoderDecoder[sample]()
	raw, err := encdec.Encode(sample{Name: "x", Steps: 2, Data: map[string]any{"k": "v"}})
	require.NoError(t, err)
	got, err := encdec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)
	assert.Equal(t, "v", got.Data["k"])

	_, err = encdec.Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestWorkerDrainsOnStop(t *testing.T) {
	var (
		mu      sync.Mutex
		handled int
		release = make(chan struct{})
	)
	wg := &sync.WaitGroup{}
	w := NewWorker("drain", wg, func(task Task) error {
		if task.(int) == 0 {
			<-release
		}
		if task.(int) == 1 {
			panic("boom")
		}
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, 8)
	w.Start()
	for i := 0; i < 4; i++ {
		w.Sender() <- i
	}
	assert.Eventually(t, func() bool { return w.Pending() == 3 }, time.Second, time.Millisecond)
	w.Stop()
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, handled)
	assert.Equal(t, 0, w.Pending())
}


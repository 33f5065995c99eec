package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamExecutesInOrder(t *testing.T) {
	s := NewStream()
	defer s.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		s.Enqueue(func() error {
			got = append(got, i)
			return nil
		})
	}
	require.NoError(t, s.Synchronize())

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestStreamErrorSkipsAndClears(t *testing.T) {
	s := NewStream()
	defer s.Close()

	boom := errors.New("boom")
	ran := false
	s.Enqueue(func() error { return boom })
	s.Enqueue(func() error { ran = true; return nil })

	err := s.Synchronize()
	require.ErrorIs(t, err, boom)
	// Work enqueued after the failure was skipped.
	assert.False(t, ran)

	// The error is cleared; the stream is usable again.
	s.Enqueue(func() error { ran = true; return nil })
	require.NoError(t, s.Synchronize())
	assert.True(t, ran)
}

func TestStreamsAreIndependent(t *testing.T) {
	s1 := NewStream()
	defer s1.Close()
	s2 := NewStream()
	defer s2.Close()

	assert.NotEqual(t, s1.ID(), s2.ID())

	var wg sync.WaitGroup
	sums := [2]int{}
	for i, s := range []*Stream{s1, s2} {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 1; j <= 1000; j++ {
				j := j
				s.Enqueue(func() error {
					sums[i] += j
					return nil
				})
			}
			assert.NoError(t, s.Synchronize())
		}()
	}
	wg.Wait()

	assert.Equal(t, 500500, sums[0])
	assert.Equal(t, 500500, sums[1])
}

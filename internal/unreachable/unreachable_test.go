package unreachable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_AddContainsLen(t *testing.T) {
	s := New()
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())

	s.Add("a")
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("b"))
	assert.Equal(t, 1, s.Len())

	s.Add("a") // idempotent
	assert.Equal(t, 1, s.Len())
}

func TestSet_NilReceiverLen(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
}

func TestSet_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Add("shared")
			_ = s.Contains("shared")
			_ = s.Len()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

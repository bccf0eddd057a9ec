package home

import (
	"fmt"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

func TestUpdate_ConcurrentWritersLeaveNewestState(t *testing.T) {
	c := New(Params{})

	for round := 0; round < 200; round++ {
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					query := fmt.Sprintf("%d-%d-%d", round, w, i)
					c.update(func(s *State) { s.Query = query })
				}
			}(w)
		}
		wg.Wait()

		published := <-c.Updates()
		assert.Equal(t, published.Query, c.State().Query, "round %d", round)
	}
}

package events

import (
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatcherDeliversInOrderAndUnsubscribes(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var got []string

	unsubA := d.Subscribe(job.EventNameUpdated, func(e shared.DomainEvent) { got = append(got, "a:"+e.EventName()) })
	d.Subscribe("*", func(e shared.DomainEvent) { got = append(got, "all:"+e.EventName()) })
	d.Subscribe(job.EventNameUpdated, func(shared.DomainEvent) { panic("boom") })

	now := time.Now()
	d.Dispatch(job.UpdatedEvent{JobID: "1", UpdatedAt: now}, job.FinishedEvent{JobID: "1", FinishedAt: now})
	assert.Equal(t, []string{"a:job.updated", "all:job.updated", "all:job.finished"}, got)

	unsubA()
	unsubA()
	got = nil
	d.Dispatch(job.UpdatedEvent{JobID: "1", UpdatedAt: now})
	assert.Equal(t, []string{"all:job.updated"}, got)
}

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"registros/internal/amqp"
	"registros/internal/core"
	"registros/internal/records"
	"registros/internal/sheets/memory"
)

func TestHandleEventsWithoutRepository(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewMirrorWorker(mirror, nil)

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordCreated, core.Record{ID: 1, Titulo: "Feira"})))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordUpdated, core.Record{ID: 1, Titulo: "Feira grande"})))

	r, ok := mirror.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Feira grande", r.Titulo)

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordDeleted, core.Record{ID: 1})))
	assert.Zero(t, mirror.Len())

	processed, failed := w.Stats()
	assert.Equal(t, int64(3), processed)
	assert.Zero(t, failed)
}

func TestHandleEventRereadsFromRepository(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := records.NewMockRepository(ctrl)
	mirror := memory.New()
	w := NewMirrorWorker(mirror, repo)

	repo.EXPECT().GetRecord(gomock.Any(), int64(5)).Return(core.Record{ID: 5, Titulo: "atual"}, nil)
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordUpdated, core.Record{ID: 5, Titulo: "antigo"})))
	r, _ := mirror.Get(5)
	assert.Equal(t, "atual", r.Titulo)

	repo.EXPECT().GetRecord(gomock.Any(), int64(5)).Return(core.Record{}, core.ErrNotFound)
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordCreated, core.Record{ID: 5})))
	_, ok := mirror.Get(5)
	assert.False(t, ok, "a vanished record should be removed from the mirror")
}

func TestHandleEventRepositoryFailureRequeues(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := records.NewMockRepository(ctrl)
	w := NewMirrorWorker(memory.New(), repo)

	repo.EXPECT().GetRecord(gomock.Any(), int64(2)).Return(core.Record{}, errors.New("db down"))
	err := w.HandleRecordEvent(context.Background(), amqp.NewRecordEvent(amqp.RecordCreated, core.Record{ID: 2}))
	assert.Error(t, err)

	_, failed := w.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestHandleEventMissingRecord(t *testing.T) {
	w := NewMirrorWorker(memory.New(), nil)
	err := w.HandleRecordEvent(context.Background(), &amqp.RecordEvent{Type: amqp.RecordCreated, ID: 3})
	assert.Error(t, err)
}
